package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/krypto"
)

func Test_Credential_PreventExposure(t *testing.T) {
	cred := must(testHasher().Hash("ValidPass1!"))
	raw := cred.Digest()

	assert := func(t *testing.T, s string) {
		t.Helper()
		if s != krypto.SecretMarker {
			t.Errorf("wanted\n%s\ngot\n%s\n", krypto.SecretMarker, s)
		}
	}

	t.Run("ok, fmt", func(t *testing.T) {
		assert(t, fmt.Sprintf("%s", cred)) //nolint:gosimple
		assert(t, fmt.Sprintf("%v", cred))
		assert(t, fmt.Sprintf("%+v", cred))
		assert(t, fmt.Sprintf("%#v", cred))
	})

	t.Run("ok, json", func(t *testing.T) {
		b, err := json.Marshal(cred)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}

		assert(t, strings.Trim(string(b), `"`))
	})

	logFormats := map[string]func(b *bytes.Buffer) slog.Handler{
		"text": func(b *bytes.Buffer) slog.Handler { return slog.NewTextHandler(b, nil) },
		"json": func(b *bytes.Buffer) slog.Handler { return slog.NewJSONHandler(b, nil) },
	}

	for name, newHandler := range logFormats {
		t.Run("ok, log output "+name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(newHandler(&buf))

			logger.Info("attempting to log a credential", "credential", cred)

			s := buf.String()
			if !strings.Contains(s, krypto.SecretMarker) {
				t.Errorf("log output\n%s\ndoes not contain secret marker: %s", s, krypto.SecretMarker)
			}

			if strings.Contains(s, raw) {
				t.Errorf("log output\n%s\ncontains raw digest: %s", s, raw)
			}
		})
	}
}
