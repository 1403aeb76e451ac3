package errorz_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/willemschots/sessiongate/internal/errorz"
)

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("USER_GET_FAILED").
		With("id", "0190f5a4").
		Errorf("query failed")

	errorz.LogError(context.Background(), logger, "internal server error", err, "url", "/")

	entry := logEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "internal server error", entry["msg"])
	assert.Equal(t, "USER_GET_FAILED", entry["code"])
	assert.Equal(t, "/", entry["url"])
	assert.Contains(t, entry["error"], "query failed")

	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok, "expected context attribute, got %v", entry["context"])
	assert.Equal(t, "0190f5a4", ctx["id"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errorz.LogError(context.Background(), logger, "internal server error", errors.New("plain failure"))

	entry := logEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "plain failure", entry["error"])
	assert.NotContains(t, entry, "code")
	assert.NotContains(t, entry, "context")
}
