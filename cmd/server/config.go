package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/willemschots/sessiongate/internal/krypto"
	"github.com/willemschots/sessiongate/internal/session"
	"golang.org/x/crypto/bcrypt"
)

const (
	envDevelopment = "development"
	envProduction  = "production"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	logFormatText = "text"
	logFormatJSON = "json"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// dbConfig is the configuration for the user store.
type dbConfig struct {
	driver  string
	file    string
	url     krypto.Secret
	migrate bool
}

// logConfig is the configuration for the logger.
type logConfig struct {
	format string
	level  slog.Level
}

// config is the configuration for the server command.
type config struct {
	env        string
	http       httpConfig
	db         dbConfig
	log        logConfig
	session    session.Config
	bcryptCost int
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		env: envDevelopment,
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
		},
		db: dbConfig{
			driver:  driverSQLite,
			file:    "sessiongate.db",
			migrate: true,
		},
		log: logConfig{
			format: logFormatText,
			level:  slog.LevelInfo,
		},
		session: session.Config{
			MaxAge: session.DefaultMaxAge,
		},
		bcryptCost: 12,
	}
}

// requiredEnv lists the environment variables without a default.
var requiredEnv = []string{
	"SESSION_SECRET",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"APP_ENV": func(v string, c *config) error {
		if v != envDevelopment && v != envProduction {
			return fmt.Errorf("must be %q or %q", envDevelopment, envProduction)
		}
		c.env = v
		return nil
	},
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"SESSION_SECRET": func(v string, c *config) error {
		s := krypto.NewSecret(v)
		if s.Len() < krypto.MinSecretLen {
			return fmt.Errorf("must be at least %d bytes", krypto.MinSecretLen)
		}
		c.session.Secret = s
		return nil
	},
	"SESSION_MAX_AGE": func(v string, c *config) error {
		var d time.Duration
		err := confDuration(v, &d, time.Second, math.MaxInt32*time.Second)
		if err != nil {
			return err
		}
		c.session.MaxAge = int(d / time.Second)
		return nil
	},
	"AUTH_BCRYPT_COST": func(v string, c *config) error {
		return confInt(v, &c.bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	},
	"DB_DRIVER": func(v string, c *config) error {
		if v != driverSQLite && v != driverPostgres {
			return fmt.Errorf("must be %q or %q", driverSQLite, driverPostgres)
		}
		c.db.driver = v
		return nil
	},
	"DB_FILENAME": func(v string, c *config) error {
		if v == "" {
			return errors.New("can't be empty")
		}
		c.db.file = v
		return nil
	},
	"DB_URL": func(v string, c *config) error {
		c.db.url = krypto.NewSecret(v)
		return nil
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
	"LOG_FORMAT": func(v string, c *config) error {
		if v != logFormatText && v != logFormatJSON {
			return fmt.Errorf("must be %q or %q", logFormatText, logFormatJSON)
		}
		c.log.format = v
		return nil
	},
	"LOG_LEVEL": func(v string, c *config) error {
		return c.log.level.UnmarshalText([]byte(v))
	},
}

// loadEnvFile loads the environment variables in file that are not
// set yet. A missing file is not an error.
func loadEnvFile(file string) error {
	err := godotenv.Load(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. All invalid values are reported at once.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for _, key := range requiredEnv {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	if c.db.driver == driverPostgres && c.db.url.Len() == 0 {
		errs = append(errs, errors.New("env variable DB_URL is required when DB_DRIVER is postgres"))
	}

	c.session.Secure = c.env == envProduction

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

// confInt attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confInt(v string, tgt *int, min, max int) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if i < min || i > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = i

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}
