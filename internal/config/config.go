package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"cogbot/internal/domain"
)

const defaultDatabaseURL = "postgres://localhost:5432/cogbot?sslmode=disable"

// Config is the process configuration read from the environment.
type Config struct {
	Token             string   `validate:"required"`
	ApprovedGuilds    []string `validate:"required,min=1,dive,numeric"`
	EncryptionSecret  string   `validate:"required,min=8"`
	StorageDriver     string   `validate:"oneof=postgres memory"`
	DatabaseURL       string   `validate:"required_if=StorageDriver postgres,omitempty,url"`
	MigrationsEnabled bool
	DBTimeout         time.Duration `validate:"gt=0"`
	GuildConfigPath   string
	Locale            string        `validate:"required,bcp47_language_tag"`
	LogLevel          string        `validate:"oneof=debug info warn error"`
	LogFormat         string        `validate:"oneof=json console"`
	HealthAddr        string        `validate:"omitempty,hostname_port"`
	ShutdownTimeout   time.Duration `validate:"gt=0"`
	ErrorBuffer       int           `validate:"gt=0"`
	CacheTTL          time.Duration `validate:"gt=0"`
	CacheSize         int           `validate:"gt=0"`
	DisabledCogs      []string
	Presence          string `validate:"max=128"`

	Guilds GuildFile `validate:"-"`
}

// Load reads .env when present, then the environment and the guild file.
func Load() (*Config, error) {
	// .env is optional when variables come from the environment (Docker, CI...).
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := reader{getenv: getenv}
	cfg := &Config{
		Token:             strings.TrimSpace(getenv("TOKEN")),
		ApprovedGuilds:    env.list("APPROVED_GUILDS"),
		EncryptionSecret:  getenv("ENCRYPTION_SECRET"),
		StorageDriver:     env.str("STORAGE_DRIVER", "postgres"),
		DatabaseURL:       env.str("DATABASE_URL", defaultDatabaseURL),
		MigrationsEnabled: env.boolean("MIGRATIONS_ENABLED", true),
		DBTimeout:         env.duration("DB_TIMEOUT", 5*time.Second),
		GuildConfigPath:   env.str("GUILD_CONFIG_PATH", "guilds.toml"),
		Locale:            env.str("LOCALE", "en"),
		LogLevel:          strings.ToLower(env.str("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(env.str("LOG_FORMAT", "json")),
		HealthAddr:        env.str("HEALTH_ADDR", ":8081"),
		ShutdownTimeout:   env.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ErrorBuffer:       env.integer("ERROR_BUFFER", 256),
		CacheTTL:          env.duration("CACHE_TTL", 5*time.Minute),
		CacheSize:         env.integer("CACHE_SIZE", 1024),
		DisabledCogs:      env.list("DISABLED_COGS"),
		Presence:          env.str("PRESENCE", "/help"),
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, &domain.ConfigurationError{Op: "read environment", Err: err}
	}
	if err := validateStruct(cfg); err != nil {
		return nil, &domain.ConfigurationError{Op: "validate environment", Err: err}
	}

	guilds, err := LoadGuildFile(cfg.GuildConfigPath)
	if err != nil {
		return nil, &domain.ConfigurationError{Op: "load guild file", Err: err}
	}
	cfg.Guilds = guilds
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct reports every failed rule with the field name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
