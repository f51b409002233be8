package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	LogLevel          string   `mapstructure:"LOG_LEVEL"`
	DBDriver          string   `mapstructure:"DB_DRIVER"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int      `mapstructure:"DB_MAX_CONNS"`
	DBResetOnMismatch bool     `mapstructure:"DB_RESET_ON_MISMATCH"`
	JournalDir        string   `mapstructure:"JOURNAL_DIR"`
	WriteQueueSize    int      `mapstructure:"WRITE_QUEUE_SIZE"`
	BodyLimit         string   `mapstructure:"BODY_LIMIT"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"DB_DRIVER",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_RESET_ON_MISMATCH",
	"JOURNAL_DIR",
	"WRITE_QUEUE_SIZE",
	"BODY_LIMIT",
	"CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "clinic.db")
	v.SetDefault("DB_MAX_CONNS", 0) // 0 picks the driver default
	v.SetDefault("DB_RESET_ON_MISMATCH", true)
	v.SetDefault("JOURNAL_DIR", "clinic-journal")
	v.SetDefault("WRITE_QUEUE_SIZE", 64)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be \"sqlite\" or \"postgres\", got %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns < 0 {
		return fmt.Errorf("DB_MAX_CONNS must not be negative, got %d", c.DBMaxConns)
	}
	if c.WriteQueueSize <= 0 {
		return fmt.Errorf("WRITE_QUEUE_SIZE must be positive, got %d", c.WriteQueueSize)
	}
	if strings.TrimSpace(c.JournalDir) == "" {
		return fmt.Errorf("JOURNAL_DIR is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
