package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR" env-default:"127.0.0.1:8787"`
}

// StorageConfig selects the key/blob backend used by the review stores.
type StorageConfig struct {
	Backend      string        `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	Dir          string        `yaml:"dir" env:"STORAGE_DIR" env-default:"./data"`
	SQLitePath   string        `yaml:"sqlite_path" env:"STORAGE_SQLITE_PATH" env-default:"./data/review.db"`
	RedisURL     string        `yaml:"redis_url" env:"REDIS_URL"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"STORAGE_WRITE_TIMEOUT" env-default:"5s"`
}

// ReviewConfig holds the annotation engine knobs.
type ReviewConfig struct {
	Namespace     string  `yaml:"namespace" env:"REVIEW_NAMESPACE" env-default:"frameio"`
	Tolerance     float64 `yaml:"tolerance" env:"REVIEW_TOLERANCE" env-default:"2"`
	MaxTextLength int     `yaml:"max_text_length" env:"REVIEW_MAX_TEXT_LENGTH" env-default:"500"`
	AuthorName    string  `yaml:"author_name" env:"REVIEW_AUTHOR_NAME"`
	AuthorAvatar  string  `yaml:"author_avatar" env:"REVIEW_AUTHOR_AVATAR"`
	// Source names the reviewed video; the last paused position is kept per source.
	Source        string  `yaml:"source" env:"REVIEW_SOURCE" env-default:"default"`
}

type NATSConfig struct {
	URL           string        `yaml:"url" env:"NATS_URL"`
	MaxReconnects int           `yaml:"max_reconnects" env:"NATS_MAX_RECONNECTS" env-default:"5"`
	ReconnectWait time.Duration `yaml:"reconnect_wait" env:"NATS_RECONNECT_WAIT" env-default:"2s"`
}

type AppConfig struct {
	ServiceName string        `yaml:"service_name" env:"SERVICE_NAME" env-default:"review"`
	Env         string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string        `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	HTTP        HTTPConfig    `yaml:"http"`
	Storage     StorageConfig `yaml:"storage"`
	Review      ReviewConfig  `yaml:"review"`
	NATS        NATSConfig    `yaml:"nats"`
}

// IsProduction reports whether APP_ENV is "production".
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// Load reads configuration from the YAML file at path (or CONFIG_PATH when path
// is empty) with environment variables overlaid. Without a file only the
// environment is read.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return AppConfig{}, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("SERVICE_NAME is required")
	}
	if strings.TrimSpace(c.Review.Namespace) == "" {
		return errors.New("REVIEW_NAMESPACE must not be empty")
	}
	if c.Review.Tolerance < 0 {
		return fmt.Errorf("REVIEW_TOLERANCE must be >= 0, got %v", c.Review.Tolerance)
	}
	if c.Review.MaxTextLength <= 0 {
		return fmt.Errorf("REVIEW_MAX_TEXT_LENGTH must be > 0, got %d", c.Review.MaxTextLength)
	}
	if c.Storage.WriteTimeout <= 0 {
		return fmt.Errorf("STORAGE_WRITE_TIMEOUT must be > 0, got %s", c.Storage.WriteTimeout)
	}
	return nil
}
