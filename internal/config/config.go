package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mathrace/internal/quiz"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	PublicURL   string `yaml:"public_url"`
	DatabaseURL string `yaml:"database_url"`
	NatsURL     string `yaml:"nats_url"`
	NatsSubject string `yaml:"nats_subject"`
	StaticDir   string `yaml:"static_dir"`
	LogLevel    string `yaml:"log_level"`

	DefaultRoundDuration int `yaml:"default_round_duration" validate:"min=1,ltefield=MaxRoundDuration"` // seconds
	MaxRoundDuration     int `yaml:"max_round_duration" validate:"min=1"`                              // seconds
	CountdownSeconds     int `yaml:"countdown_seconds" validate:"min=0"`
	RoomIdleTTL          int `yaml:"room_idle_ttl" validate:"min=0"`  // seconds, 0 disables reaping
	SweepInterval        int `yaml:"sweep_interval" validate:"min=1"` // seconds
	SubscriberBuffer     int `yaml:"subscriber_buffer" validate:"min=1"`
}

func Default() Config {
	return Config{
		Port:                 "3030",
		NatsSubject:          "quiz.rounds.finished",
		StaticDir:            "frontend",
		LogLevel:             "info",
		DefaultRoundDuration: 60,
		MaxRoundDuration:     600,
		CountdownSeconds:     3,
		RoomIdleTTL:          3600,
		SweepInterval:        300,
		SubscriberBuffer:     16,
	}
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file leave cfg untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and
// then the environment, in that order of precedence.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.PublicURL = getEnv("PUBLIC_URL", cfg.PublicURL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.NatsSubject = getEnv("NATS_SUBJECT", cfg.NatsSubject)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.DefaultRoundDuration = getEnvInt("DEFAULT_ROUND_DURATION", cfg.DefaultRoundDuration)
	cfg.MaxRoundDuration = getEnvInt("MAX_ROUND_DURATION", cfg.MaxRoundDuration)
	cfg.CountdownSeconds = getEnvInt("COUNTDOWN_SECONDS", cfg.CountdownSeconds)
	cfg.RoomIdleTTL = getEnvInt("ROOM_IDLE_TTL", cfg.RoomIdleTTL)
	cfg.SweepInterval = getEnvInt("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.SubscriberBuffer = getEnvInt("SUBSCRIBER_BUFFER", cfg.SubscriberBuffer)

	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return cfg, cfg.Validate()
}

// Validate checks value ranges. The round default must fit under the
// maximum a client may request.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		p := fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			p += "=" + fe.Param()
		}
		problems = append(problems, p+fmt.Sprintf(" (got %v)", fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Game returns the per-room settings for rooms created with the default
// round duration.
func (c Config) Game() quiz.Config {
	return quiz.Config{
		RoundDuration:    c.DefaultRoundDuration,
		CountdownSecs:    c.CountdownSeconds,
		SubscriberBuffer: c.SubscriberBuffer,
	}
}

func (c Config) IdleTTL() time.Duration {
	return time.Duration(c.RoomIdleTTL) * time.Second
}

func (c Config) SweepEvery() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
