package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// WhatsApp Cloud API
	VerifyToken     string        `env:"VERIFY_TOKEN"`
	WhatsAppToken   string        `env:"WHATSAPP_TOKEN"`
	PhoneNumberID   string        `env:"PHONE_NUMBER_ID"`
	GraphAPIVersion string        `env:"WHATSAPP_API_VERSION" envDefault:"v21.0"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT" envDefault:"15s"`

	// Database
	DBType     string `env:"DB_TYPE" envDefault:"sqlite"`
	DBPath     string `env:"DB_PATH" envDefault:"./sportsreport.db"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"sportsreport"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBLogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`

	// Language understanding
	NLUProvider     string        `env:"NLU_PROVIDER" envDefault:"rules"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel     string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	DecorateReplies bool          `env:"DECORATE_REPLIES" envDefault:"false"`
	DecorateTimeout time.Duration `env:"DECORATE_TIMEOUT" envDefault:"3s"`

	// Conversation
	ExtractTimeout time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"10s"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	CommitRetries  uint          `env:"COMMIT_RETRIES" envDefault:"2"`
	CommitBackoff  time.Duration `env:"COMMIT_BACKOFF" envDefault:"200ms"`
	DraftTTL       time.Duration `env:"DRAFT_TTL" envDefault:"30m"`
	DedupTTL       time.Duration `env:"DEDUP_TTL" envDefault:"2m"`
	SettingsURL    string        `env:"SETTINGS_URL" envDefault:"https://mydailysportsreport.com/signup.html"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// UsesModel reports whether intent extraction should go through a chat model.
func (c *Config) UsesModel() bool {
	return c.NLUProvider == "openai" && c.OpenAIAPIKey != ""
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// Debug reports whether verbose logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}
