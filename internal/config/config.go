package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kiosk/internal/logging"
	"kiosk/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Bus         BusConfig         `yaml:"bus"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Speech      SpeechConfig      `yaml:"speech"`
	Session     SessionConfig     `yaml:"session"`
	Client      ClientConfig      `yaml:"client"`
	Log         logging.Config    `yaml:"log"`
	Metrics     struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// ServerConfig configures the order-desk server
type ServerConfig struct {
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	AudioDir      string `yaml:"audio_dir" validate:"required"`
	JWTSecret     string `yaml:"jwt_secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
}

// DatabaseConfig selects the gorm dialect
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 postgres mysql"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// LLMConfig configures the language model used for order and chat analysis.
// An empty APIKey disables the model and the keyword analyzer is used instead.
type LLMConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=openai github azure"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
}

// BusConfig selects the status event transport
type BusConfig struct {
	Kind    string   `yaml:"kind" validate:"oneof=memory rabbitmq kafka"`
	URL     string   `yaml:"url"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// IdempotencyConfig selects where confirm idempotency keys are kept
type IdempotencyConfig struct {
	Kind      string `yaml:"kind" validate:"oneof=memory redis"`
	RedisAddr string `yaml:"redis_addr"`
}

// SpeechConfig configures both speech capabilities
type SpeechConfig struct {
	Synthesizer      string        `yaml:"synthesizer" validate:"oneof=none cloud"`
	Recognizer       string        `yaml:"recognizer" validate:"oneof=none command"`
	PlayerCommand    []string      `yaml:"player_command"`
	RecognizeCommand []string      `yaml:"recognize_command"`
	VoiceStyle       string        `yaml:"voice_style"`
	Mode             string        `yaml:"mode" validate:"oneof=queue replace"`
	RecognizeTimeout time.Duration `yaml:"recognize_timeout"`
	AzureKey         string        `yaml:"azure_key"`
	AzureRegion      string        `yaml:"azure_region"`
}

// SessionConfig configures the order conversation
type SessionConfig struct {
	InitialWaitMinutes int             `yaml:"initial_wait_minutes" validate:"min=0"`
	Defaults           models.Defaults `yaml:"defaults"`
}

// ClientConfig tells the kiosk where the order desk lives
type ClientConfig struct {
	BackendURL       string        `yaml:"backend_url" validate:"required,url"`
	WSURL            string        `yaml:"ws_url" validate:"required"`
	ReconnectRetries int           `yaml:"reconnect_retries" validate:"min=0"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:          8080,
			AudioDir:      "temp_audio",
			AdminUser:     "admin",
			AdminPassword: "admin",
			JWTSecret:     "change-me",
		},
		Database:    DatabaseConfig{Driver: "sqlite3", DSN: "kiosk.db"},
		LLM:         LLMConfig{Provider: "openai", Model: "gpt-3.5-turbo"},
		Bus:         BusConfig{Kind: "memory", Topic: "kiosk.order-status"},
		Idempotency: IdempotencyConfig{Kind: "memory"},
		Speech: SpeechConfig{
			Synthesizer:      "none",
			Recognizer:       "none",
			VoiceStyle:       "default",
			Mode:             "replace",
			RecognizeTimeout: 8 * time.Second,
			AzureRegion:      "eastasia",
		},
		Session: SessionConfig{
			InitialWaitMinutes: 3,
			Defaults:           models.StandardDefaults(),
		},
		Client: ClientConfig{
			BackendURL:       "http://localhost:8080",
			WSURL:            "ws://localhost:8080/ws",
			ReconnectRetries: 5,
			ReconnectBackoff: 2 * time.Second,
			RequestTimeout:   15 * time.Second,
		},
		Log: logging.Config{Level: "info", Format: "text"},
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// Load reads a YAML file on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Bus.Kind == "rabbitmq" && c.Bus.URL == "" {
		return fmt.Errorf("invalid configuration: bus.url is required for rabbitmq")
	}
	if c.Bus.Kind == "kafka" && len(c.Bus.Brokers) == 0 {
		return fmt.Errorf("invalid configuration: bus.brokers is required for kafka")
	}
	if c.Speech.Recognizer == "command" && len(c.Speech.RecognizeCommand) == 0 {
		return fmt.Errorf("invalid configuration: speech.recognize_command is required for the command recognizer")
	}
	if c.LLM.Provider == "azure" && c.LLM.APIKey != "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("invalid configuration: llm.base_url is required for azure")
	}
	if c.Idempotency.Kind == "redis" && c.Idempotency.RedisAddr == "" {
		return fmt.Errorf("invalid configuration: idempotency.redis_addr is required for redis")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.LLM.Provider == "github" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" && cfg.LLM.Provider == "azure" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" && cfg.LLM.Provider == "azure" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("AZURE_SPEECH_KEY"); v != "" {
		cfg.Speech.AzureKey = v
	}
	if v := os.Getenv("AZURE_SPEECH_REGION"); v != "" {
		cfg.Speech.AzureRegion = v
	}
	if v := os.Getenv("KIOSK_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("KIOSK_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("KIOSK_BACKEND_URL"); v != "" {
		cfg.Client.BackendURL = v
	}
	if v := os.Getenv("KIOSK_WS_URL"); v != "" {
		cfg.Client.WSURL = v
	}
	if v := os.Getenv("KIOSK_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("KIOSK_REDIS_ADDR"); v != "" {
		cfg.Idempotency.Kind = "redis"
		cfg.Idempotency.RedisAddr = v
	}
	if v := os.Getenv("KIOSK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KIOSK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}
