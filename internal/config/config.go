package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeoutSeconds = 90

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	LLMProvider         string  `yaml:"llm_provider"`
	LLMModel            string  `yaml:"llm_model"`
	OpenAIAPIKey        string  `yaml:"openai_api_key"`
	OpenAIBaseURL       string  `yaml:"openai_base_url"`
	AnthropicAPIKey     string  `yaml:"anthropic_api_key"`
	ClassifyTemperature float64 `yaml:"classify_temperature"`
	DemoTemperature     float64 `yaml:"demo_temperature"`

	Storage     string `yaml:"storage"`
	DBPath      string `yaml:"db_path"`
	PostgresDSN string `yaml:"postgres_dsn"`

	DemoIntervalSeconds int    `yaml:"demo_interval_seconds"`
	DemoSchedule        string `yaml:"demo_schedule"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideFloat(&cfg.ClassifyTemperature, "CLASSIFY_TEMPERATURE")
	envOverrideFloat(&cfg.DemoTemperature, "DEMO_TEMPERATURE")
	envOverride(&cfg.Storage, "STORAGE")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.PostgresDSN, "POSTGRES_DSN")
	envOverrideInt(&cfg.DemoIntervalSeconds, "DEMO_INTERVAL_SECONDS")
	envOverride(&cfg.DemoSchedule, "DEMO_SCHEDULE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.ClassifyTemperature == 0 {
		cfg.ClassifyTemperature = 0.2
	}
	if cfg.DemoTemperature == 0 {
		cfg.DemoTemperature = 0.9
	}
	if cfg.Storage == "" {
		cfg.Storage = "sqlite"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./queryflow.db"
	}
	if cfg.DemoIntervalSeconds == 0 {
		cfg.DemoIntervalSeconds = 15
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	switch cfg.Storage {
	case "sqlite", "memory":
	case "postgres":
		if cfg.PostgresDSN == "" {
			log.Fatalf("postgres_dsn is required when storage=postgres")
		}
	default:
		log.Fatalf("storage must be 'sqlite', 'postgres' or 'memory', got '%s'", cfg.Storage)
	}

	if cfg.ClassifyTemperature < 0 || cfg.ClassifyTemperature > 2 {
		log.Fatalf("invalid classify_temperature '%f': must be between 0 and 2", cfg.ClassifyTemperature)
	}
	if cfg.DemoTemperature < 0 || cfg.DemoTemperature > 2 {
		log.Fatalf("invalid demo_temperature '%f': must be between 0 and 2", cfg.DemoTemperature)
	}
	if cfg.DemoIntervalSeconds < 1 {
		log.Fatalf("invalid demo_interval_seconds '%d': must be >= 1", cfg.DemoIntervalSeconds)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.DemoSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.DemoSchedule); err != nil {
			log.Fatalf("invalid demo_schedule '%s': %v", cfg.DemoSchedule, err)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) AnthropicConfigured() bool {
	return strings.EqualFold(c.LLMProvider, "anthropic")
}
