package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the aigrader server, worker and CLI.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	AI       AIConfig
	Tasks    TasksConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
	// ResultTTL is how long task records stay in the result store.
	ResultTTL        time.Duration
	BroadcastChannel string
}

type QueueConfig struct {
	// Driver is "rabbitmq" or "memory". The memory driver only works with an embedded worker.
	Driver     string
	URL        string
	Exchange   string
	Name       string
	RoutingKey string
}

type WorkerConfig struct {
	Concurrency int
	// Embedded runs the worker pool inside the server process.
	Embedded bool
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	// Models maps public model aliases to provider model identifiers.
	// When empty, model names are passed through unchanged.
	Models         map[string]string
	SentimentModel string
	Ollama         OllamaConfig
	VLLM           VLLMConfig
	OpenAI         OpenAIConfig
	OpenRouter     OpenRouterConfig
	Anthropic      AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type OpenRouterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Referer string
	Title   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type TasksConfig struct {
	MinContentLength  int
	RetentionSchedule string
}

var validProviders = map[string]bool{
	"ollama":     true,
	"vllm":       true,
	"openai":     true,
	"openrouter": true,
	"anthropic":  true,
	"mock":       true,
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; variables already
// set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("AIGRADER_PORT", 8080),
			Env:             envString("AIGRADER_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL:              os.Getenv("REDIS_URL"),
			ResultTTL:        envDuration("RESULT_TTL", 7*24*time.Hour),
			BroadcastChannel: envString("BROADCAST_CHANNEL", "task_results"),
		},
		Queue: QueueConfig{
			Driver:     envString("QUEUE_DRIVER", "rabbitmq"),
			URL:        os.Getenv("AMQP_URL"),
			Exchange:   envString("QUEUE_EXCHANGE", "aigrader"),
			Name:       envString("QUEUE_NAME", "aigrader.tasks"),
			RoutingKey: envString("QUEUE_ROUTING_KEY", "tasks"),
		},
		Worker: WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", 4),
			Embedded:    envBool("WORKER_EMBEDDED", false),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			Models:           envStringMap("AI_MODELS"),
			SentimentModel:   os.Getenv("SENTIMENT_MODEL"),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "gemma3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			OpenRouter: OpenRouterConfig{
				BaseURL: envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				APIKey:  os.Getenv("OPENROUTER_API_KEY"),
				Model:   envString("OPENROUTER_MODEL", ""),
				Referer: os.Getenv("HTTP_REFERER"),
				Title:   os.Getenv("X_TITLE"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Tasks: TasksConfig{
			MinContentLength:  envInt("MIN_CONTENT_LENGTH", 10),
			RetentionSchedule: envString("RETENTION_SCHEDULE", "@hourly"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Redis.ResultTTL <= 0 {
		return fmt.Errorf("RESULT_TTL must be positive, got %s", c.Redis.ResultTTL)
	}
	if c.Redis.BroadcastChannel == "" {
		return fmt.Errorf("BROADCAST_CHANNEL must not be empty")
	}

	switch c.Queue.Driver {
	case "rabbitmq":
		if c.Queue.URL == "" {
			return fmt.Errorf("AMQP_URL is required when QUEUE_DRIVER is rabbitmq")
		}
		if !strings.HasPrefix(c.Queue.URL, "amqp://") && !strings.HasPrefix(c.Queue.URL, "amqps://") {
			return fmt.Errorf("AMQP_URL must start with amqp:// or amqps://, got %q", c.Queue.URL)
		}
	case "memory":
		if !c.Worker.Embedded {
			return fmt.Errorf("QUEUE_DRIVER memory requires WORKER_EMBEDDED=true")
		}
	default:
		return fmt.Errorf("QUEUE_DRIVER must be one of rabbitmq, memory; got %q", c.Queue.Driver)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}

	if c.Tasks.MinContentLength < 1 {
		return fmt.Errorf("MIN_CONTENT_LENGTH must be at least 1, got %d", c.Tasks.MinContentLength)
	}

	if c.Worker.Embedded {
		return c.ValidateAI()
	}
	return nil
}

// ValidateAI checks the settings a process running inference needs. The worker calls it
// after Load; the server only needs it when the worker pool is embedded.
func (c *Config) ValidateAI() error {
	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, openrouter, anthropic, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "openrouter" && c.AI.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required when AI_PROVIDER is openrouter")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envStringMap parses "alias=value,alias2=value2". Malformed pairs are skipped.
func envStringMap(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
