package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the chat backend.
//
// Values are resolved in order: built-in defaults, then an optional YAML file
// (pointed at by VIZCHAT_CONFIG or passed to LoadFile), then environment
// variables. Environment always wins so deployments can override a checked-in
// config file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	MCP      MCPConfig      `yaml:"mcp"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host to bind. Empty means all interfaces.
	Host string `yaml:"host"`

	// Port to listen on.
	Port int `yaml:"port"`

	// StaticDir is served at / for the chat UI. Empty disables static serving.
	StaticDir string `yaml:"static_dir"`
}

// ProviderConfig selects and parameterizes the LLM backend.
type ProviderConfig struct {
	// Name is the provider identifier: "openai" or "bedrock".
	Name string `yaml:"name"`

	// Model is the provider-specific model identifier.
	Model string `yaml:"model"`

	// Temperature for sampling, 0..1.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// OpenAIAPIKey authenticates against the OpenAI API.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIBaseURL overrides the OpenAI endpoint (proxies, compatible APIs).
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// AWSRegion for Bedrock. Credentials come from the standard AWS chain
	// unless the explicit pair below is set.
	AWSRegion          string `yaml:"aws_region"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`

	// SystemPrompt overrides the built-in analyst prompt when non-empty.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxIterations caps agent tool loops per turn.
	MaxIterations int `yaml:"max_iterations"`
}

// MCPConfig configures the tool server connection.
type MCPConfig struct {
	// Transport is "http" or "stdio".
	Transport string `yaml:"transport"`

	// URL of the streamable HTTP endpoint, used when Transport is "http".
	URL string `yaml:"url"`

	// Command and Args spawn a local server when Transport is "stdio".
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8000,
			StaticDir: "web/static",
		},
		Provider: ProviderConfig{
			Name:          "openai",
			Model:         "gpt-4.1",
			Temperature:   0,
			MaxIterations: 10,
		},
		MCP: MCPConfig{
			Transport: "http",
			URL:       "http://localhost:3927/tableau-mcp",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by VIZCHAT_CONFIG, and environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("VIZCHAT_CONFIG"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file
// layer; a non-empty path that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "HOST")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.StaticDir, "STATIC_DIR")

	setString(&cfg.Provider.Name, "MODEL_PROVIDER")
	setString(&cfg.Provider.Model, "MODEL_USED")
	setFloat(&cfg.Provider.Temperature, "MODEL_TEMPERATURE")
	setInt(&cfg.Provider.MaxTokens, "MODEL_MAX_TOKENS")
	setInt(&cfg.Provider.MaxIterations, "AGENT_MAX_ITERATIONS")
	setString(&cfg.Provider.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Provider.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Provider.AWSRegion, "AWS_REGION")
	setString(&cfg.Provider.AWSAccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.Provider.AWSSecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.Provider.SystemPrompt, "SYSTEM_PROMPT")

	setString(&cfg.MCP.Transport, "MCP_TRANSPORT")
	setString(&cfg.MCP.URL, "MCP_HTTP_URL")
	setString(&cfg.MCP.Command, "MCP_COMMAND")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name must not be empty")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 1 {
		return fmt.Errorf("temperature %g out of range [0, 1]", c.Provider.Temperature)
	}
	if c.Provider.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.Provider.MaxIterations)
	}
	switch strings.ToLower(c.MCP.Transport) {
	case "http":
		if c.MCP.URL == "" {
			return fmt.Errorf("mcp.url is required for http transport")
		}
	case "stdio":
		if c.MCP.Command == "" {
			return fmt.Errorf("mcp.command is required for stdio transport")
		}
	default:
		return fmt.Errorf("unknown mcp transport %q (supported: http, stdio)", c.MCP.Transport)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
