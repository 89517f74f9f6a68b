// Package config loads agentrelay's process configuration: a YAML file with
// ${ENV} expansion, then environment overrides, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/intent"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither -config nor AGENTRELAY_CONFIG is set.
const DefaultPath = "config/agentrelay.yaml"

// Built-in model defaults: DeepSeek through its OpenAI compatible API.
const (
	DefaultModelName = "deepseek-chat"
	DefaultBaseURL   = "https://api.deepseek.com/v1"
)

// Config is the complete process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Team       TeamConfig       `yaml:"team"`
	Agents     AgentsConfig     `yaml:"agents"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP transport and the upload store.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	MaxDocuments    int           `yaml:"max_documents"`
}

// ModelConfig selects and configures the language model shared by all
// agents.
type ModelConfig struct {
	Provider    string        `yaml:"provider"` // openai, anthropic or mock
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// TeamConfig configures the producer/reviewer pipeline.
type TeamConfig struct {
	// MaxTurns is the hard cap on turns per pipeline run; it must be positive.
	MaxTurns int `yaml:"max_turns"`
	// Terminal lists the agents whose completed turn ends a pipeline run.
	Terminal []string `yaml:"terminal"`
	// ApprovalKeyword additionally ends a run when a turn mentions it.
	ApprovalKeyword string `yaml:"approval_keyword"`
}

// PersonaConfig describes one endpoint.
type PersonaConfig struct {
	Name        string         `yaml:"name"`
	Instruction string         `yaml:"instruction"`
	Info        core.AgentInfo `yaml:"info"`
	MaxHistory  int            `yaml:"max_history"`
}

// AgentsConfig holds the four personas of a deployment.
type AgentsConfig struct {
	Solo     PersonaConfig `yaml:"solo"`
	Producer PersonaConfig `yaml:"producer"`
	Reviewer PersonaConfig `yaml:"reviewer"`
	Analyst  PersonaConfig `yaml:"analyst"`
	// FallbackReply is returned by the sync path when no reply was produced.
	FallbackReply string `yaml:"fallback_reply"`
}

// ClassifierConfig configures routing between the solo assistant and the
// pipeline.
type ClassifierConfig struct {
	// Phrases are used when PhrasesFile is empty.
	Phrases     *intent.Phrases `yaml:"phrases"`
	PhrasesFile string          `yaml:"phrases_file"`
	Watch       bool            `yaml:"watch"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration: a DeepSeek hosted OpenAI
// compatible model and the test-case-design personas.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
			MaxDocuments:    100,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        DefaultModelName,
			BaseURL:     DefaultBaseURL,
			Temperature: 0.7,
			MaxTokens:   4096,
			CallTimeout: 2 * time.Minute,
		},
		Team: TeamConfig{
			MaxTurns: 50,
			Terminal: []string{"critic"},
		},
		Agents: defaultAgents(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration from path (or AGENTRELAY_CONFIG, or
// DefaultPath). A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("AGENTRELAY_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyProviderDefaults(&cfg.Model)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENTRELAY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTRELAY_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Model.Provider == "anthropic" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("AGENTRELAY_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Team.MaxTurns = n
		}
	}
	if v := os.Getenv("AGENTRELAY_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.CallTimeout = d
		}
	}
	if v := os.Getenv("AGENTRELAY_PHRASES_FILE"); v != "" {
		cfg.Classifier.PhrasesFile = v
	}
	if v := os.Getenv("AGENTRELAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AGENTRELAY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// applyProviderDefaults drops the built-in DeepSeek model and endpoint when
// another provider is selected without naming its own, so that provider's
// adapter defaults apply.
func applyProviderDefaults(mc *ModelConfig) {
	if mc.Provider == "openai" {
		return
	}
	if mc.BaseURL == DefaultBaseURL {
		mc.BaseURL = ""
	}
	if mc.Name == DefaultModelName {
		mc.Name = ""
		if mc.Provider == "mock" {
			mc.Name = "mock"
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	if c.Team.MaxTurns < 1 {
		return fmt.Errorf("config: team.max_turns must be at least 1, got %d", c.Team.MaxTurns)
	}
	for _, p := range []PersonaConfig{c.Agents.Solo, c.Agents.Producer, c.Agents.Reviewer, c.Agents.Analyst} {
		if p.Name == "" {
			return fmt.Errorf("config: every agent needs a name")
		}
	}
	if c.Agents.Producer.Name == c.Agents.Reviewer.Name {
		return fmt.Errorf("config: producer and reviewer must have distinct names")
	}
	for _, name := range c.Team.Terminal {
		if name != c.Agents.Producer.Name && name != c.Agents.Reviewer.Name {
			return fmt.Errorf("config: team.terminal names %q, which is neither the producer %q nor the reviewer %q",
				name, c.Agents.Producer.Name, c.Agents.Reviewer.Name)
		}
	}
	return nil
}

// Phrases returns the classifier phrase lists: the configured file, the
// inline lists or the built-in defaults, in that order.
func (c *Config) Phrases() (intent.Phrases, error) {
	if c.Classifier.PhrasesFile != "" {
		return intent.LoadPhrases(c.Classifier.PhrasesFile)
	}
	if c.Classifier.Phrases != nil {
		return c.Classifier.Phrases.Normalize(), nil
	}
	return intent.DefaultPhrases(), nil
}

// Directory returns the display metadata of all configured agents.
func (c *Config) Directory() *core.Directory {
	entries := make(map[string]core.AgentInfo, 4)
	for _, p := range []PersonaConfig{c.Agents.Solo, c.Agents.Producer, c.Agents.Reviewer, c.Agents.Analyst} {
		info := p.Info
		if info.Name == "" {
			info = core.FallbackInfo(p.Name)
		}
		entries[p.Name] = info
	}
	return core.NewDirectory(entries)
}
