// Package config loads settings from defaults, an optional YAML file and
// EXAMPREP_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix starts every environment override. A double underscore marks
// nesting: EXAMPREP_LLM__MODEL sets llm.model.
const EnvPrefix = "EXAMPREP_"

// DefaultPath is the config file read when none is given.
const DefaultPath = "examprep.yaml"

// Config is the top-level configuration.
type Config struct {
	SourceDir  string           `koanf:"source_dir"`
	ImageDir   string           `koanf:"image_dir"`
	Log        LogConfig        `koanf:"log"`
	HTTP       HTTPConfig       `koanf:"http"`
	Embedder   EmbedderConfig   `koanf:"embedder"`
	Index      IndexConfig      `koanf:"index"`
	LLM        LLMConfig        `koanf:"llm"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Generation GenerationConfig `koanf:"generation"`
	GitHub     GitHubConfig     `koanf:"github"`
	MCP        MCPConfig        `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

type HTTPConfig struct {
	Port            int           `koanf:"port"`
	AllowAllOrigins bool          `koanf:"allow_all_origins"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

type EmbedderConfig struct {
	Provider  string `koanf:"provider"` // hashing, openai or ollama
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
	BaseURL   string `koanf:"base_url"`
	BatchSize int    `koanf:"batch_size"`
}

type IndexConfig struct {
	Backend          string `koanf:"backend"` // memory or qdrant
	QdrantHost       string `koanf:"qdrant_host"`
	QdrantPort       int    `koanf:"qdrant_port"`
	CollectionPrefix string `koanf:"collection_prefix"`
}

type LLMConfig struct {
	BaseURL          string        `koanf:"base_url"`
	Model            string        `koanf:"model"`
	APIKeyEnv        string        `koanf:"api_key_env"`
	Temperature      float64       `koanf:"temperature"`
	MaxTokens        int           `koanf:"max_tokens"`
	Timeout          time.Duration `koanf:"timeout"`
	MaxAttempts      int           `koanf:"max_attempts"`
	RateLimitBackoff time.Duration `koanf:"rate_limit_backoff"`
	TransientBackoff time.Duration `koanf:"transient_backoff"`
	CallDelay        time.Duration `koanf:"call_delay"`
}

// APIKey reads the key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

type ExtractionConfig struct {
	MinCandidateLength   int     `koanf:"min_candidate_length"`
	CaptionDistance      float64 `koanf:"caption_distance"`
	AssociationThreshold float64 `koanf:"association_threshold"`
	ImageContextChars    int     `koanf:"image_context_chars"`
}

type GenerationConfig struct {
	DefaultCount  int `koanf:"default_count"`
	MaxCount      int `koanf:"max_count"`
	PoolFactor    int `koanf:"pool_factor"`
	MinTextLength int `koanf:"min_text_length"`
	PromptChars   int `koanf:"prompt_chars"`
}

type GitHubConfig struct {
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
	Path  string `koanf:"path"`
}

type MCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		SourceDir: "./pdfs",
		ImageDir:  "./pdf_images",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Port:            5000,
			AllowAllOrigins: true,
			RequestTimeout:  10 * time.Minute,
		},
		Embedder: EmbedderConfig{
			Provider:  "hashing",
			Dimension: 384,
			BatchSize: 64,
		},
		Index: IndexConfig{
			Backend:          "memory",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			CollectionPrefix: "examprep",
		},
		LLM: LLMConfig{
			BaseURL:          "https://api.groq.com/openai/v1",
			Model:            "llama3-8b-8192",
			APIKeyEnv:        "GROQ_API_KEY",
			Temperature:      0.7,
			MaxTokens:        500,
			Timeout:          30 * time.Second,
			MaxAttempts:      3,
			RateLimitBackoff: 5 * time.Second,
			TransientBackoff: 2 * time.Second,
			CallDelay:        2 * time.Second,
		},
		Extraction: ExtractionConfig{
			MinCandidateLength:   50,
			CaptionDistance:      100,
			AssociationThreshold: 0.3,
			ImageContextChars:    500,
		},
		Generation: GenerationConfig{
			DefaultCount:  10,
			MaxCount:      25,
			PoolFactor:    3,
			MinTextLength: 30,
			PromptChars:   500,
		},
		GitHub: GitHubConfig{
			Path: "pdfs",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
	}
}

// Load reads the YAML file at path when it exists, overlays environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps EXAMPREP_LLM__CALL_DELAY to llm.call_delay.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

var (
	validEmbedders = map[string]bool{"hashing": true, "openai": true, "ollama": true}
	validBackends  = map[string]bool{"memory": true, "qdrant": true}
	validFormats   = map[string]bool{"text": true, "json": true}
)

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.ImageDir == "" {
		return fmt.Errorf("image_dir is required")
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	if !validEmbedders[c.Embedder.Provider] {
		return fmt.Errorf("invalid embedder.provider %q: must be one of hashing, openai, ollama", c.Embedder.Provider)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder.dimension must be positive")
	}
	if !validBackends[c.Index.Backend] {
		return fmt.Errorf("invalid index.backend %q: must be memory or qdrant", c.Index.Backend)
	}
	if c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("llm.max_attempts must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.CallDelay < 0 || c.LLM.RateLimitBackoff < 0 || c.LLM.TransientBackoff < 0 {
		return fmt.Errorf("llm delays must be non-negative")
	}
	if c.Extraction.MinCandidateLength < 0 || c.Extraction.CaptionDistance < 0 {
		return fmt.Errorf("extraction limits must be non-negative")
	}
	if c.Generation.MaxCount <= 0 || c.Generation.PoolFactor <= 0 || c.Generation.DefaultCount <= 0 {
		return fmt.Errorf("generation counts must be positive")
	}
	return nil
}
