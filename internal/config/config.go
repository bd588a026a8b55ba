// Package config loads tool settings from defaults, an optional TOML file,
// and OPENCODEREVIEW_ environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "OPENCODEREVIEW_"

// Config represents the application configuration.
type Config struct {
	Session struct {
		Format string `koanf:"format"` // yaml or json
	} `koanf:"session"`

	// Author overrides the identity read from git config when set.
	Author struct {
		Name  string `koanf:"name"`
		Email string `koanf:"email"`
	} `koanf:"author"`

	Analysis struct {
		Backend        string  `koanf:"backend"`  // claudecli or langchain
		Provider       string  `koanf:"provider"` // openai, anthropic, googleai, ollama
		Model          string  `koanf:"model"`
		APIKey         string  `koanf:"api_key"`
		BaseURL        string  `koanf:"base_url"`
		MaxTokens      int     `koanf:"max_tokens"`
		Temperature    float64 `koanf:"temperature"`
		TimeoutSeconds int     `koanf:"timeout_seconds"`
	} `koanf:"analysis"`

	Watch struct {
		DebounceMS int `koanf:"debounce_ms"`
	} `koanf:"watch"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`
}

// Debounce returns the watch debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// AnalysisTimeout returns the per-invocation analysis ceiling.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"session.format":           "yaml",
		"analysis.backend":         "claudecli",
		"analysis.timeout_seconds": 120,
		"watch.debounce_ms":        500,
		"log.level":                "info",
	}
}

// LoadConfig loads the configuration. An explicit path must exist; with an
// empty path the default locations are tried and silently skipped when
// absent.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(defaults(), "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./opencodereview.toml", "$HOME/.opencodereview.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// OPENCODEREVIEW_ANALYSIS_MAX_TOKENS -> analysis.max_tokens. Sections
	// are single words, so only the first underscore becomes a separator.
	k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig writes a sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# opencodereview configuration

[session]
# Session file format: yaml or json.
format = "yaml"

[author]
# Overrides the identity read from git config.
#name = "Your Name"
#email = "you@example.com"

[analysis]
# Backend: claudecli (claude command on PATH) or langchain (API client).
backend = "claudecli"
timeout_seconds = 120
# Settings for the langchain backend:
#provider = "anthropic"      # openai, anthropic, googleai, ollama
#model = "claude-3-sonnet-20240229"
#api_key = "your-api-key"
#base_url = ""               # openai-compatible servers and ollama
#max_tokens = 8192
#temperature = 0.2

[watch]
debounce_ms = 500

[log]
level = "info"
#file = "opencodereview.log"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate checks the configuration for values the tool cannot run with.
func Validate(config *Config) error {
	switch strings.ToLower(config.Session.Format) {
	case "yaml", "yml", "json":
	default:
		return fmt.Errorf("session format %q is not supported (want yaml or json)", config.Session.Format)
	}

	switch config.Analysis.Backend {
	case "claudecli":
	case "langchain":
		switch config.Analysis.Provider {
		case "openai", "anthropic", "googleai", "ollama":
		case "":
			return fmt.Errorf("analysis provider is required for the langchain backend")
		default:
			return fmt.Errorf("analysis provider %q is not supported", config.Analysis.Provider)
		}
		if config.Analysis.APIKey == "" && config.Analysis.Provider != "ollama" {
			return fmt.Errorf("analysis api_key is required for provider %s", config.Analysis.Provider)
		}
	case "":
		return fmt.Errorf("analysis backend is required")
	default:
		return fmt.Errorf("analysis backend %q is not supported (want claudecli or langchain)", config.Analysis.Backend)
	}

	if config.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}
	if config.Watch.DebounceMS <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}

	return nil
}
