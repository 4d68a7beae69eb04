// Package config holds the backend settings: model provider, generation
// defaults, per-model capabilities, and the caption archive endpoint.
// Environment variables (CRAFTY_*) override the config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crafty/internal/llm"
)

type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`

	CaptionSearchURL string  `json:"caption_search_url,omitempty"`
	SearchLimit      int     `json:"search_limit,omitempty"`
	SearchThreshold  float64 `json:"search_threshold,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// Models pins capability descriptors per model name, resolved here at
	// configuration time rather than sniffed from names at call time.
	Models map[string]llm.Capabilities `json:"models,omitempty"`
}

func Default() *Config {
	return &Config{
		Provider:        string(llm.BackendOllama),
		Model:           "llama3.2",
		SearchLimit:     8,
		SearchThreshold: 0.35,
	}
}

// DefaultPath is ~/.crafty/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".crafty", "config.json")
	}
	return filepath.Join(home, ".crafty", "config.json")
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv layers CRAFTY_* environment variables over the file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CRAFTY_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("CRAFTY_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CRAFTY_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CRAFTY_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CRAFTY_" + strings.ToUpper(c.Provider) + "_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CRAFTY_CAPTION_SEARCH_URL"); v != "" {
		c.CaptionSearchURL = v
	}
	if v := os.Getenv("CRAFTY_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SearchLimit = n
		}
	}
	if v := os.Getenv("CRAFTY_SEARCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SearchThreshold = f
		}
	}
}

// Backend returns the configured provider backend.
func (c *Config) Backend() llm.Backend {
	return llm.Backend(strings.ToLower(strings.TrimSpace(c.Provider)))
}

// Capabilities resolves the capability descriptor for the configured model,
// falling back to the backend baseline when the model is not pinned.
func (c *Config) Capabilities() llm.Capabilities {
	if caps, ok := c.Models[c.Model]; ok {
		return caps
	}
	return llm.DefaultCapabilities(c.Backend())
}

// AdapterConfig assembles the adapter construction parameters.
func (c *Config) AdapterConfig() llm.AdapterConfig {
	defaults := llm.Options{}
	if c.Temperature != nil {
		defaults.Temperature = c.Temperature
	}
	if c.MaxTokens != nil {
		defaults.MaxTokens = c.MaxTokens
	}
	return llm.AdapterConfig{
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		Defaults: defaults,
		Caps:     c.Capabilities(),
	}
}
