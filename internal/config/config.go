package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Gate       Gate       `yaml:"gate"`
	Enrichment Enrichment `yaml:"enrichment"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL       string `yaml:"url"`
	Community string `yaml:"community"`
}

// Gate holds the quality gate thresholds. A post must clear every
// minimum and reach the total threshold before enrichment runs.
type Gate struct {
	Threshold     float64 `yaml:"threshold"`
	MinEngagement int     `yaml:"min_engagement"`
	MinComments   int     `yaml:"min_comments"`
	MinKeywords   int     `yaml:"min_keywords"`
}

type Enrichment struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	OllamaURL       string  `yaml:"ollama_url"`
	OpenAIModel     string  `yaml:"openai_model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	MaxTokens       int     `yaml:"max_tokens"`
	Workers         int     `yaml:"workers"`
	RequestsPerMin  int     `yaml:"requests_per_minute"`
	CostCeilingUSD  float64 `yaml:"cost_ceiling_usd"`
	StageTimeoutSec int     `yaml:"stage_timeout_seconds"`
	Weights         Weights `yaml:"weights"`
}

// Weights are the dimension weights for the final opportunity score.
// They must sum to 1.0.
type Weights struct {
	MarketDemand          float64 `yaml:"market_demand"`
	PainIntensity         float64 `yaml:"pain_intensity"`
	MonetizationPotential float64 `yaml:"monetization_potential"`
	MarketGap             float64 `yaml:"market_gap"`
	TechnicalFeasibility  float64 `yaml:"technical_feasibility"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for oppscan.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "oppscan")
}

// DataDir returns the XDG data directory for oppscan.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "oppscan")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/oppscan/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'oppscan init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Gate: Gate{
			Threshold:     55,
			MinEngagement: 5,
			MinComments:   3,
			MinKeywords:   1,
		},
		Enrichment: Enrichment{
			Provider:        "ollama",
			Model:           "qwen2.5:7b",
			OllamaURL:       "http://localhost:11434",
			OpenAIModel:     "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			MaxTokens:       1024,
			Workers:         4,
			RequestsPerMin:  30,
			CostCeilingUSD:  5.0,
			StageTimeoutSec: 90,
			Weights: Weights{
				MarketDemand:          0.25,
				PainIntensity:         0.25,
				MonetizationPotential: 0.20,
				MarketGap:             0.15,
				TechnicalFeasibility:  0.15,
			},
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Enrichment.Weights.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (w Weights) validate() error {
	sum := w.MarketDemand + w.PainIntensity + w.MonetizationPotential + w.MarketGap + w.TechnicalFeasibility
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("score weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
