package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotsync/dotsync/internal/utils"
	"github.com/goccy/go-json"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".dotsync", "config.json")
	DefaultServerURL  = "http://localhost:8080"
)

type Config struct {
	// DataDir is the configuration tree being kept in sync.
	DataDir     string `json:"data_dir"`
	Email       string `json:"email"`
	ServerURL   string `json:"server_url"`
	AccessToken string `json:"access_token,omitempty"`

	// Extra doublestar globs excluded from the inventory scan.
	IgnorePatterns []string `json:"ignore_patterns,omitempty"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
