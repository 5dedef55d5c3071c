package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = "8090"
	defaultBackendURL    = "http://localhost:8080"
	defaultStreamTimeout = 2 * time.Minute
)

type config struct {
	Port          string        `yaml:"port"`
	Backend       backendConfig `yaml:"backend"`
	StreamTimeout string        `yaml:"streamTimeout"`
}

type backendConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// loadConfig reads the YAML config file, falling back to defaults and the
// CHAT_BACKEND_URL environment variable when the file or individual fields are
// absent.
func loadConfig(path string) (config, error) {
	cfg := config{}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case !os.IsNotExist(err):
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = os.Getenv("CHAT_BACKEND_URL")
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = defaultBackendURL
	}

	return cfg, nil
}

// streamTimeout parses the configured per-exchange bound. Zero disables it.
func (c config) streamTimeout() (time.Duration, error) {
	if c.StreamTimeout == "" {
		return defaultStreamTimeout, nil
	}
	d, err := time.ParseDuration(c.StreamTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid streamTimeout: %w", err)
	}
	return d, nil
}
