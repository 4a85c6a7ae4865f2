package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type config struct {
	Addr        string    `yaml:"addr"`
	RulesFile   string    `yaml:"rules_file"`
	HistoryDB   string    `yaml:"history_db"`
	MaxUploadMB int64     `yaml:"max_upload_mb"`
	TLS         tlsConfig `yaml:"tls"`
	MCP         bool      `yaml:"mcp"`
}

type tlsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func defaultConfig() config {
	return config{
		Addr:        ":8420",
		HistoryDB:   "auditlens.db",
		MaxUploadMB: 32,
		MCP:         true,
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string, logger *slog.Logger) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultConfig().MaxUploadMB
	}
	return cfg, nil
}
