package app

import (
	"errors"
	"fmt"
	"slices"
)

// Report formats accepted by Config.ReportFormat.
var reportFormats = []string{"yaml", "json", "text"}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ScenarioPath string // hcl file or directory

	// Ranks is the number of in-process ranks every transfer runs on.
	Ranks int
	// Workers bounds the goroutines each rank uses for per-box loops.
	Workers int
	// Watch reruns the scenario whenever a file under ScenarioPath changes.
	Watch bool

	LogFormat       string
	LogLevel        string
	ReportFormat    string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScenarioPath == "" {
		return nil, errors.New("ScenarioPath is a required configuration field and cannot be empty")
	}
	if cfg.Ranks < 1 {
		return nil, fmt.Errorf("ranks must be at least 1, got %d", cfg.Ranks)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = "yaml"
	}
	if !slices.Contains(reportFormats, cfg.ReportFormat) {
		return nil, fmt.Errorf("unknown report format %q", cfg.ReportFormat)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
