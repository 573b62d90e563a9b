package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "payoutbot/core/config"
	"payoutbot/core/database"
)

// Config is the full application configuration: the shared bot settings plus
// the optional session database.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
}

// LoadConfig reads the YAML file, overlays environment variables and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	return &cfg, nil
}
