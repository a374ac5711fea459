package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dbxmcp/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/dbxmcp"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the per-user configuration
// directory. It panics only when the home directory cannot be resolved,
// which means the environment is too broken to continue anyway.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from the given directory. A missing file
// yields the defaults; a malformed or invalid file is an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if err := Validate(config); err != nil {
		return Config{}, err
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// SaveConfig writes config.yaml to the given directory, creating it if
// necessary. Used by the init command.
func SaveConfig(configPath string, config Config) error {
	if err := os.MkdirAll(configPath, 0o755); err != nil {
		return fmt.Errorf("error creating config directory %s: %w", configPath, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error serializing config: %w", err)
	}

	configFilePath := filepath.Join(configPath, configFileName)
	if err := os.WriteFile(configFilePath, data, 0o600); err != nil {
		return fmt.Errorf("error writing config to %s: %w", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Saved configuration to %s", configFilePath)
	return nil
}
