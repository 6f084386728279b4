package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"evault/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/evault"
	configFileName = "config.yaml"

	// EnvServerURL overrides server.url.
	EnvServerURL = "EVAULT_SERVER_URL"
	// EnvLogLevel overrides logLevel.
	EnvLogLevel = "EVAULT_LOG_LEVEL"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/evault.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig reads config.yaml from configPath on top of the defaults,
// applies environment overrides and validates the result. A missing file
// is not an error.
func LoadConfig(configPath string) (EvaultConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return EvaultConfig{}, &FileError{Path: configFilePath, Stage: StageRead, Err: err}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return EvaultConfig{}, &FileError{Path: configFilePath, Stage: StageParse, Line: yamlLine(err), Err: err}
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	applyEnv(&config)
	config.fillDefaults()

	if verrs := config.Validate(); verrs.HasErrors() {
		return EvaultConfig{}, &FileError{Path: configFilePath, Stage: StageValidate, Err: verrs}
	}
	return config, nil
}

func applyEnv(c *EvaultConfig) {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// fillDefaults restores defaults for keys a config file set to zero values.
func (c *EvaultConfig) fillDefaults() {
	d := GetDefaultConfig()
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = d.Server.APIPrefix
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = d.Server.Timeout
	}
	if c.Web.Listen == "" {
		c.Web.Listen = d.Web.Listen
	}
	if c.Web.PublicURL == "" {
		c.Web.PublicURL = "http://" + c.Web.Listen
	}
	if c.Auth.PollInterval == 0 {
		c.Auth.PollInterval = d.Auth.PollInterval
	}
	if c.Auth.PollAttempts == 0 {
		c.Auth.PollAttempts = d.Auth.PollAttempts
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}
