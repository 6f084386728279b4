package config

import "time"

// EvaultConfig is the top-level configuration of the evault binary.
type EvaultConfig struct {
	// Server points at the evault backend API.
	Server ServerConfig `yaml:"server"`

	// Web configures the local web front started by `evault serve`.
	Web WebConfig `yaml:"web"`

	// Auth configures terminal sign-in.
	Auth AuthConfig `yaml:"auth"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`
}

// ServerConfig describes the backend.
type ServerConfig struct {
	URL       string        `yaml:"url"`
	APIPrefix string        `yaml:"apiPrefix,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// WebConfig describes the local web front.
type WebConfig struct {
	// Listen is the address the web front binds to.
	Listen string `yaml:"listen"`

	// PublicURL is the origin browsers use to reach the web front. Sign-in
	// targets on this origin are followed as in-app navigations.
	PublicURL string `yaml:"publicURL,omitempty"`

	// TemplatesDir overrides the embedded page templates and is watched
	// for changes.
	TemplatesDir string `yaml:"templatesDir,omitempty"`

	// SecureCookies marks relayed session cookies Secure.
	SecureCookies bool `yaml:"secureCookies,omitempty"`

	// StrictDeviceType rejects callbacks whose device_type differs from the
	// one the web front started the sign-in with.
	StrictDeviceType bool `yaml:"strictDeviceType,omitempty"`
}

// AuthConfig describes terminal sign-in.
type AuthConfig struct {
	TokenDir     string        `yaml:"tokenDir,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	PollAttempts int           `yaml:"pollAttempts,omitempty"`
}
