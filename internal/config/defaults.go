package config

import "time"

const (
	// DefaultServerURL is the backend of a local evault deployment.
	DefaultServerURL = "http://127.0.0.1:8000"

	// DefaultAPIPrefix is where the backend mounts its API.
	DefaultAPIPrefix = "/api/github"

	// DefaultListenAddr is the web front's bind address.
	DefaultListenAddr = "127.0.0.1:5173"

	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 10
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() EvaultConfig {
	return EvaultConfig{
		Server: ServerConfig{
			URL:       DefaultServerURL,
			APIPrefix: DefaultAPIPrefix,
			Timeout:   DefaultTimeout,
		},
		Web: WebConfig{
			Listen:    DefaultListenAddr,
			PublicURL: "http://" + DefaultListenAddr,
		},
		Auth: AuthConfig{
			PollInterval: DefaultPollInterval,
			PollAttempts: DefaultPollAttempts,
		},
		LogLevel: "info",
	}
}
