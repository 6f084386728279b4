// Package config provides configuration management for evault.
//
// Configuration is read from config.yaml inside a single directory. The
// default directory is ~/.config/evault; commands accept --config-path to
// point elsewhere. A missing file yields the defaults.
//
// # Example
//
//	server:
//	  url: https://vault.example.com
//	  timeout: 10s
//	web:
//	  listen: 127.0.0.1:5173
//	  publicURL: https://vault.example.com
//	  templatesDir: /etc/evault/templates
//	auth:
//	  pollInterval: 5s
//	  pollAttempts: 10
//	logLevel: info
//
// # Environment
//
// EVAULT_SERVER_URL and EVAULT_LOG_LEVEL override the corresponding keys.
//
// # Validation
//
// LoadConfig validates the merged configuration and reports every problem
// at once: the *FileError it returns wraps a ValidationErrors.
package config
