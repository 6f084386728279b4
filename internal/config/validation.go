package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"evault/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// Validate checks every field and returns all problems at once.
func (c EvaultConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	validateHTTPURL(&errs, "server.url", c.Server.URL, true)
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs.Add("server.apiPrefix", "must start with '/'", c.Server.APIPrefix)
	}
	if c.Server.Timeout < 0 {
		errs.Add("server.timeout", "must not be negative", c.Server.Timeout)
	}

	if _, _, err := net.SplitHostPort(c.Web.Listen); err != nil {
		errs.Add("web.listen", "must be host:port", c.Web.Listen)
	}
	validateHTTPURL(&errs, "web.publicURL", c.Web.PublicURL, false)
	if c.Web.TemplatesDir != "" {
		if info, err := os.Stat(c.Web.TemplatesDir); err != nil || !info.IsDir() {
			errs.Add("web.templatesDir", "must be an existing directory", c.Web.TemplatesDir)
		}
	}

	if c.Auth.PollInterval < 0 {
		errs.Add("auth.pollInterval", "must not be negative", c.Auth.PollInterval)
	}
	if c.Auth.PollAttempts < 0 {
		errs.Add("auth.pollAttempts", "must not be negative", c.Auth.PollAttempts)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", "must be one of debug, info, warn, error", c.LogLevel)
	}
	return errs
}

func validateHTTPURL(errs *ValidationErrors, field, raw string, required bool) {
	if raw == "" {
		if required {
			errs.Add(field, "is required")
		}
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, "must be an absolute http(s) URL", raw)
	}
}
