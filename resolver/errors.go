package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError is raised before any attempt runs when the run cannot be
// configured.
type ConfigError struct {
	Field   string
	Reason  string
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid configuration: missing required environment bindings: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return err != nil && errors.As(err, &configErr)
}
