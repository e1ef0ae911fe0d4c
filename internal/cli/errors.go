package cli

// ConfigError reports invalid invocation or configuration. It is detected
// before any plugin is processed.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
