package driver

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// RuntimeError is a custom error type for runtime errors,
// such as a capture tool missing from the host
type RuntimeError struct {
	msg string
	err error
}

func NewRuntimeError(msg string) *RuntimeError {
	return &RuntimeError{msg: msg}
}

// WrapRuntimeError creates a RuntimeError that keeps err in the chain
func WrapRuntimeError(msg string, err error) *RuntimeError {
	return &RuntimeError{msg: msg, err: err}
}

func (e *RuntimeError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *RuntimeError) Unwrap() error {
	return e.err
}
