package core

import "github.com/pkg/errors"

// FieldError is a rejected input field and the reason shown to the client.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a rejected request input. It is answered with 400.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "invalid input"
	}
	return err.Err.Error()
}

// FieldMap returns the reasons by field name, or nil when no field is named.
func (err ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	flds := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

// stopped reports a component that can no longer serve: the process must shut down.
type stopped struct {
	reason string
}

func NewShutdownError(reason string) error {
	return &stopped{reason: reason}
}

func (s *stopped) Error() string { return s.reason }

// IsShutdown reports whether the cause of err requires a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*stopped)
	return ok
}
