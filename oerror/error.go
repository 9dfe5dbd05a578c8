package oerror

import "fmt"

// EngineError is an error raised by the simulation engine's own invariants, as
// opposed to an error caused by invalid input from gameplay code.
type EngineError struct {
	Err string
}

func New(format string, args ...interface{}) *EngineError {
	return &EngineError{Err: fmt.Sprintf(format, args...)}
}

func (e *EngineError) Error() string {
	return e.Err
}
