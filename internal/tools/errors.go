package tools

import "fmt"

// NotFoundError is returned when a requested tool is not registered.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// MissingArgumentError names a required parameter absent from a call.
type MissingArgumentError struct {
	Tool  string
	Param string
}

func (e MissingArgumentError) Error() string {
	return fmt.Sprintf("tool %q: missing required argument %q", e.Tool, e.Param)
}

// InvalidArgumentError names a parameter whose value failed validation or
// coercion.
type InvalidArgumentError struct {
	Tool   string
	Param  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("tool %q: invalid argument %q: %s", e.Tool, e.Param, e.Reason)
}

// ExecutionError wraps a failure from a tool handler.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e ExecutionError) Unwrap() error {
	return e.Err
}
