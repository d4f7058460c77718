package engine

import "fmt"

// UnavailableError means the engine process could not be started at all.
// Fatal for the verification; not retried.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("analysis engine unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ExecutionError means the engine ran but exited non-zero or reported an
// explicit error field in its output.
type ExecutionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("analysis engine failed (exit %d): %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("analysis engine failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// MalformedOutputError means the engine's output contained no parseable JSON
// object matching the contract.
type MalformedOutputError struct {
	Output string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("analysis engine produced no valid JSON output: %q", e.Output)
}
