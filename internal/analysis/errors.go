package analysis

import "fmt"

// BackendUnavailableError reports that an analysis backend could not be
// reached or rejected the request. Review state is never modified when one
// occurs; the answer is simply absent.
type BackendUnavailableError struct {
	Backend string
	Stderr  string // trailing output from a subprocess backend, if any
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	detail := e.Stderr
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("analysis: %s backend unavailable: %s", e.Backend, detail)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}
