package diffsource

import (
	"fmt"
	"strings"
)

// DiffUnavailableError means the underlying tool could not produce a diff:
// git or gh missing, not a repository, unknown ref, network failure. It
// carries the failing command and its stderr so the message is actionable.
type DiffUnavailableError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *DiffUnavailableError) Error() string {
	msg := fmt.Sprintf("diffsource: %s failed", e.Cmd)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return msg + ": " + s
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DiffUnavailableError) Unwrap() error { return e.Err }
