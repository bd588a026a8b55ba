package review

import "fmt"

// ValidationError reports a malformed mutation request: a duplicate activity
// identifier, empty content where content is required, or a reference of the
// wrong shape. The session state is unchanged when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "review: invalid activity: " + e.Reason }

// NotFoundError reports that an operation referenced an activity identifier
// that does not resolve to a currently visible activity.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("review: activity %q not found or not visible", e.ID)
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
