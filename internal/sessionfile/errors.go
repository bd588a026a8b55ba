package sessionfile

import "fmt"

// FormatError reports a session file whose structure cannot be understood:
// unparseable syntax, a non-map document, activities that are not a list, or
// an unknown activity type. Callers treat it as "leave the in-memory session
// alone" rather than as fatal.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "sessionfile: " + e.Reason
	}
	return fmt.Sprintf("sessionfile: %s: %s", e.Path, e.Reason)
}

func formatErrf(path, format string, args ...interface{}) error {
	return &FormatError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
