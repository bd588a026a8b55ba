package review

// Log holds the ordered sequence of activities. Append is the only mutation;
// nothing is ever removed or reordered, which is what makes the exclusion
// tie-breaking in the visibility fold order-insensitive.
type Log struct {
	activities []Activity
	index      map[string]int
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{index: make(map[string]int)}
}

// Append adds the activity at the end of the log. It fails with a
// ValidationError when the identifier is empty or collides with an existing
// entry; it performs no deeper semantic checks, which belong to the session
// mutators.
func (l *Log) Append(a Activity) error {
	if a.ID == "" {
		return validationf("empty identifier")
	}
	if !KnownType(a.Type) {
		return validationf("unknown activity type %q", a.Type)
	}
	if _, exists := l.index[a.ID]; exists {
		return validationf("duplicate identifier %q", a.ID)
	}
	l.index[a.ID] = len(l.activities)
	l.activities = append(l.activities, a)
	return nil
}

// All returns the activities in log order. The returned slice is a copy;
// callers can range over it repeatedly without observing later appends.
func (l *Log) All() []Activity {
	out := make([]Activity, len(l.activities))
	copy(out, l.activities)
	return out
}

// Len returns the number of activities appended so far.
func (l *Log) Len() int { return len(l.activities) }

// Has reports whether an activity with the given identifier exists.
func (l *Log) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Get returns the activity with the given identifier.
func (l *Log) Get(id string) (Activity, bool) {
	i, ok := l.index[id]
	if !ok {
		return Activity{}, false
	}
	return l.activities[i], true
}

// IDs returns the identifiers in append order.
func (l *Log) IDs() []string {
	ids := make([]string, len(l.activities))
	for i, a := range l.activities {
		ids[i] = a.ID
	}
	return ids
}
