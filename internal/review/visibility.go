package review

// exclusions holds the identifier sets that hide activities from projections.
// Exclusion is monotonic: an identifier present in either set stays hidden no
// matter which rule fired first or in which order activities were merged.
type exclusions struct {
	retracted  map[string]struct{}
	superseded map[string]struct{}
}

func collectExclusions(activities []Activity) exclusions {
	ex := exclusions{
		retracted:  make(map[string]struct{}),
		superseded: make(map[string]struct{}),
	}
	for _, a := range activities {
		switch a.Type {
		case TypeRetraction:
			for _, id := range a.Addresses {
				ex.retracted[id] = struct{}{}
			}
		case TypeComment:
			for _, id := range a.Supersedes {
				ex.superseded[id] = struct{}{}
			}
		}
	}
	return ex
}

// hidden reports whether the identifier is excluded from visibility.
func (ex exclusions) hidden(id string) bool {
	if _, ok := ex.retracted[id]; ok {
		return true
	}
	_, ok := ex.superseded[id]
	return ok
}

// Visible folds the log into the activities a consumer should see right now:
// comments and review marks whose identifiers are neither retracted nor
// superseded, in original log order. Resolutions and retractions are
// metadata and never appear in the output. This is a pure, total function
// over any log; it cannot fail.
func Visible(activities []Activity) []Activity {
	ex := collectExclusions(activities)
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		switch a.Type {
		case TypeComment, TypeReviewMark:
			if !ex.hidden(a.ID) {
				out = append(out, a)
			}
		}
	}
	return out
}

// Visible is the log-level convenience form of the package function.
func (l *Log) Visible() []Activity {
	return Visible(l.activities)
}
