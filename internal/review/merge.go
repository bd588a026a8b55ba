package review

// MergeFrom folds another session's log into this one by activity identity:
// activities whose ids are already present are skipped, novel ones are
// appended in the other log's order. Tracked files are unioned. Returns the
// number of activities appended.
//
// Merging the same log twice is a no-op the second time, and merge order
// never changes which activities end up present, only their interleaving.
func (s *Session) MergeFrom(theirs *Session) int {
	if theirs == nil {
		return 0
	}
	added := s.mergeActivities(theirs.log.All())
	for p := range theirs.tracked {
		s.tracked[p] = struct{}{}
	}
	return added
}

// MergeActivities folds a decoded activity list into the session log using
// the same id-set semantics as MergeFrom.
func (s *Session) MergeActivities(activities []Activity) int {
	return s.mergeActivities(activities)
}

func (s *Session) mergeActivities(activities []Activity) int {
	added := 0
	for _, a := range activities {
		if a.ID == "" || s.log.Has(a.ID) {
			continue
		}
		if err := s.log.Append(a); err != nil {
			continue
		}
		added++
	}
	return added
}
