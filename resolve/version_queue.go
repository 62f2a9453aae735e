package resolve

// buildCandidateQueue filters available against requirement req and
// orders the survivors the way spec §4.G's tie-breaking rule demands:
// the pinned version first (if pinned and present and the identity is
// not in the update set), then the remaining candidates highest version
// first. Prerelease versions are excluded unless req is an exact pin on
// that exact prerelease (spec: "the most recent prerelease only if a
// requirement explicitly opts in").
func buildCandidateQueue(req Requirement, available []SemVersion, pinned *SemVersion) []SemVersion {
	filtered := make([]SemVersion, 0, len(available))
	for _, v := range available {
		if v.IsPrerelease() {
			if !(req.Kind == RequirementExact && req.Exact.Compare(v) == 0) {
				continue
			}
		}
		if !req.Matches(v) {
			continue
		}
		filtered = append(filtered, v)
	}

	// available is already sorted descending (Repository.Tags/Cache.Tags
	// guarantee this); filtering preserves order.
	if pinned == nil {
		return filtered
	}
	for i, v := range filtered {
		if v.Compare(*pinned) == 0 {
			reordered := make([]SemVersion, 0, len(filtered))
			reordered = append(reordered, v)
			reordered = append(reordered, filtered[:i]...)
			reordered = append(reordered, filtered[i+1:]...)
			return reordered
		}
	}
	return filtered
}
