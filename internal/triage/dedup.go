package triage

// BestMatch tokenizes the new description, scores it against every candidate,
// and returns the highest-scoring candidate when its similarity clears
// DupThreshold (inclusive). On exact score ties the first candidate in list
// order wins. Pure function, no I/O.
func BestMatch(description string, candidates []Candidate) (Match, bool) {
	a := Tokenize(description)

	var best Match
	for _, c := range candidates {
		score := Jaccard(a, Tokenize(c.Description))
		if score > best.Similarity {
			best = Match{Candidate: c, Similarity: score}
		}
	}

	if best.Similarity >= DupThreshold {
		return best, true
	}
	return Match{}, false
}
