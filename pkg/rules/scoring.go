package rules

// Jaccard computes |A∩B| / |A∪B| over token sets. Two empty sets score
// 1.0; exactly one empty set scores 0.0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// isSubset reports whether every member of a is in b.
func isSubset(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		return false
	}
	for token := range a {
		if _, ok := b[token]; !ok {
			return false
		}
	}
	return true
}

// setsEqual reports whether a and b hold the same members.
func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for token := range a {
		if _, ok := b[token]; !ok {
			return false
		}
	}
	return true
}

// intCodesEqual reports whether two auxiliary code sets hold the same members.
func intCodesEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for code := range a {
		if _, ok := b[code]; !ok {
			return false
		}
	}
	return true
}
