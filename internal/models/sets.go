package models

// Membership sets (likes, followers, following) travel as JSON arrays.
// These helpers keep them duplicate-free.

// Contains reports whether id is in set.
func Contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// AddUnique returns set with id appended unless already present.
func AddUnique(set []string, id string) []string {
	if Contains(set, id) {
		return set
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	return append(out, id)
}

// Remove returns set without any occurrence of id.
func Remove(set []string, id string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
