// Package strings provides string manipulation utilities.
package strings

// Dedupe removes duplicates and empty strings from a slice without altering
// the remaining values. Order of first occurrence is preserved.
//
// Example:
//
//	Dedupe([]string{"a@x", "", "b@x", "a@x"})
//	// Returns: []string{"a@x", "b@x"}
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}
