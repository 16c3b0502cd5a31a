package rag

// fingerprintLen is how many leading characters of content take part in the
// duplicate fingerprint. Two passages from the same source and page whose
// first 120 characters match are treated as the same passage, even if they
// diverge later. Kept at 120 for compatibility with existing indexes.
const fingerprintLen = 120

type fingerprint struct {
	source string
	page   int
	prefix string
}

// Deduplicate returns a new slice with duplicate passages removed, keeping
// the first occurrence of each fingerprint in its original position. The
// input is not modified. Running it twice yields the same result as once.
func Deduplicate(passages []Passage) []Passage {
	seen := make(map[fingerprint]struct{}, len(passages))
	cleaned := make([]Passage, 0, len(passages))

	for _, p := range passages {
		key := fingerprint{
			source: p.Source,
			page:   p.Page,
			prefix: contentPrefix(p.Content, fingerprintLen),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, p)
	}

	return cleaned
}

// contentPrefix returns the first n characters of s, counting runes so that
// multi-byte text fingerprints the same way regardless of encoding length.
func contentPrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
