package acquire

import "strings"

// MatchesTitle reports whether a daemon torrent name plausibly corresponds
// to a search result title. Indexers and daemons rewrite names freely, so
// the match is fuzzy: a substring hit in either direction counts, as does
// any sufficiently long word of the title appearing in the name.
func MatchesTitle(title, name string) bool {
	t := strings.ToLower(title)
	n := strings.ToLower(name)

	if strings.Contains(n, t) || strings.Contains(t, n) {
		return true
	}

	for _, word := range strings.Fields(t) {
		if len(word) > 3 && strings.Contains(n, word) {
			return true
		}
	}

	return false
}
