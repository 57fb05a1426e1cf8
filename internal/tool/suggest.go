package tool

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

const maxSuggestions = 3

// suggest returns registered names close to an unknown one: fuzzy
// subsequence matches first, then case-insensitive substring matches.
func suggest(name string, names []string) []string {
	if name == "" || len(names) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] && len(out) < maxSuggestions {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, m := range fuzzy.Find(name, names) {
		add(m.Str)
	}

	lower := strings.ToLower(name)
	for _, n := range names {
		ln := strings.ToLower(n)
		if strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			add(n)
		}
	}
	return out
}
