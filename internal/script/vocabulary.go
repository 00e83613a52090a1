// ABOUTME: Normalized word sets for greeting and menu-navigation matching
// ABOUTME: Matching is trim plus lowercase followed by an exact set lookup

package script

import "strings"

type vocabulary map[string]struct{}

func newVocabulary(words []string) vocabulary {
	v := make(vocabulary, len(words))
	for _, w := range words {
		v[normalize(w)] = struct{}{}
	}
	return v
}

func (v vocabulary) has(text string) bool {
	_, ok := v[normalize(text)]
	return ok
}

// normalize trims surrounding whitespace and lowercases text.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
