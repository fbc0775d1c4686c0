package platform

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// sortedKeys returns the keys of m in lexical order, so that rendered wire
// payloads stay deterministic.
func sortedKeys(m map[string]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)

	return keys
}
