package gate

import (
	"fmt"
	"sort"
	"strings"
)

// findForbiddenKey walks keys (never values) of v up to maxDepth levels and
// returns the path of the first key in forbidden. Keys are visited in sorted
// order so the reported path is stable.
func findForbiddenKey(v any, forbidden map[string]struct{}, maxDepth int) (string, bool) {
	return scanKeys(v, "$", forbidden, 0, maxDepth)
}

func scanKeys(v any, at string, forbidden map[string]struct{}, depth, maxDepth int) (string, bool) {
	if depth >= maxDepth {
		return "", false
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, bad := forbidden[strings.ToLower(k)]; bad {
				return at + "." + k, true
			}
		}
		for _, k := range keys {
			if p, ok := scanKeys(t[k], at+"."+k, forbidden, depth+1, maxDepth); ok {
				return p, true
			}
		}
	case []any:
		for i, el := range t {
			if p, ok := scanKeys(el, fmt.Sprintf("%s[%d]", at, i), forbidden, depth+1, maxDepth); ok {
				return p, true
			}
		}
	}
	return "", false
}
