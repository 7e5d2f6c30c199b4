package normalize

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// PhoneticKey returns a Double Metaphone key for a product name: the
// primary metaphone of each token, space-joined. Products are indexed by
// this key so sound-alike receipt spellings prefilter to the same pool.
func PhoneticKey(name string) string {
	tokens := strings.Fields(CleanText(name))
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		primary, _ := matchr.DoubleMetaphone(token)
		if primary != "" {
			keys = append(keys, primary)
		}
	}
	return strings.Join(keys, " ")
}
