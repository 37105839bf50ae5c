package triage

import "strings"

// MinTokenLen filters out short filler words without a stop-word list.
const MinTokenLen = 4

// Tokenize normalizes free text into a set of significant word tokens:
// lowercased, non-alphanumeric characters treated as whitespace, tokens
// shorter than MinTokenLen dropped. Deterministic and pure.
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) >= MinTokenLen {
			set[f] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| for two token sets, defined as 0 when the
// union is empty. Symmetric and always in [0,1].
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
