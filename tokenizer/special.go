package tokenizer

import (
	"slices"
	"strings"
)

// fragment is a piece of input text and, once resolved, its token ids.
type fragment struct {
	value string
	ids   []int32
}

// splitSpecialTokens splits s into fragments, extracting special tokens
// defined in the vocabulary. Special tokens are processed in vocabulary
// order; earlier tokens take priority at overlapping positions.
func splitSpecialTokens(s string, vocab *Vocabulary) []fragment {
	fragments := []fragment{{value: s}}
	for _, id := range vocab.SpecialVocabulary() {
		special := string(vocab.Bytes(id))
		if special == "" || !strings.Contains(s, special) {
			continue
		}

		for i := 0; i < len(fragments); i++ {
			frag := fragments[i]
			if len(frag.ids) > 0 {
				continue
			}

			var middle []fragment
			switch idx := strings.Index(frag.value, special); {
			case idx < 0:
				middle = append(middle, frag)
			case idx > 0:
				middle = append(middle, fragment{value: frag.value[:idx]})
				fallthrough
			default:
				middle = append(middle, fragment{value: special, ids: []int32{id}})
				if rest := frag.value[idx+len(special):]; rest != "" {
					middle = append(middle, fragment{value: rest})
				}
			}

			fragments = slices.Replace(fragments, i, i+1, middle...)
		}
	}

	return fragments
}
