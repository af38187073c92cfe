package tokenizer

import (
	"errors"
	"math"

	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// Greedy segments text into the fewest vocabulary tokens, preferring the
// longest token at each position when several segmentations are equally
// short. It is the canonical segmentation for vocabularies that carry no
// merge table.
type Greedy struct {
	vocab *Vocabulary
	trie  *toktrie.Trie
}

var _ Tokenizer = (*Greedy)(nil)

func NewGreedy(vocab *Vocabulary, trie *toktrie.Trie) *Greedy {
	return &Greedy{vocab: vocab, trie: trie}
}

func (g *Greedy) Vocabulary() *Vocabulary {
	return g.vocab
}

func (g *Greedy) Is(id int32, special Special) bool {
	return g.vocab.Is(id, special)
}

func (g *Greedy) Encode(s string, addSpecial bool) ([]int32, error) {
	var ids []int32
	var offset int
	for _, frag := range splitSpecialTokens(s, g.vocab) {
		if len(frag.ids) > 0 {
			ids = append(ids, frag.ids...)
			offset += len(frag.value)
			continue
		}

		piece, err := g.segment([]byte(frag.value))
		if err != nil {
			var e *NoTokenError
			if errors.As(err, &e) {
				e.Offset += offset
			}
			return nil, err
		}
		ids = append(ids, piece...)
		offset += len(frag.value)
	}

	if addSpecial {
		ids = g.vocab.addSpecials(ids)
	}

	logutil.Trace("encoded", "string", s, "ids", ids)
	return ids, nil
}

// segment computes, right to left, the minimum number of tokens covering
// each suffix of b and then reads the segmentation off left to right.
func (g *Greedy) segment(b []byte) ([]int32, error) {
	type step struct {
		cost int
		size int
		id   int32
	}

	best := make([]step, len(b)+1)
	for i := len(b) - 1; i >= 0; i-- {
		best[i] = step{cost: math.MaxInt}
		for n, id := range g.trie.Prefixes(b[i:]) {
			next := best[i+n]
			if next.cost == math.MaxInt {
				continue
			}
			if c := next.cost + 1; c < best[i].cost || (c == best[i].cost && n > best[i].size) {
				best[i] = step{cost: c, size: n, id: id}
			}
		}
	}

	if len(b) > 0 && best[0].cost == math.MaxInt {
		// report the first byte no segmentation can get past
		for i := range b {
			if best[i].cost != math.MaxInt {
				continue
			}
			if _, ok := g.trie.Child(g.trie.Root(), b[i]); !ok {
				return nil, &NoTokenError{Offset: i, Byte: b[i]}
			}
		}
		return nil, &NoTokenError{Offset: 0, Byte: b[0]}
	}

	ids := make([]int32, 0, best[0].cost)
	for i := 0; i < len(b); i += best[i].size {
		ids = append(ids, best[i].id)
	}
	return ids, nil
}

func (g *Greedy) Decode(ids []int32) (string, error) {
	b, err := decodeBytes(g.vocab, ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
