package tokenizer

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DataSpeaksTech/aici/logutil"
)

const bpeCacheSize = 8192

type BytePairEncoding struct {
	vocab   *Vocabulary
	regexps []*regexp2.Regexp
	cache   *lru.Cache[string, []int32]
}

var _ Tokenizer = (*BytePairEncoding)(nil)

func NewBytePairEncoding(vocab *Vocabulary, pretokenizers ...string) *BytePairEncoding {
	if len(pretokenizers) == 0 {
		// default byte-level pretokenizer, as in
		// https://github.com/huggingface/tokenizers/blob/main/tokenizers/src/pre_tokenizers/byte_level.rs#L44
		pretokenizers = []string{`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`}
	}

	cache, err := lru.New[string, []int32](bpeCacheSize)
	if err != nil {
		panic(err)
	}

	return &BytePairEncoding{
		vocab: vocab,
		regexps: slices.Collect(func(yield func(*regexp2.Regexp) bool) {
			for _, p := range pretokenizers {
				if !yield(regexp2.MustCompile(p, regexp2.RE2)) {
					return
				}
			}
		}),
		cache: cache,
	}
}

func (bpe *BytePairEncoding) Vocabulary() *Vocabulary {
	return bpe.vocab
}

func (bpe *BytePairEncoding) Is(id int32, special Special) bool {
	return bpe.vocab.Is(id, special)
}

func (bpe *BytePairEncoding) split(s string) iter.Seq[string] {
	// regexp2 matches over runes; invalid UTF-8 would be lost in the
	// conversion so such fragments are merged as a single piece
	if !utf8.ValidString(s) {
		return slices.Values([]string{s})
	}

	parts := []string{s}
	for _, re := range bpe.regexps {
		parts = slices.Collect(func(yield func(string) bool) {
			for _, part := range parts {
				r := []rune(part)
				var offset int
				for m, _ := re.FindRunesMatch(r); m != nil; m, _ = re.FindNextMatch(m) {
					if offset-m.Index != 0 {
						if !yield(string(r[offset:m.Index])) {
							return
						}
					}

					if !yield(m.String()) {
						return
					}

					offset = m.Index + m.Length
				}

				if offset < len(r) {
					if !yield(string(r[offset:])) {
						return
					}
				}
			}
		})
	}

	return slices.Values(parts)
}

// pair is a pair of adjacent merges and its rank
type pair struct {
	a, b  int
	rank  int
	value string
}

type merge struct {
	p, n  int
	runes []rune
}

func (bpe *BytePairEncoding) Encode(s string, addSpecial bool) ([]int32, error) {
	var ids []int32
	for _, frag := range splitSpecialTokens(s, bpe.vocab) {
		if len(frag.ids) > 0 {
			ids = append(ids, frag.ids...)
			continue
		}

		for split := range bpe.split(frag.value) {
			piece, err := bpe.encodePiece(split)
			if err != nil {
				return nil, err
			}
			ids = append(ids, piece...)
		}
	}

	if addSpecial {
		ids = bpe.vocab.addSpecials(ids)
	}

	logutil.Trace("encoded", "string", s, "ids", ids)
	return ids, nil
}

func (bpe *BytePairEncoding) encodePiece(split string) ([]int32, error) {
	if ids, ok := bpe.cache.Get(split); ok {
		return ids, nil
	}

	mapped := ByteLevelEncode([]byte(split))

	// short circuit if the piece is in the vocabulary
	if id := bpe.vocab.Encode(mapped); id >= 0 {
		ids := []int32{id}
		bpe.cache.Add(split, ids)
		return ids, nil
	}

	runes := []rune(mapped)
	merges := make([]merge, len(runes))
	for r := range runes {
		merges[r] = merge{
			p:     r - 1,
			n:     r + 1,
			runes: []rune{runes[r]},
		}
	}

	pairwise := func(a, b int) *pair {
		if a < 0 || b >= len(runes) {
			return nil
		}

		left, right := string(merges[a].runes), string(merges[b].runes)
		rank := bpe.vocab.Merge(left, right)
		if rank < 0 {
			return nil
		}

		return &pair{
			a:     a,
			b:     b,
			rank:  rank,
			value: left + right,
		}
	}

	pairs := heap.NewWith(func(i, j *pair) int {
		return cmp.Or(cmp.Compare(i.rank, j.rank), cmp.Compare(i.a, j.a))
	})

	for i := range len(runes) - 1 {
		if pair := pairwise(i, i+1); pair != nil {
			pairs.Push(pair)
		}
	}

	for !pairs.Empty() {
		pair, _ := pairs.Pop()

		left, right := merges[pair.a], merges[pair.b]
		if len(left.runes) == 0 || len(right.runes) == 0 ||
			string(left.runes)+string(right.runes) != pair.value {
			continue
		}

		if id := bpe.vocab.Encode(pair.value); id < 0 {
			continue
		}

		merges[pair.a].runes = append(left.runes, right.runes...)
		merges[pair.b].runes = nil

		merges[pair.a].n = right.n
		if right.n < len(merges) {
			merges[right.n].p = pair.a
		}

		if pair := pairwise(merges[pair.a].p, pair.a); pair != nil {
			pairs.Push(pair)
		}

		if pair := pairwise(pair.a, merges[pair.a].n); pair != nil {
			pairs.Push(pair)
		}
	}

	var ids []int32
	var offset int
	for _, merge := range merges {
		if len(merge.runes) == 0 {
			continue
		}

		if id := bpe.vocab.Encode(string(merge.runes)); id >= 0 {
			ids = append(ids, id)
			offset += len(ByteLevelDecode(string(merge.runes)))
			continue
		}

		// fall back to single byte tokens
		for _, r := range merge.runes {
			id := bpe.vocab.Encode(string(r))
			if id < 0 {
				b := ByteLevelDecode(string(r))
				return nil, &NoTokenError{Offset: offset, Byte: b[0]}
			}
			ids = append(ids, id)
			offset += len(ByteLevelDecode(string(r)))
		}
	}

	bpe.cache.Add(split, ids)
	return ids, nil
}

type lazyIdsString struct {
	ids []int32
}

func (l lazyIdsString) LogValue() slog.Value {
	return slog.AnyValue(fmt.Sprint(l.ids))
}

func (bpe *BytePairEncoding) Decode(ids []int32) (string, error) {
	b, err := decodeBytes(bpe.vocab, ids)
	if err != nil {
		return "", err
	}

	logutil.Trace("decoded", "string", string(b), "from", lazyIdsString{ids: ids})
	return string(b), nil
}

func (bpe *BytePairEncoding) String() string {
	return fmt.Sprintf("bpe(%d tokens, %d merges)", bpe.vocab.Size(), len(bpe.vocab.Merges))
}
