package toktrie

import (
	"fmt"
	"iter"
	"math/bits"
	"slices"
)

// TokenSet is a bit vector with one bit per vocabulary id. Its length is
// fixed at creation and always equals the vocabulary size it was created
// for. Ids outside [0, Len) are never members; adding or deleting them is
// a no-op.
type TokenSet struct {
	words []uint64
	n     int
}

func NewTokenSet(n int) *TokenSet {
	return &TokenSet{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

func (s *TokenSet) Len() int {
	return s.n
}

func (s *TokenSet) inRange(id int32) bool {
	return id >= 0 && int(id) < s.n
}

func (s *TokenSet) Add(id int32) {
	if s.inRange(id) {
		s.words[id>>6] |= 1 << (uint(id) & 63)
	}
}

func (s *TokenSet) Delete(id int32) {
	if s.inRange(id) {
		s.words[id>>6] &^= 1 << (uint(id) & 63)
	}
}

func (s *TokenSet) Has(id int32) bool {
	return s.inRange(id) && s.words[id>>6]&(1<<(uint(id)&63)) != 0
}

func (s *TokenSet) Clear() {
	clear(s.words)
}

// SetAll sets every bit to v.
func (s *TokenSet) SetAll(v bool) {
	if !v {
		s.Clear()
		return
	}

	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	if tail := s.n & 63; tail != 0 {
		s.words[len(s.words)-1] = (1 << uint(tail)) - 1
	}
}

// Count returns the number of ids in the set.
func (s *TokenSet) Count() int {
	var n int
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

func (s *TokenSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s *TokenSet) Equal(o *TokenSet) bool {
	return s.n == o.n && slices.Equal(s.words, o.words)
}

// Union adds every member of o. Both sets must have the same length.
func (s *TokenSet) Union(o *TokenSet) {
	for i := range min(len(s.words), len(o.words)) {
		s.words[i] |= o.words[i]
	}
}

// CopyFrom overwrites s with the contents of o.
func (s *TokenSet) CopyFrom(o *TokenSet) {
	copy(s.words, o.words)
}

func (s *TokenSet) Clone() *TokenSet {
	return &TokenSet{words: slices.Clone(s.words), n: s.n}
}

// IDs iterates the members in ascending order.
func (s *TokenSet) IDs() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for i, w := range s.words {
			for w != 0 {
				b := bits.TrailingZeros64(w)
				if !yield(int32(i*64 + b)) {
					return
				}
				w &= w - 1
			}
		}
	}
}

func (s *TokenSet) String() string {
	const limit = 16
	ids := make([]int32, 0, limit)
	for id := range s.IDs() {
		if len(ids) == limit {
			break
		}
		ids = append(ids, id)
	}

	suffix := ""
	if c := s.Count(); c > len(ids) {
		suffix = fmt.Sprintf(" ...+%d", c-len(ids))
	}
	return fmt.Sprintf("TokenSet(%d/%d)%v%s", s.Count(), s.n, ids, suffix)
}
