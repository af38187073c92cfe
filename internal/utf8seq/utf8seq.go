// Package utf8seq compiles rune ranges into the byte ranges of their
// UTF-8 encodings.
package utf8seq

import (
	"unicode"
	"unicode/utf8"
)

// Range is an inclusive range of byte values.
type Range struct {
	Lo, Hi byte
}

func (r Range) Contains(b byte) bool {
	return r.Lo <= b && b <= r.Hi
}

// Sequences returns byte range sequences matching exactly the UTF-8
// encodings of the runes in [lo, hi]. Surrogates have no encoding and
// are left out.
func Sequences(lo, hi rune) [][]Range {
	var seqs [][]Range

	var split func(lo, hi rune)
	split = func(lo, hi rune) {
		hi = min(hi, unicode.MaxRune)
		if lo > hi {
			return
		}

		if lo <= 0xdfff && hi >= 0xd800 {
			split(lo, 0xd7ff)
			split(0xe000, hi)
			return
		}

		// one encoded length per range
		for _, limit := range []rune{0x7f, 0x7ff, 0xffff} {
			if lo <= limit && hi > limit {
				split(lo, limit)
				split(limit+1, hi)
				return
			}
		}

		if hi <= 0x7f {
			seqs = append(seqs, []Range{{byte(lo), byte(hi)}})
			return
		}

		// continuation bytes below position i must span their full range
		// unless every higher byte is fixed
		for i := 1; i < utf8.UTFMax; i++ {
			m := rune(1)<<(6*i) - 1
			if lo&^m != hi&^m {
				if lo&m != 0 {
					split(lo, lo|m)
					split((lo|m)+1, hi)
					return
				}
				if hi&m != m {
					split(lo, (hi&^m)-1)
					split(hi&^m, hi)
					return
				}
			}
		}

		var a, b [utf8.UTFMax]byte
		n := utf8.EncodeRune(a[:], lo)
		utf8.EncodeRune(b[:], hi)

		seq := make([]Range, n)
		for i := range n {
			seq[i] = Range{a[i], b[i]}
		}
		seqs = append(seqs, seq)
	}

	split(lo, hi)
	return seqs
}
