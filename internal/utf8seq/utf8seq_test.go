package utf8seq

import (
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestUTF8SequencesFullRange(t *testing.T) {
	want := [][]Range{
		{{0x00, 0x7f}},
		{{0xc2, 0xdf}, {0x80, 0xbf}},
		{{0xe0, 0xe0}, {0xa0, 0xbf}, {0x80, 0xbf}},
		{{0xe1, 0xec}, {0x80, 0xbf}, {0x80, 0xbf}},
		{{0xed, 0xed}, {0x80, 0x9f}, {0x80, 0xbf}},
		{{0xee, 0xef}, {0x80, 0xbf}, {0x80, 0xbf}},
		{{0xf0, 0xf0}, {0x90, 0xbf}, {0x80, 0xbf}, {0x80, 0xbf}},
		{{0xf1, 0xf3}, {0x80, 0xbf}, {0x80, 0xbf}, {0x80, 0xbf}},
		{{0xf4, 0xf4}, {0x80, 0x8f}, {0x80, 0xbf}, {0x80, 0xbf}},
	}

	if diff := cmp.Diff(want, Sequences(0, utf8.MaxRune)); diff != "" {
		t.Errorf("sequences mismatch (-want +got):\n%s", diff)
	}
}

func TestUTF8SequencesExact(t *testing.T) {
	cases := [][2]rune{
		{'a', 'z'},
		{0x61, 0x3b1},
		{0x3b1, 0x3c9},
		{0x7ff, 0x801},
		{0xd000, 0xe100},
		{0xfff0, 0x10010},
		{0x1f600, 0x1f64f},
	}

	matches := func(seqs [][]Range, b []byte) int {
		var n int
		for _, seq := range seqs {
			if len(seq) != len(b) {
				continue
			}
			ok := true
			for i, r := range seq {
				ok = ok && r.Contains(b[i])
			}
			if ok {
				n++
			}
		}
		return n
	}

	for _, tt := range cases {
		seqs := Sequences(tt[0], tt[1])
		for r := max(0, tt[0]-64); r <= tt[1]+64; r++ {
			if !utf8.ValidRune(r) {
				continue
			}

			want := 0
			if tt[0] <= r && r <= tt[1] {
				want = 1
			}

			if got := matches(seqs, utf8.AppendRune(nil, r)); got != want {
				t.Errorf("[%U, %U]: rune %U matched %d sequences, want %d", tt[0], tt[1], r, got, want)
			}
		}
	}
}
