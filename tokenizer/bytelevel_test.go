package tokenizer

import (
	"bytes"
	"testing"
	"unicode"
)

func TestByteLevelRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	s := ByteLevelEncode(all)
	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			t.Errorf("byte-level rune %U is not printable", r)
		}
	}

	if got := ByteLevelDecode(s); !bytes.Equal(got, all) {
		t.Fatalf("round trip mismatch: got %v", got)
	}
}

func TestByteLevelDecode(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{"Ġhello", []byte(" hello")},
		{"ĊĊ", []byte("\n\n")},
		{"Ń", []byte{0xad}},
		{"<|endoftext|>", []byte("<|endoftext|>")},
		{"日本", []byte("日本")},
	}

	for _, tt := range cases {
		if got := ByteLevelDecode(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("ByteLevelDecode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
