package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// byteLevelRune maps a raw byte onto the printable rune GPT-2 style
// vocabularies use to spell it.
func byteLevelRune(b byte) rune {
	r := rune(b)
	switch {
	case r == 0x00ad:
		r = 0x0143
	case r <= 0x0020:
		r = r + 0x0100
	case r >= 0x007f && r <= 0x00a0:
		r = r + 0x00a2
	}
	return r
}

// ByteLevelEncode spells raw bytes the way byte-level vocabularies store
// them.
func ByteLevelEncode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(byteLevelRune(c))
	}
	return sb.String()
}

// ByteLevelDecode reverses ByteLevelEncode. Runes outside the byte-level
// alphabet (as found in added tokens) are kept as their UTF-8 encoding.
func ByteLevelDecode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 0x0100 && r <= 0x0120:
			out = append(out, byte(r-0x0100))
		case r > 0x0120 && r <= 0x0142:
			out = append(out, byte(r-0x00a2))
		case r == 0x0143:
			out = append(out, 0xad)
		case r < 0x0100:
			out = append(out, byte(r))
		default:
			out = utf8.AppendRune(out, r)
		}
	}
	return out
}
