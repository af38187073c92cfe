package tokenizer

import "unicode/utf8"

// StringToBuffer returns the UTF-8 bytes of s. Invalid sequences are
// replaced with U+FFFD.
func StringToBuffer(s string) []byte {
	if utf8.ValidString(s) {
		return []byte(s)
	}
	return repair([]byte(s))
}

// BufferToString decodes b as UTF-8, replacing each invalid byte with
// U+FFFD instead of failing.
func BufferToString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string(repair(b))
}

func repair(b []byte) []byte {
	out := make([]byte, 0, len(b)+8)
	for len(b) > 0 {
		r, n := utf8.DecodeRune(b)
		if r == utf8.RuneError && n <= 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
			b = b[1:]
			continue
		}
		out = append(out, b[:n]...)
		b = b[n:]
	}
	return out
}
