package dfa

import (
	"errors"
	"regexp"
	"regexp/syntax"
	"testing"
)

func TestMatchAgreesWithRegexp(t *testing.T) {
	patterns := []string{
		"ab*c",
		"[a-z]+",
		"(foo|bar)baz?",
		`\d{2,3}`,
		"[^a]",
		".",
		"é+",
		"(?i)hello",
		"(?i)straße",
		"[α-ω]+",
		`\p{Greek}`,
		"x*",
		"",
		"a|",
		"^abc$",
		`[\x{10000}-\x{10FFFF}]`,
		`(?s).*`,
		`"([^"\\]|\\.)*"`,
		`-?(0|[1-9][0-9]*)(\.[0-9]+)?`,
	}

	inputs := []string{
		"", "a", "ac", "abc", "abbbc", "ab", "abd",
		"hello", "HeLLo", "HELLO", "straße", "STRASSE", "ſtraße",
		"foobaz", "barba", "fooba", "12", "123", "1234",
		"é", "éé", "e", "\n", "b", "αβγ", "Ω", "ω", "𝄞", "xxxx",
		`"a\"b"`, `"unterminated`, "-0", "0.5", "01", "-12.25",
	}

	for _, pattern := range patterns {
		d, err := Compile(pattern)
		if err != nil {
			t.Fatalf("%q: %v", pattern, err)
		}

		re := regexp.MustCompile(`^(?:` + pattern + `)$`)
		for _, input := range inputs {
			if got, want := d.Match([]byte(input)), re.MatchString(input); got != want {
				t.Errorf("%q on %q: got %v, want %v", pattern, input, got, want)
			}
		}
	}
}

func TestInvalidUTF8NeverMatches(t *testing.T) {
	d, err := Compile(`(?s).`)
	if err != nil {
		t.Fatal(err)
	}

	for _, input := range []string{"\xff", "\xc3", "\xed\xa0\x80"} {
		if d.Match([]byte(input)) {
			t.Errorf("expected %q not to match", input)
		}
	}
}

func TestFinal(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		accept  bool
		final   bool
	}{
		{"abc", "abc", true, true},
		{"abc", "ab", false, false},
		{"ab*c", "ac", true, true},
		{"a+", "a", true, false},
		{"a?", "", true, false},
		{"a?", "a", true, true},
	}

	for _, tt := range cases {
		d, err := Compile(tt.pattern)
		if err != nil {
			t.Fatal(err)
		}

		s := d.Start()
		for _, b := range []byte(tt.input) {
			s = d.Next(s, b)
		}

		if d.IsAccepting(s) != tt.accept || d.IsFinal(s) != tt.final {
			t.Errorf("%q after %q: accept=%v final=%v", tt.pattern, tt.input, d.IsAccepting(s), d.IsFinal(s))
		}

		if d.HasNext(s) == tt.final {
			t.Errorf("%q after %q: expected HasNext %v", tt.pattern, tt.input, !tt.final)
		}
	}
}

func TestDeadStatesTrimmed(t *testing.T) {
	d, err := Compile(`(a|b)$c|x`)
	if err != nil {
		t.Fatal(err)
	}

	if s := d.Next(d.Start(), 'a'); s != Dead {
		t.Errorf("expected a to lead to the dead state, got %d", s)
	}

	if !d.Match([]byte("x")) {
		t.Error("expected x to match")
	}

	if d.NumStates() != 2 {
		t.Errorf("expected 2 states, got %d", d.NumStates())
	}

	if d.Next(Dead, 'x') != Dead || d.IsAccepting(Dead) {
		t.Error("dead state must absorb and reject")
	}
}

func TestNeverMatches(t *testing.T) {
	d, err := Compile(`a$b`)
	if err != nil {
		t.Fatal(err)
	}

	if d.NumStates() != 1 || d.IsAccepting(d.Start()) || d.Next(d.Start(), 'a') != Dead {
		t.Errorf("expected a single rejecting state, got %v", d)
	}

	if d.HasNext(d.Start()) || d.HasNext(Dead) {
		t.Error("expected no way out of the start state")
	}
}

func TestByteClasses(t *testing.T) {
	d, err := Compile(`[a-z]+`)
	if err != nil {
		t.Fatal(err)
	}

	// below a, a-z, above z
	if n := d.Classes().Len(); n != 3 {
		t.Errorf("expected 3 classes, got %d", n)
	}

	if got := string(d.Classes().Representatives()); got != "\x00a{" {
		t.Errorf("unexpected representatives %q", got)
	}
}

func TestForcedByte(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		want    byte
		ok      bool
	}{
		{"abc", "", 'a', true},
		{"abc", "ab", 'c', true},
		{"abc", "abc", 0, false},
		{"ab*", "a", 'b', true},
		{"a[bc]", "a", 0, false},
		{"(?i)a", "", 0, false},
		{"é", "", 0xc3, true},
		{"é", "\xc3", 0xa9, true},
		{"[a-z]", "", 0, false},
	}

	for _, tt := range cases {
		d, err := Compile(tt.pattern)
		if err != nil {
			t.Fatal(err)
		}

		s := d.Start()
		for _, b := range []byte(tt.input) {
			s = d.Next(s, b)
		}

		if got, ok := d.ForcedByte(s); ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("%s after %q: got %q %v, want %q %v", tt.pattern, tt.input, got, ok, tt.want, tt.ok)
		}
	}

	d, err := Compile(`[a-z]+`)
	if err != nil {
		t.Fatal(err)
	}

	if lo, hi := d.Classes().Range(d.Classes().Get('q')); lo != 'a' || hi != 'z' {
		t.Errorf("unexpected class range %q-%q", lo, hi)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, pattern := range []string{`\bword\b`, `(?m)^a$`, `\B`} {
		if _, err := Compile(pattern); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%q: expected ErrUnsupported, got %v", pattern, err)
		}
	}

	var serr *syntax.Error
	if _, err := Compile("a("); !errors.As(err, &serr) {
		t.Errorf("expected syntax error, got %v", err)
	}

	if _, err := Compile(`(a|b)*a(a|b){12}`, WithMaxStates(100)); !errors.Is(err, ErrTooManyStates) {
		t.Errorf("expected ErrTooManyStates, got %v", err)
	}
}
