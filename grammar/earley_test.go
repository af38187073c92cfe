package grammar

import (
	"errors"
	"testing"
)

func mustCompile(t *testing.T, src string) *Grammar {
	t.Helper()
	g, err := Compile(t.Name(), src)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func push(t *testing.T, p *Parser, s string) {
	t.Helper()
	for i := range len(s) {
		if !p.PushByte(s[i]) {
			t.Fatalf("byte %q at %d rejected", s[i], i)
		}
	}
}

func TestParserAllows(t *testing.T) {
	p := NewParser(mustCompile(t, `s = "ab" | "ac" | "b" .`), 0)

	for _, b := range []byte("ab") {
		if !p.Allows(b) {
			t.Errorf("expected %q to be allowed at the start", b)
		}
	}

	if p.Allows('c') || p.Accepting() {
		t.Error("unexpected initial state")
	}

	push(t, p, "a")
	if !p.Allows('b') || !p.Allows('c') || p.Allows('a') {
		t.Error("expected b or c after a")
	}

	if p.PushByte('d') {
		t.Error("expected d to be rejected")
	}

	push(t, p, "c")
	if !p.Accepting() || p.CanScan() {
		t.Error("expected a complete sentence with no continuation")
	}

	p.PopBytes(2)
	if p.Len() != 0 || !p.Allows('b') {
		t.Errorf("expected the initial state after popping, len %d", p.Len())
	}
}

func TestParserClone(t *testing.T) {
	p := NewParser(mustCompile(t, `s = "a" ( "b" | "c" ) { "d" } .`), 0)
	push(t, p, "a")

	q := p.Clone()
	push(t, q, "bd")
	push(t, p, "c")

	p.PopBytes(1)
	push(t, p, "b")
	push(t, p, "dd")

	if q.Len() != 3 || p.Len() != 4 {
		t.Fatalf("unexpected lengths %d and %d", q.Len(), p.Len())
	}

	// q still sees "abd"
	q.PopBytes(1)
	if !q.Accepting() || !q.Allows('d') {
		t.Error("clone state was disturbed")
	}

	r := q.Clone()
	r.PopBytes(2)
	if q.Len() != 2 || r.Len() != 0 {
		t.Errorf("unexpected lengths %d and %d", q.Len(), r.Len())
	}
}

func TestParserBudget(t *testing.T) {
	p := NewParser(mustCompile(t, `s = s s | "a" .`), 50)

	var n int
	for n < 100 && p.PushByte('a') {
		n++
	}

	if n == 100 {
		t.Fatal("expected the budget to run out")
	}

	if !errors.Is(p.Err(), ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", p.Err())
	}

	if p.Accepting() || p.CanScan() {
		t.Error("a failed parser accepts nothing")
	}

	p.ResetBudget()
	if p.Err() != nil || p.Len() != n {
		t.Errorf("expected reset parser at %d, got err %v len %d", n, p.Err(), p.Len())
	}

	if n > 0 && !p.Accepting() {
		t.Error("expected the parser to accept after reset")
	}
}

func TestParserForcedByte(t *testing.T) {
	p := NewParser(mustCompile(t, `s = "{id:" digit { digit } "}" . digit = "0" … "9" .`), 0)

	var forced []byte
	for {
		b, ok := p.ForcedByte()
		if !ok {
			break
		}
		push(t, p, string(b))
		forced = append(forced, b)
	}

	if string(forced) != "{id:" {
		t.Errorf("expected {id: to be forced, got %q", forced)
	}

	push(t, p, "7")
	if _, ok := p.ForcedByte(); ok {
		t.Error("expected a digit or } after a digit")
	}

	push(t, p, "}")
	if _, ok := p.ForcedByte(); ok || !p.Accepting() {
		t.Error("expected a complete sentence")
	}
}
