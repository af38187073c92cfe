package constraint

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/DataSpeaksTech/aici/grammar"
)

func TestCfgViablePrefix(t *testing.T) {
	trie := newTestTrie(t)

	// left recursive and ambiguous
	c, err := NewCfg(trie, `list = list "," list | item . item = "1" | "2" | "12" .`)
	if err != nil {
		t.Fatal(err)
	}

	set := checkConsistent(t, trie, c)
	if diff := cmp.Diff([]string{"1", "2", "12"}, allowed(set)); diff != "" {
		t.Errorf("allowed mismatch (-want +got):\n%s", diff)
	}

	appendTokens(t, c, "1")
	if !c.EOSAllowed() || c.EOSForced() {
		t.Error("expected a complete but extendable list")
	}

	set = checkConsistent(t, trie, c)
	if diff := cmp.Diff([]string{",", "2", "<eos>"}, allowed(set)); diff != "" {
		t.Errorf("allowed mismatch (-want +got):\n%s", diff)
	}

	appendTokens(t, c, ",")
	if c.EOSAllowed() {
		t.Error("a trailing comma is not a list")
	}

	appendTokens(t, c, "12")
	if c.Len() != 4 || !c.EOSAllowed() {
		t.Errorf("unexpected state after 4 bytes: len %d", c.Len())
	}
}

func TestCfgBudget(t *testing.T) {
	trie := newTestTrie(t)
	c, err := NewCfg(trie, `s = s s | "a" .`, WithMaxItems(20))
	if err != nil {
		t.Fatal(err)
	}

	a := tokenID(t, "a")
	for range 50 {
		if err = c.AppendToken(a); err != nil {
			break
		}
	}

	if !errors.Is(err, grammar.ErrBudgetExceeded) || errors.Is(err, ErrState) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	if c.Err() != nil || !c.EOSAllowed() {
		t.Error("a failed query must not kill the constraint")
	}

	if c.TokenAllowed(a) {
		t.Error("expected the budget to fail the query")
	}

	set := trie.NewTokenSet()
	if err := c.AllowTokens(set); !errors.Is(err, grammar.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCfgConstructionErrors(t *testing.T) {
	trie := newTestTrie(t)

	for _, text := range []string{`s = t .`, `s = "a"`, ``} {
		if _, err := NewCfg(trie, text); !errors.Is(err, ErrConstruction) {
			t.Errorf("%q: expected ErrConstruction, got %v", text, err)
		}
	}

	for _, schema := range []string{`{"type": "decimal"}`, `{`} {
		if _, err := NewCfgFromSchema(trie, []byte(schema)); !errors.Is(err, ErrConstruction) {
			t.Errorf("%s: expected ErrConstruction, got %v", schema, err)
		}
	}
}

func TestCfgSharedGrammar(t *testing.T) {
	trie := newTestTrie(t)
	g, err := grammar.Compile("bool", `b = "true" | "false" .`)
	if err != nil {
		t.Fatal(err)
	}

	a, b := NewCfgFromGrammar(trie, g), NewCfgFromGrammar(trie, g)
	appendTokens(t, a, "true")
	if !a.EOSForced() || b.EOSAllowed() {
		t.Error("instances sharing a grammar must not share state")
	}
}
