package toktrie

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testVocab is a vocabulary of raw token bytes whose last entry is the
// end-of-sequence control token.
type testVocab []string

func (v testVocab) Size() int { return len(v) }
func (v testVocab) Bytes(id int32) []byte { return []byte(v[id]) }
func (v testVocab) IsControl(id int32) bool { return int(id) == len(v)-1 }
func (v testVocab) EOSToken() int32 { return int32(len(v) - 1) }

func newTestTrie(tokens ...string) *Trie {
	return New(append(testVocab(tokens), "<eos>"))
}

func TestTrieLookup(t *testing.T) {
	trie := newTestTrie("a", "ab", "abc", "b", "", "ab")

	n, ok := trie.Lookup([]byte("ab"))
	if !ok {
		t.Fatal("expected node for ab")
	}

	if diff := cmp.Diff([]int32{1, 5}, trie.Tokens(n)); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}

	if trie.Depth(n) != 2 {
		t.Errorf("expected depth 2, got %d", trie.Depth(n))
	}

	if _, ok := trie.Lookup([]byte("ac")); ok {
		t.Error("expected no node for ac")
	}

	if _, ok := trie.Lookup([]byte("<eos>")); ok {
		t.Error("control tokens must not be in the trie")
	}

	for id, want := range []bool{true, true, true, true, false, true, false, false} {
		if got := trie.Contains(int32(id)); got != want {
			t.Errorf("Contains(%d) = %v, want %v", id, got, want)
		}
	}

	if trie.EOSToken() != 6 {
		t.Errorf("expected eos 6, got %d", trie.EOSToken())
	}

	if trie.VocabSize() != 7 || trie.MaxTokenLen() != 3 {
		t.Errorf("unexpected size %d or max len %d", trie.VocabSize(), trie.MaxTokenLen())
	}

	// root, a, ab, abc, b
	if trie.NumNodes() != 5 {
		t.Errorf("expected 5 nodes, got %d", trie.NumNodes())
	}
}

func TestTriePrefixes(t *testing.T) {
	trie := newTestTrie("a", "ab", "abc", "b", "abd")

	type prefix struct {
		N  int
		ID int32
	}

	var got []prefix
	for n, id := range trie.Prefixes([]byte("abcz")) {
		got = append(got, prefix{n, id})
	}

	if diff := cmp.Diff([]prefix{{1, 0}, {2, 1}, {3, 2}}, got); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
}

func TestTrieExtensions(t *testing.T) {
	trie := newTestTrie("a", "ab", "abc", "b", "abd")

	got := slices.Sorted(trie.Extensions([]byte("ab")))
	if diff := cmp.Diff([]int32{2, 4}, got); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}

	if got := slices.Collect(trie.Extensions([]byte("x"))); len(got) != 0 {
		t.Errorf("expected no extensions, got %v", got)
	}

	if got := slices.Collect(trie.Extensions([]byte("b"))); len(got) != 0 {
		t.Errorf("expected no extensions of a leaf, got %v", got)
	}
}

func TestTrieTokenBytes(t *testing.T) {
	trie := newTestTrie("x", "yz")

	if got := string(trie.TokenBytes(1)); got != "yz" {
		t.Errorf("expected yz, got %q", got)
	}

	for _, id := range []int32{-1, 3} {
		if trie.TokenBytes(id) != nil {
			t.Errorf("expected nil bytes for id %d", id)
		}
	}
}

func TestTrieChildrenSorted(t *testing.T) {
	trie := newTestTrie("c", "a", "b")

	var order []byte
	for i := 1; i < trie.NumNodes(); i++ {
		order = append(order, trie.nodes[i].b)
	}

	if !slices.IsSorted(order) {
		t.Errorf("expected sorted children, got %q", order)
	}
}
