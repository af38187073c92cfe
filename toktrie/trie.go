// Package toktrie indexes vocabulary tokens by their bytes so that
// constraints can test every token sharing a prefix in one pass.
package toktrie

import (
	"iter"
	"log/slog"
	"slices"
	"time"
)

// Vocabulary is the part of a tokenizer vocabulary a Trie is built from.
type Vocabulary interface {
	Size() int
	Bytes(id int32) []byte
	IsControl(id int32) bool
	EOSToken() int32
}

// Node identifies a trie node. The root is node 0.
type Node uint32

type node struct {
	b       byte
	depth   uint32
	subtree uint32 // number of nodes in the subtree, this node included
	start   uint32 // token ids ending here are ids[start:end]
	end     uint32
}

// Trie is a byte trie over the vocabulary flattened in preorder: the
// first child of node i is i+1 and its next sibling is i+subtree(i).
// A Trie is immutable once built and safe for concurrent use.
type Trie struct {
	nodes  []node
	ids    []int32
	tokens [][]byte

	eos         int32
	maxTokenLen int
}

type buildNode struct {
	children map[byte]*buildNode
	ids      []int32
}

func New(vocab Vocabulary) *Trie {
	start := time.Now()

	t := &Trie{
		tokens: make([][]byte, vocab.Size()),
		eos:    vocab.EOSToken(),
	}

	root := &buildNode{}
	for i := range vocab.Size() {
		id := int32(i)
		b := vocab.Bytes(id)
		t.tokens[i] = b
		if len(b) == 0 || vocab.IsControl(id) {
			continue
		}

		t.maxTokenLen = max(t.maxTokenLen, len(b))

		n := root
		for _, c := range b {
			if n.children == nil {
				n.children = make(map[byte]*buildNode)
			}
			child, ok := n.children[c]
			if !ok {
				child = &buildNode{}
				n.children[c] = child
			}
			n = child
		}
		n.ids = append(n.ids, id)
	}

	t.flatten(root, 0, 0)

	slog.Debug("token trie built", "tokens", len(t.tokens), "nodes", len(t.nodes), "max_token_len", t.maxTokenLen, "duration", time.Since(start))
	return t
}

func (t *Trie) flatten(n *buildNode, b byte, depth uint32) {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{
		b:     b,
		depth: depth,
		start: uint32(len(t.ids)),
	})
	t.ids = append(t.ids, n.ids...)
	t.nodes[idx].end = uint32(len(t.ids))

	keys := make([]byte, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		t.flatten(n.children[k], k, depth+1)
	}

	t.nodes[idx].subtree = uint32(len(t.nodes) - idx)
}

func (t *Trie) Root() Node {
	return 0
}

// Child returns the child of n reached by byte b.
func (t *Trie) Child(n Node, b byte) (Node, bool) {
	end := uint32(n) + t.nodes[n].subtree
	for i := uint32(n) + 1; i < end; i += t.nodes[i].subtree {
		switch c := t.nodes[i].b; {
		case c == b:
			return Node(i), true
		case c > b:
			return 0, false
		}
	}
	return 0, false
}

// Tokens returns the ids of tokens whose bytes end exactly at n.
func (t *Trie) Tokens(n Node) []int32 {
	nd := t.nodes[n]
	return t.ids[nd.start:nd.end]
}

func (t *Trie) Depth(n Node) int {
	return int(t.nodes[n].depth)
}

// Lookup follows b from the root.
func (t *Trie) Lookup(b []byte) (Node, bool) {
	n := t.Root()
	for _, c := range b {
		next, ok := t.Child(n, c)
		if !ok {
			return 0, false
		}
		n = next
	}
	return n, true
}

// Prefixes yields, for every token that is a prefix of b, its length and
// id, shortest first.
func (t *Trie) Prefixes(b []byte) iter.Seq2[int, int32] {
	return func(yield func(int, int32) bool) {
		n := t.Root()
		for i, c := range b {
			next, ok := t.Child(n, c)
			if !ok {
				return
			}
			n = next
			for _, id := range t.Tokens(n) {
				if !yield(i+1, id) {
					return
				}
			}
		}
	}
}

// Extensions yields every token that starts with b and is longer.
func (t *Trie) Extensions(b []byte) iter.Seq[int32] {
	return func(yield func(int32) bool) {
		n, ok := t.Lookup(b)
		if !ok {
			return
		}

		end := uint32(n) + t.nodes[n].subtree
		for i := uint32(n) + 1; i < end; i++ {
			for _, id := range t.Tokens(Node(i)) {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// TokenBytes returns the bytes of id, or nil if id is out of range.
func (t *Trie) TokenBytes(id int32) []byte {
	if id < 0 || int(id) >= len(t.tokens) {
		return nil
	}
	return t.tokens[id]
}

// Contains reports whether id is indexed by the trie. Control tokens and
// tokens without bytes are not.
func (t *Trie) Contains(id int32) bool {
	b := t.TokenBytes(id)
	if len(b) == 0 {
		return false
	}

	n, ok := t.Lookup(b)
	return ok && slices.Contains(t.Tokens(n), id)
}

func (t *Trie) VocabSize() int {
	return len(t.tokens)
}

// EOSToken returns the end-of-sequence id, or -1 if there is none.
func (t *Trie) EOSToken() int32 {
	return t.eos
}

func (t *Trie) MaxTokenLen() int {
	return t.maxTokenLen
}

func (t *Trie) NumNodes() int {
	return len(t.nodes)
}

func (t *Trie) NewTokenSet() *TokenSet {
	return NewTokenSet(len(t.tokens))
}
