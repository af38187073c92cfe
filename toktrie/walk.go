package toktrie

// Recognizer is a byte-level acceptor with a state stack. PushByte
// advances the state by b and reports true, or reports false and leaves
// the state unchanged when b cannot extend the input seen so far.
// PopBytes discards the last n successful pushes.
type Recognizer interface {
	PushByte(b byte) bool
	PopBytes(n int)
}

// Walk overwrites set with every token whose bytes r accepts from its
// current state. The traversal is iterative over the preorder layout; a
// rejected byte skips the whole subtree below it, and every token
// sharing a prefix reuses the recognizer state computed for it. r is left
// in the state it started in.
func (t *Trie) Walk(r Recognizer, set *TokenSet) {
	set.Clear()

	var pushed uint32
	for i := uint32(1); i < uint32(len(t.nodes)); {
		n := &t.nodes[i]
		if parent := n.depth - 1; pushed > parent {
			r.PopBytes(int(pushed - parent))
			pushed = parent
		}

		if !r.PushByte(n.b) {
			i += n.subtree
			continue
		}

		pushed++
		for _, id := range t.ids[n.start:n.end] {
			set.Add(id)
		}
		i++
	}

	if pushed > 0 {
		r.PopBytes(int(pushed))
	}
}

// Accepts reports whether r accepts every byte of b, leaving r unchanged.
func Accepts(r Recognizer, b []byte) bool {
	for i, c := range b {
		if !r.PushByte(c) {
			r.PopBytes(i)
			return false
		}
	}
	r.PopBytes(len(b))
	return true
}
