package constraint

import (
	"log/slog"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DataSpeaksTech/aici/dfa"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// Regex accepts byte strings fully matching a regular expression.
type Regex struct {
	core
	dfa *dfaRecognizer

	// masks holds the tokens allowed from a DFA state. It is shared by
	// every clone and safe for concurrent use.
	masks *lru.Cache[dfa.State, *toktrie.TokenSet]
}

var _ Constraint = (*Regex)(nil)

// NewRegex compiles pattern. Matching is anchored at both ends.
func NewRegex(trie *toktrie.Trie, pattern string, opts ...Option) (*Regex, error) {
	o := newOptions(opts)
	d, err := dfa.Compile(pattern, dfa.WithMaxStates(o.maxStates))
	if err != nil {
		return nil, &ConstructionError{Kind: KindRegex, Source: pattern, Err: err}
	}

	masks, err := newMaskCache(o.maskCache)
	if err != nil {
		return nil, &ConstructionError{Kind: KindRegex, Source: pattern, Err: err}
	}

	return newRegex(trie, d, masks), nil
}

func newMaskCache(size int) (*lru.Cache[dfa.State, *toktrie.TokenSet], error) {
	if size <= 0 {
		return nil, nil
	}
	return lru.New[dfa.State, *toktrie.TokenSet](size)
}

func newRegex(trie *toktrie.Trie, d *dfa.DFA, masks *lru.Cache[dfa.State, *toktrie.TokenSet]) *Regex {
	slog.Debug("regex constraint", "dfa", d)
	rec := &dfaRecognizer{d: d, states: []dfa.State{d.Start()}}
	return &Regex{
		core:  core{kind: KindRegex, trie: trie, rec: rec},
		dfa:   rec,
		masks: masks,
	}
}

// State returns the current DFA state.
func (r *Regex) State() dfa.State {
	return r.dfa.top()
}

func (r *Regex) AllowTokens(set *toktrie.TokenSet) error {
	if r.masks == nil || !r.live() || !r.rec.canScan() {
		return r.core.AllowTokens(set)
	}

	if err := r.checkSet(set); err != nil {
		return err
	}

	state := r.dfa.top()
	if mask, ok := r.masks.Get(state); ok {
		set.CopyFrom(mask)
	} else {
		r.trie.Walk(r.rec, set)
		r.masks.Add(state, set.Clone())
	}

	return r.finish(set)
}

func (r *Regex) Clone() Constraint {
	c := r.core.clone()
	return &Regex{core: c, dfa: c.rec.(*dfaRecognizer), masks: r.masks}
}

type dfaRecognizer struct {
	d      *dfa.DFA
	states []dfa.State
}

func (r *dfaRecognizer) top() dfa.State {
	return r.states[len(r.states)-1]
}

func (r *dfaRecognizer) PushByte(b byte) bool {
	next := r.d.Next(r.top(), b)
	if next == dfa.Dead {
		return false
	}
	r.states = append(r.states, next)
	return true
}

func (r *dfaRecognizer) PopBytes(n int) {
	r.states = r.states[:len(r.states)-n]
}

func (r *dfaRecognizer) accepting() bool {
	return r.d.IsAccepting(r.top())
}

func (r *dfaRecognizer) canScan() bool {
	return r.d.HasNext(r.top())
}

func (r *dfaRecognizer) forcedByte() (byte, bool) {
	return r.d.ForcedByte(r.top())
}

func (r *dfaRecognizer) commit() {
	r.states[0] = r.top()
	r.states = r.states[:1]
}

func (r *dfaRecognizer) takeErr() error {
	return nil
}

func (r *dfaRecognizer) clone() recognizer {
	return &dfaRecognizer{d: r.d, states: slices.Clone(r.states)}
}
