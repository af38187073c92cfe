package constraint

import (
	"errors"
	"fmt"

	"github.com/DataSpeaksTech/aici/grammar"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// Cfg accepts the sentences of a context-free grammar. Any grammar is
// supported, including ambiguous and left-recursive ones; the work spent
// on a single byte is bounded by WithMaxItems and exceeding it fails the
// query instead of the constraint.
type Cfg struct {
	core
	parser *cfgRecognizer
}

var _ Constraint = (*Cfg)(nil)

// NewCfg compiles grammar text. The first production is the start symbol.
func NewCfg(trie *toktrie.Trie, text string, opts ...Option) (*Cfg, error) {
	g, err := grammar.Compile("cfg", text)
	if err != nil {
		return nil, &ConstructionError{Kind: KindCfg, Source: text, Err: err}
	}
	return NewCfgFromGrammar(trie, g, opts...), nil
}

// NewCfgFromSchema accepts the JSON documents valid under a JSON schema.
func NewCfgFromSchema(trie *toktrie.Trie, schema []byte, opts ...Option) (*Cfg, error) {
	text, err := grammar.FromSchema(schema)
	if err != nil {
		return nil, &ConstructionError{Kind: KindCfg, Source: string(schema), Err: fmt.Errorf("schema: %w", err)}
	}
	return NewCfg(trie, text, opts...)
}

// NewCfgFromGrammar shares an already compiled grammar.
func NewCfgFromGrammar(trie *toktrie.Trie, g *grammar.Grammar, opts ...Option) *Cfg {
	o := newOptions(opts)
	rec := &cfgRecognizer{p: grammar.NewParser(g, o.maxItems)}
	return &Cfg{
		core:   core{kind: KindCfg, trie: trie, rec: rec},
		parser: rec,
	}
}

// Len returns the number of bytes accepted so far.
func (c *Cfg) Len() int {
	return c.parser.p.Len()
}

func (c *Cfg) Clone() Constraint {
	cc := c.core.clone()
	return &Cfg{core: cc, parser: cc.rec.(*cfgRecognizer)}
}

type cfgRecognizer struct {
	p   *grammar.Parser
	err error
}

func (r *cfgRecognizer) PushByte(b byte) bool {
	r.p.ResetBudget()
	if r.p.PushByte(b) {
		return true
	}

	if err := r.p.Err(); errors.Is(err, grammar.ErrBudgetExceeded) {
		r.err = err
		r.p.ResetBudget()
	}
	return false
}

func (r *cfgRecognizer) PopBytes(n int) {
	r.p.PopBytes(n)
}

func (r *cfgRecognizer) accepting() bool {
	return r.p.Accepting()
}

func (r *cfgRecognizer) canScan() bool {
	return r.p.CanScan()
}

func (r *cfgRecognizer) forcedByte() (byte, bool) {
	return r.p.ForcedByte()
}

// commit is a no-op: completed items refer back to every earlier row.
func (r *cfgRecognizer) commit() {}

func (r *cfgRecognizer) takeErr() error {
	err := r.err
	r.err = nil
	return err
}

func (r *cfgRecognizer) clone() recognizer {
	return &cfgRecognizer{p: r.p.Clone()}
}
