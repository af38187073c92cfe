// Package grammar compiles EBNF grammars into context-free grammars over
// bytes and recognizes them incrementally with an Earley parser.
//
// Grammars use the notation of golang.org/x/exp/ebnf. The first
// production in the source is the start symbol. Tokens stand for their
// UTF-8 bytes and ranges for every rune between their bounds, so a
// grammar describes byte strings directly and no separate lexer is
// involved.
package grammar

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"

	"github.com/DataSpeaksTech/aici/internal/utf8seq"
)

// symbol is either a nonterminal (nt >= 0) or a terminal matching one
// byte in [lo, hi].
type symbol struct {
	nt     int32
	lo, hi byte
}

func (s symbol) terminal() bool {
	return s.nt < 0
}

func nonterminal(nt int32) symbol {
	return symbol{nt: nt}
}

func terminal(lo, hi byte) symbol {
	return symbol{nt: -1, lo: lo, hi: hi}
}

type rule struct {
	lhs int32
	rhs []symbol
}

// Grammar is an immutable byte-level context-free grammar. It is safe
// for concurrent use by any number of parsers.
type Grammar struct {
	name  string
	start string

	names    []string // nonterminal names; generated helpers are named after their parent
	rules    []rule
	byLHS    [][]int32
	nullable []bool

	// accept is the augmented start rule, S' -> S
	accept int32
}

// Compile parses src, verifies it from its first production and
// compiles it.
func Compile(name, src string) (*Grammar, error) {
	now := time.Now()

	prods, err := ebnf.Parse(name, strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse grammar: %w", err)
	}

	if len(prods) == 0 {
		return nil, fmt.Errorf("parse grammar: %s: no productions", name)
	}

	order := make([]*ebnf.Production, 0, len(prods))
	for _, p := range prods {
		order = append(order, p)
	}
	slices.SortFunc(order, func(a, b *ebnf.Production) int {
		return cmp.Compare(a.Name.StringPos.Offset, b.Name.StringPos.Offset)
	})

	start := order[0].Name.String
	if err := ebnf.Verify(prods, start); err != nil {
		return nil, fmt.Errorf("verify grammar: %w", err)
	}

	c := &compiler{
		g:   &Grammar{name: name, start: start},
		ids: make(map[string]int32, len(order)),
	}

	// S' first so it is nonterminal 0
	augmented := c.add("<start>")
	for _, p := range order {
		c.ids[p.Name.String] = c.add(p.Name.String)
	}

	for _, p := range order {
		lhs := c.ids[p.Name.String]
		if err := c.production(lhs, p.Expr); err != nil {
			return nil, fmt.Errorf("compile production %q: %w", p.Name.String, err)
		}
	}

	c.g.accept = int32(len(c.g.rules))
	c.g.rules = append(c.g.rules, rule{lhs: augmented, rhs: []symbol{nonterminal(c.ids[start])}})

	c.g.finish()

	slog.Debug("grammar compiled", "name", name, "start", start, "nonterminals", len(c.g.names), "rules", len(c.g.rules), "duration", time.Since(now))
	return c.g, nil
}

type compiler struct {
	g   *Grammar
	ids map[string]int32
}

func (c *compiler) add(name string) int32 {
	c.g.names = append(c.g.names, name)
	return int32(len(c.g.names) - 1)
}

// helper adds a nonterminal standing for a subexpression of parent.
func (c *compiler) helper(parent int32) int32 {
	return c.add(fmt.Sprintf("%s~%d", c.g.names[parent], len(c.g.names)))
}

func (c *compiler) rule(lhs int32, rhs []symbol) {
	c.g.rules = append(c.g.rules, rule{lhs: lhs, rhs: rhs})
}

// production adds a rule for every alternative of expr.
func (c *compiler) production(lhs int32, expr ebnf.Expression) error {
	if alt, ok := expr.(ebnf.Alternative); ok {
		for _, e := range alt {
			rhs, err := c.sequence(lhs, e)
			if err != nil {
				return err
			}
			c.rule(lhs, rhs)
		}
		return nil
	}

	rhs, err := c.sequence(lhs, expr)
	if err != nil {
		return err
	}
	c.rule(lhs, rhs)
	return nil
}

// sequence returns the symbols of expr, adding helper nonterminals for
// nested alternatives, options and repetitions.
func (c *compiler) sequence(parent int32, expr ebnf.Expression) ([]symbol, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case ebnf.Sequence:
		var rhs []symbol
		for _, e := range e {
			s, err := c.sequence(parent, e)
			if err != nil {
				return nil, err
			}
			rhs = append(rhs, s...)
		}
		return rhs, nil
	case *ebnf.Name:
		return []symbol{nonterminal(c.ids[e.String])}, nil
	case *ebnf.Token:
		rhs := make([]symbol, len(e.String))
		for i := range len(e.String) {
			rhs[i] = terminal(e.String[i], e.String[i])
		}
		return rhs, nil
	case *ebnf.Range:
		return c.runeRange(parent, e)
	case *ebnf.Group:
		if _, ok := e.Body.(ebnf.Alternative); !ok {
			return c.sequence(parent, e.Body)
		}
		nt := c.helper(parent)
		return []symbol{nonterminal(nt)}, c.production(nt, e.Body)
	case *ebnf.Option:
		// nt = ε | body
		nt := c.helper(parent)
		c.rule(nt, nil)
		return []symbol{nonterminal(nt)}, c.production(nt, e.Body)
	case *ebnf.Repetition:
		// nt = ε | nt body
		nt := c.helper(parent)
		c.rule(nt, nil)
		body := e.Body
		if g, ok := body.(*ebnf.Group); ok {
			body = g.Body
		}

		alts := ebnf.Alternative{body}
		if alt, ok := body.(ebnf.Alternative); ok {
			alts = alt
		}

		for _, alt := range alts {
			rhs, err := c.sequence(nt, alt)
			if err != nil {
				return nil, err
			}
			c.rule(nt, append([]symbol{nonterminal(nt)}, rhs...))
		}
		return []symbol{nonterminal(nt)}, nil
	case ebnf.Alternative:
		nt := c.helper(parent)
		return []symbol{nonterminal(nt)}, c.production(nt, e)
	default:
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

// runeRange expands a character range into the byte sequences of its
// UTF-8 encodings.
func (c *compiler) runeRange(parent int32, r *ebnf.Range) ([]symbol, error) {
	lo, n := utf8.DecodeRuneInString(r.Begin.String)
	if n != len(r.Begin.String) || lo == utf8.RuneError {
		return nil, fmt.Errorf("%s: range bound %q is not a single character", r.Pos(), r.Begin.String)
	}

	hi, n := utf8.DecodeRuneInString(r.End.String)
	if n != len(r.End.String) || hi == utf8.RuneError {
		return nil, fmt.Errorf("%s: range bound %q is not a single character", r.End.Pos(), r.End.String)
	}

	if lo > hi {
		return nil, fmt.Errorf("%s: empty range %q … %q", r.Pos(), r.Begin.String, r.End.String)
	}

	seqs := utf8seq.Sequences(lo, hi)
	if len(seqs) == 1 && len(seqs[0]) == 1 {
		return []symbol{terminal(seqs[0][0].Lo, seqs[0][0].Hi)}, nil
	}

	nt := c.helper(parent)
	for _, seq := range seqs {
		rhs := make([]symbol, len(seq))
		for i, br := range seq {
			rhs[i] = terminal(br.Lo, br.Hi)
		}
		c.rule(nt, rhs)
	}
	return []symbol{nonterminal(nt)}, nil
}

// finish computes nullable nonterminals, drops rules that can never
// derive a byte string, and indexes rules by their left-hand side.
func (g *Grammar) finish() {
	productive := make([]bool, len(g.names))
	g.nullable = make([]bool, len(g.names))

	for changed := true; changed; {
		changed = false
		for _, r := range g.rules {
			p, n := true, true
			for _, s := range r.rhs {
				if s.terminal() {
					n = false
					continue
				}
				p = p && productive[s.nt]
				n = n && g.nullable[s.nt]
			}

			if p && !productive[r.lhs] {
				productive[r.lhs] = true
				changed = true
			}

			if n && !g.nullable[r.lhs] {
				g.nullable[r.lhs] = true
				changed = true
			}
		}
	}

	accept := g.accept
	rules := g.rules[:0]
	for i, r := range g.rules {
		if int32(i) == accept {
			// kept even when nothing can be derived so the parser has an
			// item to start from
			g.accept = int32(len(rules))
			rules = append(rules, r)
			continue
		}

		if !productive[r.lhs] || slices.ContainsFunc(r.rhs, func(s symbol) bool {
			return !s.terminal() && !productive[s.nt]
		}) {
			continue
		}
		rules = append(rules, r)
	}
	g.rules = slices.Clip(rules)

	g.byLHS = make([][]int32, len(g.names))
	for i, r := range g.rules {
		g.byLHS[r.lhs] = append(g.byLHS[r.lhs], int32(i))
	}
}

// Name returns the name the grammar was compiled with.
func (g *Grammar) Name() string {
	return g.name
}

// Start returns the name of the start production.
func (g *Grammar) Start() string {
	return g.start
}

func (g *Grammar) NumRules() int {
	return len(g.rules)
}

// Match reports whether the whole of b is a sentence of g.
func (g *Grammar) Match(b []byte) bool {
	p := NewParser(g, 0)
	for _, c := range b {
		if !p.PushByte(c) {
			return false
		}
	}
	return p.Accepting()
}

func (g *Grammar) String() string {
	var sb strings.Builder
	for _, r := range g.rules {
		sb.WriteString(g.names[r.lhs])
		sb.WriteString(" =")
		for _, s := range r.rhs {
			switch {
			case !s.terminal():
				fmt.Fprintf(&sb, " %s", g.names[s.nt])
			case s.lo == s.hi:
				fmt.Fprintf(&sb, " %q", string(rune(s.lo)))
			default:
				fmt.Fprintf(&sb, " [%#02x-%#02x]", s.lo, s.hi)
			}
		}
		sb.WriteString(" .\n")
	}
	return sb.String()
}
