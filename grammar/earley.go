package grammar

import (
	"errors"
	"math/bits"
	"slices"

	"github.com/emirpasic/gods/v2/stacks/arraystack"
)

// ErrBudgetExceeded is reported when a parser creates more items than
// its budget allows. The parser refuses further input until the budget
// is reset.
var ErrBudgetExceeded = errors.New("grammar: parser item budget exceeded")

// item is a dotted rule together with the position its match began at.
type item struct {
	rule   int32
	dot    int32
	origin int32
}

// row is the Earley set after some number of input bytes. Rows are
// immutable once built and shared between forked parsers.
type row struct {
	scans   []item           // items expecting a byte next
	waiting map[int32][]item // items expecting a nonterminal next, by nonterminal
	allowed [4]uint64
	accept  bool
}

func (r *row) allows(b byte) bool {
	return r.allowed[b>>6]&(1<<(b&63)) != 0
}

func (r *row) empty() bool {
	return r.allowed == [4]uint64{}
}

// only returns the allowed byte if there is exactly one.
func (r *row) only() (byte, bool) {
	n, b := 0, 0
	for i, w := range r.allowed {
		if w != 0 {
			n += bits.OnesCount64(w)
			b = i<<6 | bits.TrailingZeros64(w)
		}
	}
	return byte(b), n == 1
}

// Parser recognizes a Grammar one byte at a time. It keeps one row per
// byte consumed, so PopBytes is a truncation and Clone copies nothing
// but the row list.
type Parser struct {
	g    *Grammar
	rows []*row

	// shared is set when rows may alias another parser's backing array
	shared bool

	maxItems int
	used     int
	err      error
}

// NewParser returns a parser positioned before any input. maxItems
// bounds the items created between calls to ResetBudget; zero means no
// bound.
func NewParser(g *Grammar, maxItems int) *Parser {
	p := &Parser{g: g}

	// the first row depends only on g and is never charged
	first, _ := p.build(0, []item{{rule: g.accept}})
	p.rows = []*row{first}
	p.used, p.maxItems = 0, maxItems
	return p
}

// build completes the row after k bytes from its scanned kernel. Items
// for nullable nonterminals are advanced as soon as they are predicted,
// so completion never needs to look at the row under construction.
func (p *Parser) build(k int32, kernel []item) (*row, error) {
	r := &row{waiting: make(map[int32][]item)}

	seen := make(map[item]struct{}, 2*len(kernel))
	stack := arraystack.New[item]()
	push := func(it item) {
		if _, ok := seen[it]; !ok {
			seen[it] = struct{}{}
			stack.Push(it)
		}
	}

	for _, it := range kernel {
		push(it)
	}

	for !stack.Empty() {
		if p.maxItems > 0 && p.used+len(seen) > p.maxItems {
			return nil, ErrBudgetExceeded
		}

		it, _ := stack.Pop()
		rl := &p.g.rules[it.rule]

		if int(it.dot) == len(rl.rhs) {
			if it.rule == p.g.accept && it.origin == 0 {
				r.accept = true
			}

			if it.origin == k {
				continue
			}

			for _, w := range p.rows[it.origin].waiting[rl.lhs] {
				push(item{rule: w.rule, dot: w.dot + 1, origin: w.origin})
			}
			continue
		}

		s := rl.rhs[it.dot]
		if s.terminal() {
			r.scans = append(r.scans, it)
			for b := int(s.lo); b <= int(s.hi); b++ {
				r.allowed[b>>6] |= 1 << (b & 63)
			}
			continue
		}

		r.waiting[s.nt] = append(r.waiting[s.nt], it)
		for _, ri := range p.g.byLHS[s.nt] {
			push(item{rule: ri, origin: k})
		}

		if p.g.nullable[s.nt] {
			push(item{rule: it.rule, dot: it.dot + 1, origin: it.origin})
		}
	}

	p.used += len(seen)
	return r, nil
}

func (p *Parser) last() *row {
	return p.rows[len(p.rows)-1]
}

func (p *Parser) own() {
	if p.shared {
		p.rows = slices.Clone(p.rows)
		p.shared = false
	}
}

// PushByte consumes b if some sentence of the grammar continues with it.
func (p *Parser) PushByte(b byte) bool {
	if p.err != nil {
		return false
	}

	last := p.last()
	if !last.allows(b) {
		return false
	}

	var kernel []item
	for _, it := range last.scans {
		if s := p.g.rules[it.rule].rhs[it.dot]; s.lo <= b && b <= s.hi {
			kernel = append(kernel, item{rule: it.rule, dot: it.dot + 1, origin: it.origin})
		}
	}

	r, err := p.build(int32(len(p.rows)), kernel)
	if err != nil {
		p.err = err
		return false
	}

	p.own()
	p.rows = append(p.rows, r)
	return true
}

// PopBytes undoes the last n successful pushes.
func (p *Parser) PopBytes(n int) {
	if n <= 0 {
		return
	}
	p.own()
	p.rows = p.rows[:len(p.rows)-n]
}

// Accepting reports whether the input consumed so far is a sentence.
func (p *Parser) Accepting() bool {
	return p.err == nil && p.last().accept
}

// CanScan reports whether any byte may follow the input consumed so far.
func (p *Parser) CanScan() bool {
	return p.err == nil && !p.last().empty()
}

// Allows reports whether b may follow the input consumed so far.
func (p *Parser) Allows(b byte) bool {
	return p.err == nil && p.last().allows(b)
}

// ForcedByte returns the byte that must follow the input consumed so
// far when no other byte may.
func (p *Parser) ForcedByte() (byte, bool) {
	if p.err != nil {
		return 0, false
	}
	return p.last().only()
}

// Len returns the number of bytes consumed.
func (p *Parser) Len() int {
	return len(p.rows) - 1
}

// Err returns the error that stopped the parser, if any.
func (p *Parser) Err() error {
	return p.err
}

// ResetBudget starts a new item budget and clears a budget error.
func (p *Parser) ResetBudget() {
	p.used = 0
	if errors.Is(p.err, ErrBudgetExceeded) {
		p.err = nil
	}
}

// Clone returns an independent parser in the same state. Rows are
// shared until either side changes its input.
func (p *Parser) Clone() *Parser {
	p.shared = true
	return &Parser{
		g:        p.g,
		rows:     p.rows,
		shared:   true,
		maxItems: p.maxItems,
		used:     p.used,
		err:      p.err,
	}
}
