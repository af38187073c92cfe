// Package dfa compiles regular expressions into deterministic automata
// over bytes. Matching is anchored at both ends: a DFA accepts an input
// only if the whole input matches the pattern.
package dfa

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp/syntax"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsupported   = errors.New("unsupported regular expression feature")
	ErrTooManyStates = errors.New("regular expression too large")
)

// DefaultMaxStates bounds the states of a compiled DFA.
const DefaultMaxStates = 10_000

// State is a DFA state. Dead is the state reached once no continuation
// can lead to a match.
type State int32

const Dead State = -1

type DFA struct {
	pattern string
	classes ByteClasses

	// trans[s*classes.Len()+c] is the successor of s on class c
	trans  []State
	accept []bool
	final  []bool // accepting with no outgoing transitions
	start  State
}

type options struct {
	maxStates int
}

type Option func(*options)

// WithMaxStates bounds the number of states subset construction may
// create. Exceeding it fails compilation with ErrTooManyStates.
func WithMaxStates(n int) Option {
	return func(o *options) {
		o.maxStates = n
	}
}

// Compile parses pattern with Perl syntax and builds its DFA.
func Compile(pattern string, opts ...Option) (*DFA, error) {
	o := options{maxStates: DefaultMaxStates}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()

	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, err
	}

	prog, err := syntax.Compile(re.Simplify())
	if err != nil {
		return nil, err
	}

	n, err := newNFA(prog)
	if err != nil {
		return nil, err
	}

	d, err := determinize(n, o.maxStates)
	if err != nil {
		return nil, err
	}
	d.pattern = pattern
	d.trim()

	slog.Debug("regex compiled", "pattern", pattern, "states", d.NumStates(), "classes", d.classes.Len(), "duration", time.Since(start))
	return d, nil
}

// closure collects the byte and match nodes reachable from roots without
// consuming input. Begin-of-text assertions pass only at the start.
type closure struct {
	n       *nfa
	seen    []bool
	stack   []int
	visited []int
}

func (c *closure) compute(roots []int, atStart bool) (nodes []int, accept bool) {
	defer func() {
		for _, i := range c.visited {
			c.seen[i] = false
		}
		c.visited = c.visited[:0]
	}()

	c.stack = append(c.stack[:0], roots...)
	for len(c.stack) > 0 {
		i := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if c.seen[i] {
			continue
		}
		c.seen[i] = true
		c.visited = append(c.visited, i)

		nd := &c.n.nodes[i]
		switch nd.op {
		case opSplit:
			c.stack = append(c.stack, nd.next...)
		case opBeginText:
			if atStart {
				c.stack = append(c.stack, nd.next...)
			}
		case opEndText:
			accept = accept || c.matchesEmpty(nd.next[0], atStart)
		case opByte:
			nodes = append(nodes, i)
		case opMatch:
			accept = true
		}
	}

	slices.Sort(nodes)
	return nodes, accept
}

// matchesEmpty reports whether i reaches a match without consuming input
// or taking any transition that requires more input.
func (c *closure) matchesEmpty(i int, atStart bool) bool {
	seen := map[int]bool{}
	stack := []int{i}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[i] {
			continue
		}
		seen[i] = true

		nd := &c.n.nodes[i]
		switch nd.op {
		case opMatch:
			return true
		case opSplit, opEndText:
			stack = append(stack, nd.next...)
		case opBeginText:
			if atStart {
				stack = append(stack, nd.next...)
			}
		}
	}
	return false
}

func key(nodes []int, accept bool) string {
	var sb strings.Builder
	if accept {
		sb.WriteByte('!')
	}
	for _, i := range nodes {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(',')
	}
	return sb.String()
}

// determinize runs subset construction over byte classes.
func determinize(n *nfa, maxStates int) (*DFA, error) {
	d := &DFA{classes: newByteClasses(n.byteRanges())}
	reps := d.classes.Representatives()

	c := &closure{n: n, seen: make([]bool, len(n.nodes))}

	var sets [][]int
	index := map[string]State{}
	add := func(nodes []int, accept bool) (State, error) {
		k := key(nodes, accept)
		if s, ok := index[k]; ok {
			return s, nil
		}

		if len(sets) >= maxStates {
			return Dead, fmt.Errorf("%w: more than %d states", ErrTooManyStates, maxStates)
		}

		s := State(len(sets))
		index[k] = s
		sets = append(sets, nodes)
		d.accept = append(d.accept, accept)
		return s, nil
	}

	start, err := add(c.compute([]int{n.start}, true))
	if err != nil {
		return nil, err
	}
	d.start = start

	var next []int
	for s := 0; s < len(sets); s++ {
		row := make([]State, len(reps))
		for ci, b := range reps {
			next = next[:0]
			for _, i := range sets[s] {
				if nd := &n.nodes[i]; nd.lo <= b && b <= nd.hi {
					next = append(next, nd.next[0])
				}
			}

			if len(next) == 0 {
				row[ci] = Dead
				continue
			}

			t, err := add(c.compute(next, false))
			if err != nil {
				return nil, err
			}
			row[ci] = t
		}
		d.trans = append(d.trans, row...)
	}

	return d, nil
}

// trim removes states from which no accepting state is reachable and
// renumbers the rest. Transitions into removed states become Dead.
func (d *DFA) trim() {
	k := d.classes.Len()
	n := len(d.accept)

	reverse := make([][]State, n)
	for s := range n {
		for _, t := range d.trans[s*k : (s+1)*k] {
			if t != Dead {
				reverse[t] = append(reverse[t], State(s))
			}
		}
	}

	live := make([]bool, n)
	var stack []State
	for s, ok := range d.accept {
		if ok {
			live[s] = true
			stack = append(stack, State(s))
		}
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range reverse[s] {
			if !live[p] {
				live[p] = true
				stack = append(stack, p)
			}
		}
	}

	renumber := make([]State, n)
	var m int
	for s := range n {
		renumber[s] = Dead
		if live[s] || State(s) == d.start {
			renumber[s] = State(m)
			m++
		}
	}

	trans := make([]State, 0, m*k)
	accept := make([]bool, 0, m)
	final := make([]bool, 0, m)
	for s := range n {
		if renumber[s] == Dead {
			continue
		}

		terminal := true
		for _, t := range d.trans[s*k : (s+1)*k] {
			if t != Dead && live[s] && live[t] {
				t = renumber[t]
			} else {
				t = Dead
			}
			terminal = terminal && t == Dead
			trans = append(trans, t)
		}

		accept = append(accept, d.accept[s])
		final = append(final, d.accept[s] && terminal)
	}

	d.trans, d.accept, d.final = trans, accept, final
	d.start = renumber[d.start]
}

func (d *DFA) Start() State {
	return d.start
}

// Next returns the successor of s on b, or Dead.
func (d *DFA) Next(s State, b byte) State {
	if s == Dead {
		return Dead
	}
	return d.trans[int(s)*d.classes.Len()+int(d.classes.Get(b))]
}

// IsAccepting reports whether the input read so far matches.
func (d *DFA) IsAccepting(s State) bool {
	return s != Dead && d.accept[s]
}

// IsFinal reports whether s matches and no further input can.
func (d *DFA) IsFinal(s State) bool {
	return s != Dead && d.final[s]
}

// HasNext reports whether some byte leads from s to a live state.
func (d *DFA) HasNext(s State) bool {
	if s == Dead {
		return false
	}

	n := d.classes.Len()
	return slices.ContainsFunc(d.trans[int(s)*n:int(s+1)*n], func(t State) bool {
		return t != Dead
	})
}

// ForcedByte returns the byte leading from s to a live state when it is
// the only one.
func (d *DFA) ForcedByte(s State) (byte, bool) {
	if s == Dead {
		return 0, false
	}

	n := d.classes.Len()
	live := -1
	for c, t := range d.trans[int(s)*n : int(s+1)*n] {
		if t == Dead {
			continue
		}
		if live >= 0 {
			return 0, false
		}
		live = c
	}

	if live < 0 {
		return 0, false
	}

	lo, hi := d.classes.Range(byte(live))
	return lo, lo == hi
}

// Match reports whether the whole of b matches.
func (d *DFA) Match(b []byte) bool {
	s := d.start
	for _, c := range b {
		if s = d.Next(s, c); s == Dead {
			return false
		}
	}
	return d.IsAccepting(s)
}

func (d *DFA) NumStates() int {
	return len(d.accept)
}

func (d *DFA) Classes() *ByteClasses {
	return &d.classes
}

func (d *DFA) String() string {
	return fmt.Sprintf("dfa(%q, %d states, %d classes)", d.pattern, d.NumStates(), d.classes.Len())
}
