package dfa

import (
	"fmt"
	"regexp/syntax"
	"slices"
	"unicode"

	"github.com/DataSpeaksTech/aici/internal/utf8seq"
)

type op uint8

const (
	opSplit op = iota // epsilon to every target in next
	opByte            // consumes a byte in [lo, hi]
	opMatch
	opBeginText // epsilon, only before any input
	opEndText   // epsilon, only after all input
	opFail
)

type node struct {
	op     op
	lo, hi byte
	next   []int
}

// nfa is a byte-level Thompson automaton. Node i for i < len(prog.Inst)
// stands for instruction i of the compiled program; rune instructions
// expand into chains of byte nodes appended after them.
type nfa struct {
	nodes []node
	start int
}

func newNFA(prog *syntax.Prog) (*nfa, error) {
	n := &nfa{
		nodes: make([]node, len(prog.Inst)),
		start: prog.Start,
	}

	for i, inst := range prog.Inst {
		switch inst.Op {
		case syntax.InstAlt, syntax.InstAltMatch:
			n.nodes[i] = node{op: opSplit, next: []int{int(inst.Out), int(inst.Arg)}}
		case syntax.InstCapture, syntax.InstNop:
			n.nodes[i] = node{op: opSplit, next: []int{int(inst.Out)}}
		case syntax.InstMatch:
			n.nodes[i] = node{op: opMatch}
		case syntax.InstFail:
			n.nodes[i] = node{op: opFail}
		case syntax.InstEmptyWidth:
			switch syntax.EmptyOp(inst.Arg) {
			case syntax.EmptyBeginText:
				n.nodes[i] = node{op: opBeginText, next: []int{int(inst.Out)}}
			case syntax.EmptyEndText:
				n.nodes[i] = node{op: opEndText, next: []int{int(inst.Out)}}
			default:
				return nil, fmt.Errorf("%w: empty-width assertion %s", ErrUnsupported, emptyOpString(syntax.EmptyOp(inst.Arg)))
			}
		case syntax.InstRune, syntax.InstRune1, syntax.InstRuneAny, syntax.InstRuneAnyNotNL:
			n.nodes[i] = node{op: opSplit}
			for _, r := range runeRanges(inst) {
				for _, seq := range utf8seq.Sequences(r[0], r[1]) {
					n.nodes[i].next = append(n.nodes[i].next, n.chain(seq, int(inst.Out)))
				}
			}
		default:
			return nil, fmt.Errorf("%w: instruction %v", ErrUnsupported, inst.Op)
		}
	}

	return n, nil
}

// chain appends byte nodes matching seq in order and returns the first.
func (n *nfa) chain(seq []utf8seq.Range, out int) int {
	next := out
	for i := len(seq) - 1; i >= 0; i-- {
		n.nodes = append(n.nodes, node{op: opByte, lo: seq[i].Lo, hi: seq[i].Hi, next: []int{next}})
		next = len(n.nodes) - 1
	}
	return next
}

// byteRanges returns every byte range some node consumes.
func (n *nfa) byteRanges() []utf8seq.Range {
	var ranges []utf8seq.Range
	for _, nd := range n.nodes {
		if nd.op == opByte {
			ranges = append(ranges, utf8seq.Range{Lo: nd.lo, Hi: nd.hi})
		}
	}
	return ranges
}

// runeRanges returns the inclusive rune ranges inst matches, case folds
// included.
func runeRanges(inst syntax.Inst) [][2]rune {
	switch inst.Op {
	case syntax.InstRuneAny:
		return [][2]rune{{0, unicode.MaxRune}}
	case syntax.InstRuneAnyNotNL:
		return [][2]rune{{0, '\n' - 1}, {'\n' + 1, unicode.MaxRune}}
	}

	if len(inst.Rune) == 1 {
		r := inst.Rune[0]
		ranges := [][2]rune{{r, r}}
		if syntax.Flags(inst.Arg)&syntax.FoldCase != 0 {
			for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
				ranges = append(ranges, [2]rune{f, f})
			}
		}
		return ranges
	}

	ranges := make([][2]rune, 0, len(inst.Rune)/2)
	for pair := range slices.Chunk(inst.Rune, 2) {
		ranges = append(ranges, [2]rune{pair[0], pair[1]})
	}
	return ranges
}

func emptyOpString(e syntax.EmptyOp) string {
	switch {
	case e&(syntax.EmptyBeginLine|syntax.EmptyEndLine) != 0:
		return "line anchor"
	case e&(syntax.EmptyWordBoundary|syntax.EmptyNoWordBoundary) != 0:
		return "word boundary"
	default:
		return fmt.Sprintf("%#x", uint8(e))
	}
}
