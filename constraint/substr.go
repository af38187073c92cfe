package constraint

import (
	"bytes"
	"slices"

	"github.com/DataSpeaksTech/aici/toktrie"
)

// Substr accepts template, read from an offset, until one of the stop
// bytes is produced. The bytes of a token after a stop byte are not
// checked; once a stop byte is committed only the end of sequence may
// follow. Without stop bytes the sequence ends with the template.
type Substr struct {
	core
	sub *substrRecognizer
}

var _ Constraint = (*Substr)(nil)

// NewSubstr never fails. Every byte of stopAt is a stop byte.
func NewSubstr(trie *toktrie.Trie, template, stopAt string, opts ...Option) *Substr {
	o := newOptions(opts)
	rec := &substrRecognizer{
		template: []byte(template),
		stop:     []byte(stopAt),
		stack:    []substrPos{{offset: min(max(o.offset, 0), len(template))}},
	}
	return &Substr{
		core: core{kind: KindSubstr, trie: trie, rec: rec},
		sub:  rec,
	}
}

// Offset returns the position in the template reached so far.
func (s *Substr) Offset() int {
	return s.sub.top().offset
}

// Stopped reports whether a stop byte has been committed.
func (s *Substr) Stopped() bool {
	return s.sub.top().stopped
}

func (s *Substr) Clone() Constraint {
	c := s.core.clone()
	return &Substr{core: c, sub: c.rec.(*substrRecognizer)}
}

type substrPos struct {
	offset  int
	stopped bool
}

type substrRecognizer struct {
	template []byte
	stop     []byte
	stack    []substrPos
}

func (r *substrRecognizer) top() substrPos {
	return r.stack[len(r.stack)-1]
}

func (r *substrRecognizer) PushByte(b byte) bool {
	p := r.top()
	switch {
	case p.stopped:
		// rest of the token after a stop byte
	case bytes.IndexByte(r.stop, b) >= 0:
		p.stopped = true
	case p.offset < len(r.template) && r.template[p.offset] == b:
		p.offset++
	default:
		return false
	}

	r.stack = append(r.stack, p)
	return true
}

func (r *substrRecognizer) PopBytes(n int) {
	r.stack = r.stack[:len(r.stack)-n]
}

func (r *substrRecognizer) accepting() bool {
	p := r.top()
	return p.stopped || p.offset == len(r.template)
}

func (r *substrRecognizer) canScan() bool {
	p := r.top()
	return !p.stopped && (p.offset < len(r.template) || len(r.stop) > 0)
}

// forcedByte returns the next template byte unless a different stop
// byte could be produced instead.
func (r *substrRecognizer) forcedByte() (byte, bool) {
	p := r.top()
	if p.stopped || p.offset >= len(r.template) {
		return 0, false
	}

	b := r.template[p.offset]
	for _, s := range r.stop {
		if s != b {
			return 0, false
		}
	}
	return b, true
}

func (r *substrRecognizer) commit() {
	r.stack[0] = r.top()
	r.stack = r.stack[:1]
}

func (r *substrRecognizer) takeErr() error {
	return nil
}

func (r *substrRecognizer) clone() recognizer {
	return &substrRecognizer{template: r.template, stop: r.stop, stack: slices.Clone(r.stack)}
}
