// Package runner tracks the live sequences of a sampling batch and the
// constraint each of them is generated under.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

var ErrSequenceNotFound = errors.New("sequence not found")

type SeqID uint64

func (id SeqID) String() string {
	return fmt.Sprintf("seq%d", uint64(id))
}

type sequence struct {
	// mu serializes mutation of one sequence; sequences never share it
	mu     sync.Mutex
	c      constraint.Constraint
	buf    []byte
	tokens []int32
}

// Runner owns the vocabulary, its trie and every live sequence. Methods
// on different sequences may run concurrently.
type Runner struct {
	tok  tokenizer.Tokenizer
	trie *toktrie.Trie

	parallel int

	mu   sync.RWMutex
	seqs map[SeqID]*sequence
	next SeqID
}

type Option func(*Runner)

// WithParallel bounds the sequences StepAll evaluates at once.
func WithParallel(n int) Option {
	return func(r *Runner) {
		r.parallel = n
	}
}

func New(tok tokenizer.Tokenizer, trie *toktrie.Trie, opts ...Option) *Runner {
	r := &Runner{
		tok:      tok,
		trie:     trie,
		parallel: int(envconfig.NumParallel()),
		seqs:     make(map[SeqID]*sequence),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Tokenizer() tokenizer.Tokenizer {
	return r.tok
}

func (r *Runner) Trie() *toktrie.Trie {
	return r.trie
}

// EOSToken returns the end of sequence id.
func (r *Runner) EOSToken() int32 {
	return r.trie.EOSToken()
}

func (r *Runner) Tokenize(text string) ([]int32, error) {
	return tokenizer.Tokenize(r.tok, text)
}

func (r *Runner) Detokenize(ids []int32) ([]byte, error) {
	return tokenizer.Detokenize(r.tok, ids)
}

func (r *Runner) add(s *sequence) SeqID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.seqs[r.next] = s
	return r.next
}

func (r *Runner) get(id SeqID) (*sequence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.seqs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSequenceNotFound, id)
	}
	return s, nil
}

// NewSequence starts a sequence under c. The runner owns c from now on.
func (r *Runner) NewSequence(c constraint.Constraint) SeqID {
	id := r.add(&sequence{c: c})
	slog.Debug("new sequence", "id", id, "kind", c.Kind())
	return id
}

// Fork starts a sequence with a copy of id's constraint state and bytes.
func (r *Runner) Fork(id SeqID) (SeqID, error) {
	s, err := r.get(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	child := &sequence{
		c:      s.c.Clone(),
		buf:    slices.Clone(s.buf),
		tokens: slices.Clone(s.tokens),
	}
	s.mu.Unlock()

	cid := r.add(child)
	slog.Debug("fork sequence", "id", id, "child", cid)
	return cid, nil
}

// Step returns the tokens id may continue with. When the end of sequence
// is forced it is the only member.
func (r *Runner) Step(id SeqID) (*toktrie.TokenSet, error) {
	res := r.step(id, false)
	return res.Set, res.Err
}

// Evaluate steps id and also reports the tokens its constraint forces.
func (r *Runner) Evaluate(id SeqID) Result {
	return r.step(id, true)
}

func (r *Runner) step(id SeqID, forced bool) Result {
	s, err := r.get(id)
	if err != nil {
		return Result{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Set: r.trie.NewTokenSet()}
	if res.EOSForced = s.c.EOSForced(); res.EOSForced {
		res.Set.Add(r.trie.EOSToken())
		return res
	}

	if err := s.c.AllowTokens(res.Set); err != nil {
		res.Err = fmt.Errorf("step %s: %w", id, err)
		return res
	}

	if forced {
		res.Forced = r.forcedTokens(s.c)
	}

	logutil.Trace("step", "id", id, "allowed", res.Set.Count(), "forced", len(res.Forced))
	return res
}

// Forced returns tokens spelling the bytes id's constraint requires
// next, whatever the model samples.
func (r *Runner) Forced(id SeqID) ([]int32, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return r.forcedTokens(s.c), nil
}

// forcedTokens tokenizes the bytes c forces. Trailing tokens that a
// longer allowed token could replace are left for the model to sample.
func (r *Runner) forcedTokens(c constraint.Constraint) []int32 {
	b := c.ForcedBytes()
	if len(b) == 0 {
		return nil
	}

	ids, err := tokenizer.TokenizeBytes(r.tok, b)
	if err != nil {
		slog.Debug("forced bytes not tokenized", "bytes", b, "error", err)
		return nil
	}

	if i := slices.IndexFunc(ids, func(id int32) bool { return !r.trie.Contains(id) }); i >= 0 {
		ids = ids[:i]
	}

	keep := len(ids)
	var suffix []byte
	for i := len(ids) - 1; i >= 0; i-- {
		suffix = append(slices.Clone(r.trie.TokenBytes(ids[i])), suffix...)
		if len(suffix) > r.trie.MaxTokenLen() {
			break
		}

		if r.extensible(c, ids[:i], suffix) {
			keep = i
		}
	}

	if keep == 0 {
		return nil
	}
	return ids[:keep]
}

// extensible reports whether c, after prefix, allows a token that starts
// with suffix and is longer.
func (r *Runner) extensible(c constraint.Constraint, prefix []int32, suffix []byte) bool {
	c = c.Clone()
	for _, id := range prefix {
		if err := c.AppendToken(id); err != nil {
			return false
		}
	}

	for id := range r.trie.Extensions(suffix) {
		if c.TokenAllowed(id) {
			return true
		}
	}
	return false
}

// Commit appends token to id. A token the constraint does not allow is
// not appended and leaves the constraint dead.
func (r *Runner) Commit(id SeqID, token int32) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.c.AppendToken(token); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}

	if token != r.trie.EOSToken() {
		s.buf = append(s.buf, r.trie.TokenBytes(token)...)
	}
	s.tokens = append(s.tokens, token)
	return nil
}

// Drop forgets id and reports whether it existed.
func (r *Runner) Drop(id SeqID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.seqs[id]
	delete(r.seqs, id)
	if ok {
		slog.Debug("drop sequence", "id", id)
	}
	return ok
}

// Bytes returns a copy of the bytes committed to id.
func (r *Runner) Bytes(id SeqID) ([]byte, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buf), nil
}

// Text returns the bytes committed to id with invalid UTF-8 replaced.
func (r *Runner) Text(id SeqID) (string, error) {
	b, err := r.Bytes(id)
	if err != nil {
		return "", err
	}
	return tokenizer.BufferToString(b), nil
}

// Tokens returns a copy of the tokens committed to id.
func (r *Runner) Tokens(id SeqID) ([]int32, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tokens), nil
}

// Constraint returns a copy of id's constraint.
func (r *Runner) Constraint(id SeqID) (constraint.Constraint, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Clone(), nil
}

// Len returns the number of live sequences.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seqs)
}

// IDs returns the live sequences in creation order.
func (r *Runner) IDs() []SeqID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.seqs))
}

// Result is the outcome of stepping one sequence.
type Result struct {
	Set *toktrie.TokenSet
	// EOSForced reports that ending is the only continuation. Set then
	// holds just the end of sequence token.
	EOSForced bool
	// Forced spells the bytes the constraint requires next.
	Forced []int32
	Err    error
}

// StepAll steps every id in parallel. An error stepping one sequence is
// reported in its result and does not affect the others.
func (r *Runner) StepAll(ctx context.Context, ids []SeqID) map[SeqID]Result {
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(max(r.parallel, 1))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			results[i] = r.Evaluate(id)
			return nil
		})
	}
	g.Wait()

	m := make(map[SeqID]Result, len(ids))
	for i, id := range ids {
		m[id] = results[i]
	}
	return m
}
