package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/fxamacker/cbor/v2"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/host"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/runner"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

type aici struct {
	ctx  context.Context
	ctxC context.CancelFunc

	runner  *runner.Runner
	library *library.Library
	vars    *host.MemoryStorage

	// fatal aborts a call on a broken invariant
	fatal host.Fatal

	dec cbor.DecMode
}

// decMode decodes nested maps with string keys so that decoded specs can
// be re-encoded as JSON.
func decMode() cbor.DecMode {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

func new(ctx context.Context, vocabPath, libraryPath string) (*aici, error) {
	if vocabPath == "" {
		return nil, errors.New("AICI_VOCAB is not set")
	}

	var eosNames []string
	if name := envconfig.EOSToken(); name != "" {
		eosNames = append(eosNames, name)
	}

	vocab, err := tokenizer.LoadFile(vocabPath, eosNames...)
	if err != nil {
		return nil, err
	}

	trie := toktrie.New(vocab)
	s := newWithRunner(ctx, runner.New(tokenizer.New(vocab, trie), trie))

	if libraryPath != "" {
		if s.library, err = library.Load(libraryPath, trie); err != nil {
			return nil, err
		}
		go func() {
			if err := s.library.Watch(s.ctx); err != nil {
				slog.Warn("library watch stopped", "path", libraryPath, "error", err)
			}
		}()
	}

	// listen for a ctrl+c and stop watching
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		s.ctxC()
		os.Exit(0)
	}()

	return s, nil
}

func newWithRunner(ctx context.Context, r *runner.Runner) *aici {
	s := &aici{
		runner: r,
		vars:   host.NewMemoryStorage(),
		fatal:  host.Panic,
		dec:    decMode(),
	}
	s.ctx, s.ctxC = context.WithCancel(ctx)
	return s
}

func (s *aici) tokenize(text string) ([]byte, error) {
	ids, err := s.runner.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return s.encode(ids), nil
}

func (s *aici) detokenize(payload []byte) ([]byte, error) {
	var ids []int32
	if err := s.dec.Unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("%w: tokens: %w", errDecode, err)
	}
	return s.runner.Detokenize(ids)
}

// newSequence starts a sequence under the library constraint name or,
// when name is empty, under the cbor encoded spec. Neither means an
// unconstrained sequence.
func (s *aici) newSequence(name string, spec []byte) (uint64, error) {
	var c constraint.Constraint
	switch {
	case name != "":
		if s.library == nil {
			return 0, fmt.Errorf("%w: %q", library.ErrNotFound, name)
		}

		var err error
		if c, err = s.library.New(name); err != nil {
			return 0, err
		}
	case len(spec) > 0:
		var m map[string]any
		if err := s.dec.Unmarshal(spec, &m); err != nil {
			return 0, fmt.Errorf("%w: spec: %w", errDecode, err)
		}

		sp, err := constraint.DecodeSpec(m)
		if err != nil {
			return 0, &constraint.ConstructionError{Err: err}
		}

		if c, err = sp.Build(s.runner.Trie()); err != nil {
			return 0, err
		}
	default:
		c = constraint.NewDefault(s.runner.Trie())
	}

	return uint64(s.runner.NewSequence(c)), nil
}

func (s *aici) fork(id uint64) (uint64, error) {
	child, err := s.runner.Fork(runner.SeqID(id))
	return uint64(child), err
}

// StepResult is the cbor payload W_step writes.
type StepResult struct {
	Allowed   []int32 `cbor:"allowed"`
	EOSForced bool    `cbor:"eos_forced"`
	FFTokens  []int32 `cbor:"ff_tokens,omitempty"`
}

func (s *aici) step(ctx context.Context, id uint64) ([]byte, error) {
	res := s.runner.Evaluate(runner.SeqID(id))
	if res.Err != nil {
		return nil, res.Err
	}

	result := StepResult{
		Allowed:   make([]int32, 0, res.Set.Count()),
		EOSForced: res.EOSForced,
		FFTokens:  res.Forced,
	}
	for tok := range res.Set.IDs() {
		result.Allowed = append(result.Allowed, tok)
	}

	if self, ok := host.SelfSeqID(ctx); ok {
		slog.Debug("step", "seq", self, "allowed", len(result.Allowed))
	}
	return s.encode(result), nil
}

func (s *aici) commit(id uint64, token int32) error {
	return s.runner.Commit(runner.SeqID(id), token)
}

func (s *aici) drop(id uint64) error {
	if !s.runner.Drop(runner.SeqID(id)) {
		return fmt.Errorf("%w: %s", runner.ErrSequenceNotFound, runner.SeqID(id))
	}
	return nil
}

func (s *aici) varGet(name string) ([]byte, error) {
	resp, err := s.vars.Exec(host.StorageCmd{ReadVar: &host.ReadVar{Name: name}})
	if err != nil {
		return nil, err
	}

	if resp.Missing {
		return nil, fmt.Errorf("%w: %q", host.ErrVariableMissing, name)
	}
	return resp.Value, nil
}

func (s *aici) varWrite(ctx context.Context, name string, value []byte, op host.StorageOp) (uint64, error) {
	resp, err := s.vars.Exec(host.StorageCmd{WriteVar: &host.WriteVar{Name: name, Value: value, Op: op}})
	if err != nil {
		return 0, err
	}

	self, _ := host.SelfSeqID(ctx)
	slog.Debug("variable written", "name", name, "op", op, "version", resp.Version, "seq", self)
	return resp.Version, nil
}

// encode marshals values the satellite produces itself; failing to do so
// is a bug, not a guest error.
func (s *aici) encode(v any) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		s.fatal(fmt.Sprintf("encode %T: %v", v, err))
	}
	return b
}
