package constraint

import (
	"fmt"

	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// recognizer is the byte-level state of a constraint.
type recognizer interface {
	toktrie.Recognizer

	// accepting reports whether the bytes committed so far are complete.
	accepting() bool
	// canScan reports whether any byte may follow the committed bytes.
	canScan() bool
	// forcedByte returns the only byte that may follow the pushed bytes.
	forcedByte() (byte, bool)
	// commit makes the pushed bytes the new starting point.
	commit()
	// takeErr returns and clears an error that made pushes fail for a
	// reason other than the input.
	takeErr() error
	clone() recognizer
}

// core implements Constraint over a recognizer. The variants that match
// bytes embed it.
type core struct {
	kind Kind
	trie *toktrie.Trie
	rec  recognizer

	done bool  // end of sequence appended
	err  error // set when dead
}

func (c *core) sealed() {}

func (c *core) Kind() Kind {
	return c.kind
}

func (c *core) Err() error {
	return c.err
}

func (c *core) live() bool {
	return c.err == nil && !c.done
}

func (c *core) EOSAllowed() bool {
	return !c.live() || c.rec.accepting()
}

func (c *core) EOSForced() bool {
	return !c.live() || c.rec.accepting() && !c.rec.canScan()
}

func (c *core) inRange(id int32) bool {
	return id >= 0 && int(id) < c.trie.VocabSize()
}

func (c *core) TokenAllowed(id int32) bool {
	if !c.inRange(id) {
		return false
	}

	if id == c.trie.EOSToken() {
		return c.EOSAllowed()
	}

	if !c.live() || !c.rec.canScan() || !c.trie.Contains(id) {
		return false
	}

	ok := toktrie.Accepts(c.rec, c.trie.TokenBytes(id))
	c.rec.takeErr()
	return ok
}

func (c *core) AppendToken(id int32) error {
	if !c.inRange(id) {
		return &tokenizer.InvalidTokenIDError{ID: id, Size: c.trie.VocabSize()}
	}

	if c.err != nil {
		return c.err
	}

	if id == c.trie.EOSToken() {
		if !c.EOSAllowed() {
			return c.fail(id)
		}
		c.done = true
		return nil
	}

	if c.done || !c.rec.canScan() || !c.trie.Contains(id) {
		return c.fail(id)
	}

	b := c.trie.TokenBytes(id)
	for i, x := range b {
		if !c.rec.PushByte(x) {
			c.rec.PopBytes(i)
			if err := c.rec.takeErr(); err != nil {
				return fmt.Errorf("append token %d: %w", id, err)
			}
			return c.fail(id)
		}
	}

	c.rec.commit()
	return nil
}

// maxForcedBytes bounds ForcedBytes for grammars that never end.
const maxForcedBytes = 4096

// ForcedBytes returns the bytes every continuation starts with, up to
// the first point where the sequence could end or branch.
func (c *core) ForcedBytes() []byte {
	if !c.live() {
		return nil
	}

	var forced []byte
	for len(forced) < maxForcedBytes && !c.rec.accepting() {
		b, ok := c.rec.forcedByte()
		if !ok || !c.rec.PushByte(b) {
			break
		}
		forced = append(forced, b)
	}

	c.rec.PopBytes(len(forced))
	c.rec.takeErr()
	return forced
}

// fail kills the constraint.
func (c *core) fail(id int32) error {
	c.err = &StateError{Kind: c.kind, Token: id, Bytes: c.trie.TokenBytes(id)}
	return c.err
}

func (c *core) checkSet(set *toktrie.TokenSet) error {
	if set.Len() != c.trie.VocabSize() {
		return fmt.Errorf("%w: %d, vocabulary %d", ErrTokenSetSize, set.Len(), c.trie.VocabSize())
	}
	return nil
}

func (c *core) AllowTokens(set *toktrie.TokenSet) error {
	if err := c.checkSet(set); err != nil {
		return err
	}

	set.Clear()
	if c.live() && c.rec.canScan() {
		c.trie.Walk(c.rec, set)
		if err := c.rec.takeErr(); err != nil {
			set.Clear()
			return fmt.Errorf("allow tokens: %w", err)
		}
	}

	return c.finish(set)
}

// finish sets the end of sequence bit and reports an empty result.
func (c *core) finish(set *toktrie.TokenSet) error {
	if eos := c.trie.EOSToken(); c.EOSAllowed() {
		set.Add(eos)
	} else {
		set.Delete(eos)
	}

	logutil.Trace("allowed tokens", "kind", c.kind, "count", set.Count())
	if set.IsEmpty() && !c.EOSAllowed() {
		return ErrUnsatisfiable
	}
	return nil
}

func (c *core) clone() core {
	return core{
		kind: c.kind,
		trie: c.trie,
		rec:  c.rec.clone(),
		done: c.done,
		err:  c.err,
	}
}
