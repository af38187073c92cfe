package constraint

import (
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// Default allows every token and never forces the end of sequence.
type Default struct {
	trie *toktrie.Trie
}

var _ Constraint = (*Default)(nil)

func NewDefault(trie *toktrie.Trie) *Default {
	return &Default{trie: trie}
}

func (d *Default) sealed() {}

func (d *Default) Kind() Kind {
	return KindDefault
}

func (d *Default) EOSAllowed() bool {
	return true
}

func (d *Default) EOSForced() bool {
	return false
}

func (d *Default) TokenAllowed(id int32) bool {
	return id >= 0 && int(id) < d.trie.VocabSize()
}

func (d *Default) AppendToken(id int32) error {
	if !d.TokenAllowed(id) {
		return &tokenizer.InvalidTokenIDError{ID: id, Size: d.trie.VocabSize()}
	}
	return nil
}

func (d *Default) AllowTokens(set *toktrie.TokenSet) error {
	c := core{trie: d.trie}
	if err := c.checkSet(set); err != nil {
		return err
	}

	set.SetAll(true)
	return nil
}

func (d *Default) ForcedBytes() []byte {
	return nil
}

func (d *Default) Clone() Constraint {
	return &Default{trie: d.trie}
}

func (d *Default) Err() error {
	return nil
}
