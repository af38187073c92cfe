// Package tokenizer turns text into vocabulary token ids and back.
package tokenizer

import (
	"github.com/DataSpeaksTech/aici/toktrie"
)

type Tokenizer interface {
	Encode(s string, addSpecial bool) ([]int32, error)
	Decode([]int32) (string, error)
	Is(int32, Special) bool
	Vocabulary() *Vocabulary
}

// New returns the canonical tokenizer for vocab: learned merges when the
// vocabulary carries them, longest-match segmentation over trie otherwise.
func New(vocab *Vocabulary, trie *toktrie.Trie) Tokenizer {
	if len(vocab.Merges) > 0 {
		return NewBytePairEncoding(vocab)
	}
	return NewGreedy(vocab, trie)
}

// Tokenize encodes text without adding BOS/EOS.
func Tokenize(t Tokenizer, text string) ([]int32, error) {
	return t.Encode(text, false)
}

// TokenizeBytes encodes raw bytes without adding BOS/EOS.
func TokenizeBytes(t Tokenizer, b []byte) ([]int32, error) {
	return t.Encode(string(b), false)
}

// Detokenize concatenates the raw bytes of ids.
func Detokenize(t Tokenizer, ids []int32) ([]byte, error) {
	return decodeBytes(t.Vocabulary(), ids)
}

func decodeBytes(v *Vocabulary, ids []int32) ([]byte, error) {
	var n int
	for _, id := range ids {
		if id < 0 || int(id) >= v.Size() {
			return nil, &InvalidTokenIDError{ID: id, Size: v.Size()}
		}
		n += len(v.Bytes(id))
	}

	out := make([]byte, 0, n)
	for _, id := range ids {
		out = append(out, v.Bytes(id)...)
	}
	return out, nil
}
