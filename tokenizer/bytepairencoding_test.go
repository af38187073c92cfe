package tokenizer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestBytePairEncoding() *BytePairEncoding {
	vocab := testVocabulary(
		"h", "e", "l", "o", " ", "w", "r", "d", // 0-7
		"he", "ll", "hell", "hello", // 8-11
		" w", "or", " wor", "ld", // 12-15
		"!", // 16
	)
	vocab.Merges = []string{"h e", "l l", "he ll", "hell o", "Ġ w", "o r", "Ġw or", "l d"}
	return NewBytePairEncoding(vocab)
}

func TestBytePairEncoding(t *testing.T) {
	bpe := newTestBytePairEncoding()

	cases := []struct {
		input string
		want  []int32
	}{
		{"hello", []int32{11}},
		{"helo", []int32{8, 2, 3}},
		{"hello world", []int32{11, 14, 15}},
		{"hello world!", []int32{11, 14, 15, 16}},
		{"world", []int32{5, 13, 15}},
		{"hello<eos>", []int32{11, 17}},
	}

	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			ids, err := bpe.Encode(tt.input, false)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}

			s, err := bpe.Decode(ids)
			if err != nil {
				t.Fatal(err)
			}

			if s != tt.input {
				t.Errorf("round trip: expected %q, got %q", tt.input, s)
			}
		})
	}
}

func TestBytePairEncodingNoToken(t *testing.T) {
	bpe := newTestBytePairEncoding()

	_, err := bpe.Encode("z", false)
	var e *NoTokenError
	if !errors.As(err, &e) {
		t.Fatalf("expected NoTokenError, got %v", err)
	}

	if e.Byte != 'z' {
		t.Errorf("expected byte 'z', got %q", e.Byte)
	}
}

func TestDetokenizeInvalidID(t *testing.T) {
	bpe := newTestBytePairEncoding()

	for _, id := range []int32{-1, 18, 1 << 20} {
		if _, err := Detokenize(bpe, []int32{0, id}); !errors.Is(err, ErrInvalidTokenID) {
			t.Errorf("id %d: expected ErrInvalidTokenID, got %v", id, err)
		}
	}
}

func TestNew(t *testing.T) {
	vocab := testVocabulary("a")
	if _, ok := New(vocab, nil).(*Greedy); !ok {
		t.Error("expected greedy tokenizer without merges")
	}

	vocab.Merges = []string{"a a"}
	if _, ok := New(vocab, nil).(*BytePairEncoding); !ok {
		t.Error("expected byte pair encoding with merges")
	}
}
