package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testTokenizerJSON = `{
  "model": {
    "type": "BPE",
    "vocab": {"h": 0, "i": 1, "hi": 2, "Ġ": 3, "<0x0A>": 4},
    "merges": [["h", "i"]]
  },
  "added_tokens": [
    {"id": 5, "content": "<|endoftext|>", "special": true},
    {"id": 6, "content": "<tool>", "special": false}
  ]
}`

func TestLoad(t *testing.T) {
	vocab, err := Load(strings.NewReader(testTokenizerJSON))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"h", "i", "hi", "Ġ", "<0x0A>", "<|endoftext|>", "<tool>"}, vocab.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	wantTypes := []int32{
		TOKEN_TYPE_NORMAL,
		TOKEN_TYPE_NORMAL,
		TOKEN_TYPE_NORMAL,
		TOKEN_TYPE_NORMAL,
		TOKEN_TYPE_BYTE,
		TOKEN_TYPE_CONTROL,
		TOKEN_TYPE_USER_DEFINED,
	}
	if diff := cmp.Diff(wantTypes, vocab.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"h i"}, vocab.Merges); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}

	if got := vocab.EOSToken(); got != 5 {
		t.Errorf("expected eos 5, got %d", got)
	}

	if got := string(vocab.Bytes(3)); got != " " {
		t.Errorf("expected space, got %q", got)
	}

	if got := string(vocab.Bytes(4)); got != "\n" {
		t.Errorf("expected newline, got %q", got)
	}
}

func TestLoadEOSName(t *testing.T) {
	vocab, err := Load(strings.NewReader(testTokenizerJSON), "<tool>")
	if err != nil {
		t.Fatal(err)
	}

	if got := vocab.EOSToken(); got != 6 {
		t.Errorf("expected eos 6, got %d", got)
	}

	if _, err := Load(strings.NewReader(testTokenizerJSON), "<missing>"); !errors.Is(err, ErrNoEOS) {
		t.Errorf("expected ErrNoEOS, got %v", err)
	}
}

func TestLoadStringMerges(t *testing.T) {
	vocab, err := Load(strings.NewReader(`{
		"model": {"type": "BPE", "vocab": {"a": 0, "b": 1, "ab": 2}, "merges": ["a b"]},
		"added_tokens": [{"id": 3, "content": "</s>", "special": true}]
	}`))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a b"}, vocab.Merges); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"syntax", `{`},
		{"type", `{"model": {"type": "Unigram"}}`},
		{"merge pair", `{"model": {"type": "BPE", "vocab": {}, "merges": [["a", "b", "c"]]}}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, []byte(testTokenizerJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	vocab, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if vocab.Size() != 7 {
		t.Errorf("expected 7 tokens, got %d", vocab.Size())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
