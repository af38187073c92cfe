package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/runner"
	"github.com/DataSpeaksTech/aici/server"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

const testTokenizer = `{
  "model": {
    "type": "BPE",
    "vocab": {"a": 0, "b": 1, "c": 2, "ab": 3, "bc": 4, "Ġ": 5, "x": 6},
    "merges": []
  },
  "added_tokens": [{"id": 7, "content": "</s>", "special": true}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheck(t *testing.T) {
	vocab := writeFile(t, "tokenizer.json", testTokenizer)
	grammar := writeFile(t, "abc.ebnf", `s = "a" { "b" } "c" .`)
	lib := writeFile(t, "library.yaml", `
constraints:
  letters:
    kind: regex
    pattern: "[abc]+"
`)

	cases := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "regex",
			args: []string{"--regex", "ab*c", "abbc"},
			want: []string{`"ab"`, `"bc"`, "regex constraint, 2 tokens, end of sequence forced"},
		},
		{
			name: "grammar",
			args: []string{"--grammar", grammar, "abbc"},
			want: []string{"cfg constraint, 2 tokens, end of sequence forced"},
		},
		{
			name: "substr",
			args: []string{"--substr", "abc", "abc"},
			want: []string{"substr constraint, 2 tokens, end of sequence forced"},
		},
		{
			name: "substr prefix",
			args: []string{"--substr", "abc, then x", "--stop", ",", "ab"},
			want: []string{"substr constraint, 1 tokens, end of sequence no"},
		},
		{
			name: "library",
			args: []string{"--library", lib, "--name", "letters", "abbc"},
			want: []string{"regex constraint, 2 tokens, end of sequence allowed"},
		},
		{
			name: "default",
			args: []string{"abbc"},
			want: []string{"default constraint, 2 tokens, end of sequence allowed"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"check", "--vocab", vocab}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}

			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestCheckRejected(t *testing.T) {
	vocab := writeFile(t, "tokenizer.json", testTokenizer)

	out, err := run(t, "check", "--vocab", vocab, "--regex", "ab*c", "ax")
	if !errors.Is(err, constraint.ErrState) {
		t.Fatalf("expected ErrState, got %v", err)
	}

	if !strings.Contains(out, `"x"`) || strings.Contains(out, "end of sequence") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCheckErrors(t *testing.T) {
	vocab := writeFile(t, "tokenizer.json", testTokenizer)

	cases := map[string][]string{
		"exclusive flags": {"check", "--vocab", vocab, "--regex", "a", "--substr", "a", "a"},
		"bad pattern":     {"check", "--vocab", vocab, "--regex", "a(", "a"},
		"missing grammar": {"check", "--vocab", vocab, "--grammar", filepath.Join(t.TempDir(), "missing"), "a"},
		"no library":      {"check", "--vocab", vocab, "--name", "letters", "a"},
		"no input":        {"check", "--vocab", vocab},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AICI_LIBRARY", "")
			if _, err := run(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("no vocab", func(t *testing.T) {
		t.Setenv("AICI_VOCAB", "")
		if _, err := run(t, "check", "a"); err == nil || !strings.Contains(err.Error(), "no vocabulary") {
			t.Errorf("expected missing vocabulary error, got %v", err)
		}
	})
}

func TestVocab(t *testing.T) {
	vocab := writeFile(t, "tokenizer.json", testTokenizer)

	out, err := run(t, "vocab", "--vocab", vocab, "--longest", "2")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"greedy", `7 "</s>"`, `"ab"`, `"bc"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("AICI_VOCAB", "/tmp/tokenizer.json")

	out, err := run(t, "env")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out, "AICI_VOCAB") || !strings.Contains(out, "/tmp/tokenizer.json") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, "env", "--example")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out, "[engine]") {
		t.Errorf("unexpected example:\n%s", out)
	}
}

func TestTokenizeDetokenize(t *testing.T) {
	vocab, err := tokenizer.Load(strings.NewReader(testTokenizer))
	if err != nil {
		t.Fatal(err)
	}

	trie := toktrie.New(vocab)
	r := runner.New(tokenizer.New(vocab, trie), trie)

	ts := httptest.NewServer(server.New(r, nil, nil).GenerateRoutes())
	defer ts.Close()
	t.Setenv("AICI_HOST", ts.URL)

	out, err := run(t, "tokenize", "abbc")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("3 4\n", out); diff != "" {
		t.Errorf("tokenize mismatch (-want +got):\n%s", diff)
	}

	out, err = run(t, "detokenize", "3,4", "5", "6")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("abbc x\n", out); diff != "" {
		t.Errorf("detokenize mismatch (-want +got):\n%s", diff)
	}

	if _, err := run(t, "detokenize", "nope"); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestTokenizeNoServer(t *testing.T) {
	ts := httptest.NewServer(nil)
	ts.Close()
	t.Setenv("AICI_HOST", ts.URL)

	if _, err := run(t, "tokenize", "abc"); err == nil || !strings.Contains(err.Error(), "aici serve") {
		t.Errorf("expected heartbeat error, got %v", err)
	}
}
