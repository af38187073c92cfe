package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

const testLibrary = `
constraints:
  number:
    kind: regex
    pattern: "-?[0-9]+"
  answer:
    kind: substr
    template: "yes, sure"
    stop_at: ","
  flag:
    kind: cfg
    schema:
      type: boolean
  free: {}
`

func newTestTrie(t *testing.T) *toktrie.Trie {
	t.Helper()

	v := &tokenizer.Vocabulary{}
	for _, tok := range []string{"-", "1", "2", "yes", ",", "true", "false", "x"} {
		v.Values = append(v.Values, tokenizer.ByteLevelEncode([]byte(tok)))
		v.Types = append(v.Types, tokenizer.TOKEN_TYPE_NORMAL)
	}
	v.Values = append(v.Values, "<eos>")
	v.Types = append(v.Types, tokenizer.TOKEN_TYPE_CONTROL)
	v.EOS = []int32{int32(len(v.Values) - 1)}
	return toktrie.New(v)
}

func writeLibrary(t *testing.T, path, content string) {
	t.Helper()
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse(t *testing.T) {
	trie := newTestTrie(t)

	entries, err := Parse(strings.NewReader(testLibrary), trie)
	assert.NilError(t, err)
	assert.Check(t, is.Len(entries, 4))

	assert.Equal(t, entries["number"].Kind(), constraint.KindRegex)
	assert.Equal(t, entries["answer"].Kind(), constraint.KindSubstr)
	assert.Equal(t, entries["flag"].Kind(), constraint.KindCfg)
	assert.Equal(t, entries["free"].Kind(), constraint.KindDefault)
	assert.Equal(t, entries["answer"].Spec().StopAt, ",")

	c := entries["flag"].New()
	assert.NilError(t, c.AppendToken(5))
	assert.Check(t, c.EOSForced())

	empty, err := Parse(strings.NewReader(""), trie)
	assert.NilError(t, err)
	assert.Check(t, is.Len(empty, 0))
}

func TestParseErrors(t *testing.T) {
	trie := newTestTrie(t)

	cases := map[string]string{
		"yaml":    "constraints: [",
		"key":     "constraints:\n  a:\n    kind: regex\n    patern: x\n",
		"pattern": "constraints:\n  bad:\n    kind: regex\n    pattern: \"(\"\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(content), trie)
			assert.Check(t, err != nil)
		})
	}

	_, err := Parse(strings.NewReader(cases["pattern"]), trie)
	assert.Check(t, errors.Is(err, constraint.ErrConstruction))
	assert.ErrorContains(t, err, `constraint "bad"`)
}

func TestLibrary(t *testing.T) {
	trie := newTestTrie(t)
	path := filepath.Join(t.TempDir(), "library.yaml")
	writeLibrary(t, path, testLibrary)

	l, err := Load(path, trie)
	assert.NilError(t, err)
	assert.DeepEqual(t, l.Names(), []string{"answer", "flag", "free", "number"})
	assert.Equal(t, l.Path(), path)
	assert.Equal(t, l.Specs()["number"].Pattern, "-?[0-9]+")

	a, err := l.New("number")
	assert.NilError(t, err)
	b, err := l.New("number")
	assert.NilError(t, err)

	assert.NilError(t, a.AppendToken(1))
	assert.Check(t, a.EOSAllowed())
	assert.Check(t, !b.EOSAllowed())

	_, err = l.New("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// a broken file keeps the previous entries
	writeLibrary(t, path, "constraints:\n  bad:\n    kind: nope\n")
	assert.Check(t, l.Reload() != nil)
	assert.Check(t, is.Len(l.Names(), 4))

	writeLibrary(t, path, "constraints:\n  only:\n    kind: substr\n    template: x\n")
	assert.NilError(t, l.Reload())
	assert.DeepEqual(t, l.Names(), []string{"only"})

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), trie)
	assert.Check(t, errors.Is(err, os.ErrNotExist))
}

func TestWatch(t *testing.T) {
	trie := newTestTrie(t)
	path := filepath.Join(t.TempDir(), "library.yaml")
	writeLibrary(t, path, testLibrary)

	l, err := Load(path, trie)
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Watch(ctx)
	}()

	// the watcher may not be registered yet, so keep rewriting
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		writeLibrary(t, path, "constraints:\n  only:\n    kind: substr\n    template: x\n")
		if _, ok := l.Get("only"); ok {
			return poll.Success()
		}
		return poll.Continue("library not reloaded")
	}, poll.WithTimeout(10*time.Second), poll.WithDelay(50*time.Millisecond))

	cancel()
	assert.NilError(t, <-done)
}
