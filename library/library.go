// Package library keeps named constraints loaded from a YAML file.
//
//	constraints:
//	  number:
//	    kind: regex
//	    pattern: "-?[0-9]+"
//	  answer:
//	    kind: substr
//	    template: "yes, I'm sure"
//	    stop_at: ","
//
// Every entry is compiled when the file is loaded, so malformed entries
// are reported up front and instances are cheap to create.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/toktrie"
)

var ErrNotFound = errors.New("constraint not found")

type file struct {
	Constraints map[string]map[string]any `yaml:"constraints"`
}

// Parse reads and compiles a library file.
func Parse(r io.Reader, trie *toktrie.Trie, opts ...constraint.Option) (map[string]*constraint.Prepared, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode library: %w", err)
	}

	prepared := make(map[string]*constraint.Prepared, len(f.Constraints))
	for _, name := range slices.Sorted(maps.Keys(f.Constraints)) {
		spec, err := constraint.DecodeSpec(f.Constraints[name])
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", name, err)
		}

		p, err := spec.Prepare(trie, opts...)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", name, err)
		}
		prepared[name] = p
	}
	return prepared, nil
}

type Library struct {
	path string
	trie *toktrie.Trie
	opts []constraint.Option

	mu      sync.RWMutex
	entries map[string]*constraint.Prepared
}

// Load reads the library at path.
func Load(path string, trie *toktrie.Trie, opts ...constraint.Option) (*Library, error) {
	l := &Library{path: path, trie: trie, opts: opts}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload rereads the file. On error the previous entries are kept.
func (l *Library) Reload() error {
	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := Parse(f, l.trie, l.opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", l.path, err)
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	slog.Info("constraint library loaded", "path", l.path, "constraints", len(entries))
	return nil
}

func (l *Library) Path() string {
	return l.path
}

func (l *Library) Get(name string) (*constraint.Prepared, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.entries[name]
	return p, ok
}

// New returns a fresh instance of the named constraint.
func (l *Library) New(name string) (constraint.Constraint, error) {
	p, ok := l.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.New(), nil
}

// Specs returns the entries by name.
func (l *Library) Specs() map[string]constraint.Spec {
	l.mu.RLock()
	defer l.mu.RUnlock()

	specs := make(map[string]constraint.Spec, len(l.entries))
	for name, p := range l.entries {
		specs[name] = p.Spec()
	}
	return specs
}

func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.entries))
}

// Watch reloads the library whenever its file changes, until ctx is done.
// The directory is watched rather than the file so that editors
// replacing the file are noticed.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return err
	}

	base := filepath.Base(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != base || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := l.Reload(); err != nil {
				slog.Warn("constraint library reload failed", "path", l.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("constraint library watch", "path", l.path, "error", err)
		}
	}
}
