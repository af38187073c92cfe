// Package host provides the services a constraint controller consumes
// but does not implement: shared variable storage, the identity of the
// calling sequence and fatal error reporting.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

var (
	ErrVariableMissing = errors.New("variable missing")
	ErrVersionMismatch = errors.New("variable version mismatch")
)

// VariableStorage is a key/value byte store shared by every sequence.
type VariableStorage interface {
	Get(name string) ([]byte, bool)
	Set(name string, value []byte)
	Append(name string, value []byte)
}

type StorageOp string

const (
	OpSet    StorageOp = "set"
	OpAppend StorageOp = "append"
)

// StorageCmd is a request against a VariableStorage. Exactly one of
// ReadVar and WriteVar is set.
type StorageCmd struct {
	ReadVar  *ReadVar  `json:"read_var,omitempty" cbor:"read_var,omitempty"`
	WriteVar *WriteVar `json:"write_var,omitempty" cbor:"write_var,omitempty"`
}

type ReadVar struct {
	Name string `json:"name" cbor:"name"`
}

type WriteVar struct {
	Name  string    `json:"name" cbor:"name"`
	Value []byte    `json:"value" cbor:"value"`
	Op    StorageOp `json:"op" cbor:"op"`

	// WhenVersionIs makes the write conditional on the current version.
	// A missing variable has version 0.
	WhenVersionIs *uint64 `json:"when_version_is,omitempty" cbor:"when_version_is,omitempty"`
}

type StorageResp struct {
	Version uint64 `json:"version" cbor:"version"`
	Value   []byte `json:"value,omitempty" cbor:"value,omitempty"`
	Missing bool   `json:"missing,omitempty" cbor:"missing,omitempty"`
}

type variable struct {
	value   []byte
	version uint64
}

// MemoryStorage is an in-process VariableStorage. Every write bumps the
// variable's version.
type MemoryStorage struct {
	mu   sync.RWMutex
	vars map[string]variable
}

var _ VariableStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{vars: make(map[string]variable)}
}

// Get returns a copy of the value of name.
func (m *MemoryStorage) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vars[name]
	return slices.Clone(v.value), ok
}

func (m *MemoryStorage) Set(name string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(name, value, OpSet)
}

func (m *MemoryStorage) Append(name string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(name, value, OpAppend)
}

func (m *MemoryStorage) write(name string, value []byte, op StorageOp) variable {
	v := m.vars[name]
	if op == OpAppend {
		v.value = append(slices.Clip(v.value), value...)
	} else {
		v.value = slices.Clone(value)
	}
	v.version++
	m.vars[name] = v
	return v
}

// Names returns the stored variable names in order.
func (m *MemoryStorage) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.vars))
}

// Exec runs cmd. A read of a missing variable is not an error; the
// response reports it instead. A write responds with the value it left.
func (m *MemoryStorage) Exec(cmd StorageCmd) (StorageResp, error) {
	switch {
	case cmd.ReadVar != nil:
		m.mu.RLock()
		defer m.mu.RUnlock()

		v, ok := m.vars[cmd.ReadVar.Name]
		if !ok {
			return StorageResp{Missing: true}, nil
		}
		return StorageResp{Version: v.version, Value: slices.Clone(v.value)}, nil
	case cmd.WriteVar != nil:
		w := cmd.WriteVar
		if w.Op != OpSet && w.Op != OpAppend {
			return StorageResp{}, fmt.Errorf("unknown storage op %q", w.Op)
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if w.WhenVersionIs != nil {
			if current := m.vars[w.Name].version; current != *w.WhenVersionIs {
				slog.Debug("conditional write rejected", "name", w.Name, "version", current, "want", *w.WhenVersionIs)
				return StorageResp{Version: current}, fmt.Errorf("%w: %s is at %d, not %d", ErrVersionMismatch, w.Name, current, *w.WhenVersionIs)
			}
		}
		v := m.write(w.Name, w.Value, w.Op)
		return StorageResp{Version: v.version, Value: slices.Clone(v.value)}, nil
	default:
		return StorageResp{}, errors.New("empty storage command")
	}
}
