package constraint

import (
	"errors"
	"fmt"
)

var (
	ErrConstruction = errors.New("constraint construction failed")
	ErrState        = errors.New("token not allowed")

	// ErrUnsatisfiable is returned by AllowTokens when no token may follow
	// and the sequence may not end either.
	ErrUnsatisfiable = errors.New("no token or end of sequence allowed")

	ErrTokenSetSize = errors.New("token set does not match vocabulary size")
)

// ConstructionError reports a malformed pattern, grammar or schema.
type ConstructionError struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s constraint: %v", e.Kind, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// StateError reports that a token was appended while not allowed. The
// constraint that returned it is dead.
type StateError struct {
	Kind  Kind
	Token int32
	Bytes []byte
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s constraint: token %d %q not allowed", e.Kind, e.Token, e.Bytes)
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}
