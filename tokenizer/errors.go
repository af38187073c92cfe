package tokenizer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTokenID = errors.New("invalid token id")
	ErrNoEOS          = errors.New("vocabulary has no end-of-sequence token")
)

// InvalidTokenIDError reports an id outside [0, Size).
type InvalidTokenIDError struct {
	ID   int32
	Size int
}

func (e *InvalidTokenIDError) Error() string {
	return fmt.Sprintf("invalid token id %d (vocabulary size %d)", e.ID, e.Size)
}

func (e *InvalidTokenIDError) Is(target error) bool {
	return target == ErrInvalidTokenID
}

// NoTokenError is returned when some input byte cannot be covered by any
// vocabulary token.
type NoTokenError struct {
	Offset int
	Byte   byte
}

func (e *NoTokenError) Error() string {
	return fmt.Sprintf("no token covers byte %#02x at offset %d", e.Byte, e.Offset)
}
