package host

import (
	"context"
	"errors"
	"fmt"
)

type seqIDKey struct{}

// WithSeqID returns a copy of ctx identifying the calling sequence.
func WithSeqID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, seqIDKey{}, id)
}

// SelfSeqID returns the sequence ctx was created for.
func SelfSeqID(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(seqIDKey{}).(uint64)
	return id, ok
}

var ErrFatal = errors.New("controller panicked")

// FatalError carries the message a controller aborted with.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v: %s", ErrFatal, e.Msg)
}

func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// Fatal aborts the current controller call. It does not return.
type Fatal func(msg string)

// Panic is the default Fatal. Recover turns it back into an error at the
// boundary of the call.
func Panic(msg string) {
	panic(&FatalError{Msg: msg})
}

// Recover stores a Panic raised during the surrounding call in err. Any
// other panic is re-raised. Use it deferred:
//
//	defer host.Recover(&err)
func Recover(err *error) {
	switch r := recover().(type) {
	case nil:
	case *FatalError:
		*err = r
	default:
		panic(r)
	}
}
