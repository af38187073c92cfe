package main

import (
	"errors"
	"log/slog"

	"github.com/taubyte/vm-orbit/satellite"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/host"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/runner"
	"github.com/DataSpeaksTech/aici/tokenizer"
)

// Error is the status every export returns to the guest.
type Error uint32

const (
	ErrorNone Error = iota
	ErrorReadMemory
	ErrorWriteMemory
	ErrorBufferTooSmall
	ErrorDecode
	ErrorSequenceNotFound
	ErrorConstraintNotFound
	ErrorConstruction
	ErrorNotAllowed
	ErrorInvalidToken
	ErrorUnsatisfiable
	ErrorVariableMissing
	ErrorVersionMismatch
	ErrorFatal
	ErrorFailed
)

var errDecode = errors.New("decode failed")

func errorCode(err error) Error {
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, errDecode):
		return ErrorDecode
	case errors.Is(err, runner.ErrSequenceNotFound):
		return ErrorSequenceNotFound
	case errors.Is(err, library.ErrNotFound):
		return ErrorConstraintNotFound
	case errors.Is(err, constraint.ErrConstruction):
		return ErrorConstruction
	case errors.Is(err, constraint.ErrState):
		return ErrorNotAllowed
	case errors.Is(err, tokenizer.ErrInvalidTokenID):
		return ErrorInvalidToken
	case errors.Is(err, constraint.ErrUnsatisfiable):
		return ErrorUnsatisfiable
	case errors.Is(err, host.ErrVariableMissing):
		return ErrorVariableMissing
	case errors.Is(err, host.ErrVersionMismatch):
		return ErrorVersionMismatch
	case errors.Is(err, host.ErrFatal):
		return ErrorFatal
	default:
		return ErrorFailed
	}
}

// returnError writes as much of err's message as fits into the guest's
// error buffer and returns its status.
func returnError(module satellite.Module, errBufferPtr, errBufferSize, errBufferWrittenPtr uint32, err error) Error {
	code := errorCode(err)
	if code == ErrorFatal {
		slog.Error("guest call aborted", "error", err)
	}

	msg := []byte(err.Error())
	if uint32(len(msg)) > errBufferSize {
		msg = msg[:errBufferSize]
	}

	n, werr := module.MemoryWrite(errBufferPtr, msg)
	if werr != nil {
		return ErrorWriteMemory
	}
	module.WriteUint32(errBufferWrittenPtr, n)

	return code
}

func returnMemoryRead(module satellite.Module, errBufferPtr, errBufferSize, errBufferWrittenPtr uint32, what string) Error {
	returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, errors.New("reading "+what+" failed"))
	return ErrorReadMemory
}

// writeBuffer copies data into a guest buffer of size bytes.
func writeBuffer(module satellite.Module, ptr, size, writtenPtr uint32, data []byte) Error {
	if uint32(len(data)) > size {
		module.WriteUint32(writtenPtr, uint32(len(data)))
		return ErrorBufferTooSmall
	}

	n, err := module.MemoryWrite(ptr, data)
	if err != nil {
		return ErrorWriteMemory
	}
	module.WriteUint32(writtenPtr, n)

	return ErrorNone
}

// guard runs fn, turning a fatal abort into an error.
func guard(fn func() error) (err error) {
	defer host.Recover(&err)
	return fn()
}
