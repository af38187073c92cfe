package main

import (
	"context"

	"github.com/taubyte/vm-orbit/satellite"

	"github.com/DataSpeaksTech/aici/host"
)

func (s *aici) W_tokenize(
	ctx context.Context,
	module satellite.Module,

	textPtr uint32,
	textSize uint32,

	tokensBufferPtr uint32, // cbor []int32
	tokensBufferSize uint32,
	tokensBufferWrittenPtr uint32,

	errBufferPtr uint32,
	errBufferSize uint32,
	errBufferWrittenPtr uint32,
) Error {
	text, err := module.ReadString(textPtr, textSize)
	if err != nil {
		return returnMemoryRead(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, "text")
	}

	var payload []byte
	if err := guard(func() (err error) {
		payload, err = s.tokenize(text)
		return err
	}); err != nil {
		return returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, err)
	}

	return writeBuffer(module, tokensBufferPtr, tokensBufferSize, tokensBufferWrittenPtr, payload)
}

func (s *aici) W_detokenize(
	ctx context.Context,
	module satellite.Module,

	tokensPtr uint32, // cbor []int32
	tokensSize uint32,

	textBufferPtr uint32,
	textBufferSize uint32,
	textBufferWrittenPtr uint32,

	errBufferPtr uint32,
	errBufferSize uint32,
	errBufferWrittenPtr uint32,
) Error {
	payload, err := module.MemoryRead(tokensPtr, tokensSize)
	if err != nil {
		return returnMemoryRead(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, "tokens")
	}

	text, err := s.detokenize(payload)
	if err != nil {
		return returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, err)
	}

	return writeBuffer(module, textBufferPtr, textBufferSize, textBufferWrittenPtr, text)
}

func (s *aici) W_constraint_new(
	ctx context.Context,
	module satellite.Module,

	namePtr uint32, // library entry, empty for an inline spec
	nameSize uint32,

	specPtr uint32, // cbor map
	specSize uint32,

	errBufferPtr uint32,
	errBufferSize uint32,
	errBufferWrittenPtr uint32,

	idPtr uint32,
) Error {
	name, err := module.ReadString(namePtr, nameSize)
	if err != nil {
		return returnMemoryRead(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, "name")
	}

	spec, err := module.MemoryRead(specPtr, specSize)
	if err != nil {
		return returnMemoryRead(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, "spec")
	}

	id, err := s.newSequence(name, spec)
	if err != nil {
		return returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, err)
	}

	module.WriteUint64(idPtr, id)

	return ErrorNone
}

func (s *aici) W_fork(
	ctx context.Context,
	module satellite.Module,

	id uint64,

	childPtr uint32,
) Error {
	child, err := s.fork(id)
	if err != nil {
		return errorCode(err)
	}

	module.WriteUint64(childPtr, child)

	return ErrorNone
}

func (s *aici) W_step(
	ctx context.Context,
	module satellite.Module,

	id uint64,

	resultBufferPtr uint32, // cbor StepResult
	resultBufferSize uint32,
	resultBufferWrittenPtr uint32,

	errBufferPtr uint32,
	errBufferSize uint32,
	errBufferWrittenPtr uint32,
) Error {
	ctx = host.WithSeqID(ctx, id)

	var payload []byte
	if err := guard(func() (err error) {
		payload, err = s.step(ctx, id)
		return err
	}); err != nil {
		return returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, err)
	}

	return writeBuffer(module, resultBufferPtr, resultBufferSize, resultBufferWrittenPtr, payload)
}

func (s *aici) W_commit(
	ctx context.Context,
	module satellite.Module,

	id uint64,

	token uint32,

	errBufferPtr uint32,
	errBufferSize uint32,
	errBufferWrittenPtr uint32,
) Error {
	if err := s.commit(id, int32(token)); err != nil {
		return returnError(module, errBufferPtr, errBufferSize, errBufferWrittenPtr, err)
	}

	return ErrorNone
}

func (s *aici) W_drop(
	ctx context.Context,
	module satellite.Module,

	id uint64,
) Error {
	return errorCode(s.drop(id))
}

func (s *aici) W_var_get(
	ctx context.Context,
	module satellite.Module,

	namePtr uint32,
	nameSize uint32,

	valueBufferPtr uint32,
	valueBufferSize uint32,
	valueBufferWrittenPtr uint32,
) Error {
	name, err := module.ReadString(namePtr, nameSize)
	if err != nil {
		return ErrorReadMemory
	}

	value, err := s.varGet(name)
	if err != nil {
		return errorCode(err)
	}

	return writeBuffer(module, valueBufferPtr, valueBufferSize, valueBufferWrittenPtr, value)
}

func (s *aici) writeVar(ctx context.Context, module satellite.Module, seq uint64, namePtr, nameSize, valuePtr, valueSize, versionPtr uint32, op host.StorageOp) Error {
	name, err := module.ReadString(namePtr, nameSize)
	if err != nil {
		return ErrorReadMemory
	}

	value, err := module.MemoryRead(valuePtr, valueSize)
	if err != nil {
		return ErrorReadMemory
	}

	version, err := s.varWrite(host.WithSeqID(ctx, seq), name, value, op)
	if err != nil {
		return errorCode(err)
	}

	module.WriteUint64(versionPtr, version)

	return ErrorNone
}

func (s *aici) W_var_set(
	ctx context.Context,
	module satellite.Module,

	seq uint64, // writing sequence

	namePtr uint32,
	nameSize uint32,

	valuePtr uint32,
	valueSize uint32,

	versionPtr uint32,
) Error {
	return s.writeVar(ctx, module, seq, namePtr, nameSize, valuePtr, valueSize, versionPtr, host.OpSet)
}

func (s *aici) W_var_append(
	ctx context.Context,
	module satellite.Module,

	seq uint64, // writing sequence

	namePtr uint32,
	nameSize uint32,

	valuePtr uint32,
	valueSize uint32,

	versionPtr uint32,
) Error {
	return s.writeVar(ctx, module, seq, namePtr, nameSize, valuePtr, valueSize, versionPtr, host.OpAppend)
}
