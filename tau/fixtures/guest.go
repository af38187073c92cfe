//go:build wasip1

// Command guest is a wasm controller used to exercise the satellite. It
// picks the lowest allowed token at every step until the constraint
// forces the end of the sequence.
package main

import (
	"fmt"
	"unsafe"

	"github.com/fxamacker/cbor/v2"
)

//go:wasmimport aici constraint_new
func constraintNew(namePtr unsafe.Pointer, nameSize uint32, specPtr unsafe.Pointer, specSize uint32, errPtr unsafe.Pointer, errSize uint32, errWrittenPtr unsafe.Pointer, idPtr unsafe.Pointer) uint32

//go:wasmimport aici step
func step(id uint64, resultPtr unsafe.Pointer, resultSize uint32, resultWrittenPtr unsafe.Pointer, errPtr unsafe.Pointer, errSize uint32, errWrittenPtr unsafe.Pointer) uint32

//go:wasmimport aici commit
func commit(id uint64, token uint32, errPtr unsafe.Pointer, errSize uint32, errWrittenPtr unsafe.Pointer) uint32

//go:wasmimport aici detokenize
func detokenize(tokensPtr unsafe.Pointer, tokensSize uint32, textPtr unsafe.Pointer, textSize uint32, textWrittenPtr unsafe.Pointer, errPtr unsafe.Pointer, errSize uint32, errWrittenPtr unsafe.Pointer) uint32

//go:wasmimport aici drop
func drop(id uint64) uint32

type stepResult struct {
	Allowed   []int32 `cbor:"allowed"`
	EOSForced bool    `cbor:"eos_forced"`
}

var errBuf = make([]byte, 512)

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func check(code uint32, written uint32) {
	if code != 0 {
		panic(fmt.Sprintf("error %d: %s", code, errBuf[:written]))
	}
}

func main() {
	spec, err := cbor.Marshal(map[string]any{"kind": "regex", "pattern": "(true|false)"})
	if err != nil {
		panic(err)
	}

	var id uint64
	var errW uint32
	check(constraintNew(nil, 0, ptr(spec), uint32(len(spec)), ptr(errBuf), uint32(len(errBuf)), unsafe.Pointer(&errW), unsafe.Pointer(&id)), errW)
	defer drop(id)

	var tokens []int32
	buf := make([]byte, 1<<20)
	for {
		var n uint32
		check(step(id, ptr(buf), uint32(len(buf)), unsafe.Pointer(&n), ptr(errBuf), uint32(len(errBuf)), unsafe.Pointer(&errW)), errW)

		var result stepResult
		if err := cbor.Unmarshal(buf[:n], &result); err != nil {
			panic(err)
		}

		if result.EOSForced || len(result.Allowed) == 0 {
			break
		}

		token := result.Allowed[0]
		check(commit(id, uint32(token), ptr(errBuf), uint32(len(errBuf)), unsafe.Pointer(&errW)), errW)
		tokens = append(tokens, token)
	}

	payload, err := cbor.Marshal(tokens)
	if err != nil {
		panic(err)
	}

	var n uint32
	check(detokenize(ptr(payload), uint32(len(payload)), ptr(buf), uint32(len(buf)), unsafe.Pointer(&n), ptr(errBuf), uint32(len(errBuf)), unsafe.Pointer(&errW)), errW)
	fmt.Println(string(buf[:n]))
}
