package dfa

import "github.com/DataSpeaksTech/aici/internal/utf8seq"

// ByteClasses partitions the 256 byte values into classes that no state
// of a DFA tells apart, so transition rows need one entry per class
// rather than per byte.
type ByteClasses struct {
	classes [256]byte
	n       int
}

// newByteClasses builds the coarsest partition in which every range
// covers whole classes.
func newByteClasses(ranges []utf8seq.Range) ByteClasses {
	var boundary [257]bool
	for _, r := range ranges {
		boundary[r.Lo] = true
		boundary[int(r.Hi)+1] = true
	}

	var bc ByteClasses
	class := 0
	for b := range 256 {
		if b > 0 && boundary[b] {
			class++
		}
		bc.classes[b] = byte(class)
	}
	bc.n = class + 1
	return bc
}

// Get returns the class of b.
func (bc *ByteClasses) Get(b byte) byte {
	return bc.classes[b]
}

// Len returns the number of classes.
func (bc *ByteClasses) Len() int {
	return bc.n
}

// Range returns the bytes of class c. Classes are contiguous.
func (bc *ByteClasses) Range(c byte) (lo, hi byte) {
	first := true
	for b := range 256 {
		if bc.classes[b] != c {
			continue
		}
		if first {
			lo, first = byte(b), false
		}
		hi = byte(b)
	}
	return lo, hi
}

// Representatives returns the smallest byte of every class in class order.
func (bc *ByteClasses) Representatives() []byte {
	reps := make([]byte, 0, bc.n)
	for b := range 256 {
		if b == 0 || bc.classes[b] != bc.classes[b-1] {
			reps = append(reps, byte(b))
		}
	}
	return reps
}
