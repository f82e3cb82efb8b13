// Package zeroize provides the scoped-release helper used to clear key
// material and cipher state on teardown.
//
// To the extent possible under law, this code is derived from and kept in
// the spirit of the CC0-dedicated gitlab.com/yawning/hs1siv, which zeroes
// sensitive buffers inline on authentication failure.
package zeroize

// Bytes overwrites b in place with zeros. It is safe to call on a nil or
// empty slice.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Uint32s overwrites w in place with zeros.
func Uint32s(w []uint32) {
	for i := range w {
		w[i] = 0
	}
}

// Uint64s overwrites w in place with zeros.
func Uint64s(w []uint64) {
	for i := range w {
		w[i] = 0
	}
}
