package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector serializes []float64 to a binary string (8 bytes per float, little-endian).
func EncodeVector(v []float64) string {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return string(buf)
}

// DecodeVector deserializes a binary string back to []float64.
// A string whose length is not a multiple of 8 yields nil.
func DecodeVector(s string) []float64 {
	if len(s) == 0 || len(s)%8 != 0 {
		return nil
	}
	v := make([]float64, len(s)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64([]byte(s[i*8 : i*8+8])))
	}
	return v
}
