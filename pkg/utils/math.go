package utils

import (
	"encoding/binary"
	"math"
)

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}

// MeanVector returns the element-wise mean of the given vectors.
// All vectors must have the same length; returns nil for empty input.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			mean[i] += v
		}
	}
	n := float32(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// EncodeFloat32s encodes a float32 slice as little-endian bytes (4 bytes per value).
func EncodeFloat32s(s []float32) []byte {
	out := make([]byte, len(s)*4)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(v))
	}
	return out
}

// DecodeFloat32s decodes little-endian bytes produced by EncodeFloat32s.
func DecodeFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
