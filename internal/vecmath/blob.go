package vecmath

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	blobHeaderSize = 4
	blobValueSize  = 4
)

// ErrEmptyVector is returned when encoding a vector with no components.
var ErrEmptyVector = errors.New("vecmath: empty vector")

// EncodeVector encodes v as [uint32 dim][dim x float32], little-endian.
func EncodeVector(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	if len(v) > (math.MaxInt32-blobHeaderSize)/blobValueSize {
		return nil, fmt.Errorf("vecmath: dimension too large: %d", len(v))
	}

	blob := make([]byte, blobHeaderSize+len(v)*blobValueSize)
	binary.LittleEndian.PutUint32(blob, uint32(len(v)))

	off := blobHeaderSize
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("vecmath: non-finite value at index %d", i)
		}
		binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(x))
		off += blobValueSize
	}
	return blob, nil
}

// DecodeVector decodes a blob produced by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob) < blobHeaderSize {
		return nil, fmt.Errorf("vecmath: blob too short: %d bytes", len(blob))
	}

	dim := int(binary.LittleEndian.Uint32(blob))
	if dim <= 0 {
		return nil, fmt.Errorf("vecmath: invalid dimension %d", dim)
	}
	if want := blobHeaderSize + dim*blobValueSize; len(blob) != want {
		return nil, fmt.Errorf("vecmath: blob length %d does not match dimension %d", len(blob), dim)
	}

	v := make([]float32, dim)
	off := blobHeaderSize
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
		off += blobValueSize
	}
	return v, nil
}
