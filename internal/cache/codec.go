package cache

import (
	"encoding/binary"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// encodeVectors encodes equal-length vectors into a BLOB of little-endian
// IEEE 754 float64 values. The per-vector dimension is returned so the
// blob can be split again on decode.
func encodeVectors(vectors [][]float64) ([]byte, int, error) {
	if len(vectors) == 0 {
		return nil, 0, nil
	}

	dim := len(vectors[0])
	b := make([]byte, 0, len(vectors)*dim*8)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, 0, goerr.Wrap(ErrCacheCorrupt, "ragged vector set",
				goerr.V("index", i), goerr.V("dim", dim), goerr.V("got", len(vec)))
		}
		for _, v := range vec {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
		}
	}
	return b, dim, nil
}

// decodeVectors decodes a BLOB produced by encodeVectors
func decodeVectors(b []byte, dim int) ([][]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if dim <= 0 {
		return nil, goerr.Wrap(ErrCacheCorrupt, "non-positive vector dimension", goerr.V("dim", dim))
	}

	stride := dim * 8
	if len(b)%stride != 0 {
		return nil, goerr.Wrap(ErrCacheCorrupt, "invalid vector blob length",
			goerr.V("len", len(b)), goerr.V("stride", stride))
	}

	n := len(b) / stride
	vectors := make([][]float64, n)
	for i := 0; i < n; i++ {
		vec := make([]float64, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint64(b[i*stride+j*8:])
			vec[j] = math.Float64frombits(bits)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
