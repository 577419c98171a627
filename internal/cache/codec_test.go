package cache

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestVectorCodec(t *testing.T) {
	t.Run("round-trips vectors", func(t *testing.T) {
		in := [][]float64{
			{0.1, -0.2, 0.3},
			{1, 0, -1},
		}
		blob, dim, err := encodeVectors(in)
		gt.NoError(t, err).Required()
		gt.Value(t, dim).Equal(3)

		out, err := decodeVectors(blob, dim)
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal(in)
	})

	t.Run("encodes the empty set", func(t *testing.T) {
		blob, dim, err := encodeVectors(nil)
		gt.NoError(t, err).Required()
		gt.Value(t, dim).Equal(0)
		gt.Array(t, blob).Length(0)
	})

	t.Run("rejects ragged vectors", func(t *testing.T) {
		_, _, err := encodeVectors([][]float64{{1, 2}, {1}})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, ErrCacheCorrupt)).True()
	})

	t.Run("rejects a truncated blob", func(t *testing.T) {
		blob, dim, err := encodeVectors([][]float64{{1, 2, 3}})
		gt.NoError(t, err).Required()

		_, err = decodeVectors(blob[:len(blob)-1], dim)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, ErrCacheCorrupt)).True()
	})
}
