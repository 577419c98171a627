package vectormath_test

import (
	"errors"
	"math"
	"testing"

	"github.com/m-mizutani/gt"

	"resume-rag/internal/vectormath"
)

func TestDot(t *testing.T) {
	t.Run("computes the inner product", func(t *testing.T) {
		got, err := vectormath.Dot([]float64{1, 2, 3}, []float64{4, 5, 6})
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal(32.0)
	})

	t.Run("rejects mismatched dimensions", func(t *testing.T) {
		_, err := vectormath.Dot([]float64{1, 2}, []float64{1, 2, 3})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, vectormath.ErrDimensionMismatch)).True()
	})

	t.Run("unit vectors stay within cosine bounds", func(t *testing.T) {
		a := vectormath.Normalize([]float64{0.3, -0.7, 0.2})
		b := vectormath.Normalize([]float64{-0.1, 0.9, 0.4})
		got, err := vectormath.Dot(a, b)
		gt.NoError(t, err).Required()
		gt.Bool(t, got >= -1.0000001 && got <= 1.0000001).True()
	})
}

func TestNormalize(t *testing.T) {
	t.Run("produces a unit vector", func(t *testing.T) {
		v := vectormath.Normalize([]float64{3, 4})
		gt.Bool(t, math.Abs(vectormath.Norm(v)-1.0) < 1e-9).True()
		gt.Bool(t, math.Abs(v[0]-0.6) < 1e-9).True()
		gt.Bool(t, math.Abs(v[1]-0.8) < 1e-9).True()
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := vectormath.Normalize([]float64{1, 2, 3, 4})
		twice := vectormath.Normalize(once)
		for i := range once {
			gt.Bool(t, math.Abs(once[i]-twice[i]) < 1e-12).True()
		}
	})

	t.Run("passes the zero vector through", func(t *testing.T) {
		v := vectormath.Normalize([]float64{0, 0, 0})
		gt.Value(t, v).Equal([]float64{0, 0, 0})
	})
}

func TestNorm(t *testing.T) {
	gt.Value(t, vectormath.Norm([]float64{3, 4})).Equal(5.0)
	gt.Value(t, vectormath.Norm(nil)).Equal(0.0)
}
