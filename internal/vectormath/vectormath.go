package vectormath

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// ErrDimensionMismatch indicates two vectors of different lengths were
// combined. It signals a corpus/model contract violation upstream and is
// never silently absorbed.
var ErrDimensionMismatch = goerr.New("vector dimension mismatch")

// normFloor guards Normalize against division by zero on an all-zero vector.
const normFloor = 1e-12

// Dot computes the dot product of two vectors. For unit-normalized inputs
// this is their cosine similarity.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "dot product",
			goerr.V("len_a", len(a)), goerr.V("len_b", len(b)))
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Norm computes the Euclidean norm of a vector
func Norm(a []float64) float64 {
	var sum float64
	for _, v := range a {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of a. An all-zero input comes back
// as a zero vector rather than an error; such a vector matches nothing.
func Normalize(a []float64) []float64 {
	n := Norm(a)
	if n < normFloor {
		n = normFloor
	}

	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = v / n
	}
	return out
}
