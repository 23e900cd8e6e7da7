package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{-1, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, a, Norm(a), Norm(a)), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, b, Norm(a), Norm(b)), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, c, Norm(a), Norm(c)), 1e-9)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	zero := []float32{0, 0}
	a := []float32{1, 0}
	assert.Equal(t, 0.0, CosineSimilarity(zero, a, Norm(zero), Norm(a)))
}

func TestNormalizeSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeSimilarity(1), 1e-9)
	assert.InDelta(t, 0.5, NormalizeSimilarity(0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeSimilarity(-1), 1e-9)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.True(t, IsZero(zero))
}
