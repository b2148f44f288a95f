package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceIsDeterministicForSeed(t *testing.T) {
	a, err := NewSource(42)
	require.NoError(t, err)
	b, err := NewSource(42)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}

func TestNewSourceWithZeroSeed(t *testing.T) {
	r, err := NewSource(0)
	require.NoError(t, err)
	n := r.IntN(5)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, 5)
}
