package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(1), Clamp[uint32](0, 1, 4096))
	assert.Equal(t, uint32(4096), Clamp[uint32](9000, 1, 4096))
	assert.Equal(t, uint32(800), Clamp[uint32](800, 1, 4096))
	assert.Equal(t, -1.0, Clamp(-3.5, -1.0, 1.0))
}

func TestClampInvertedRange(t *testing.T) {
	assert.Equal(t, 5, Clamp(3, 5, 1))
}
