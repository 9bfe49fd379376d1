package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(0, 10))
	assert.Equal(t, 0, Offset(1, 10))
	assert.Equal(t, 20, Offset(3, 10))
	assert.Equal(t, (MaxPage-1)*50, Offset(math.MaxInt, 50))
	assert.GreaterOrEqual(t, Offset(math.MaxInt, math.MaxInt32), 0)
}
