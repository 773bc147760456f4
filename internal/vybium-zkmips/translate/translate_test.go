package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("tape exhausted", From("tape exhausted"))
	assert.Equal("cycle 12 at pc 3", From("cycle %d at pc %d", 12, 3))
}
