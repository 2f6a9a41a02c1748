package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPetname_Shape(t *testing.T) {
	g := NewPetname()
	for i := 0; i < 20; i++ {
		name := g.Generate()
		assert.NotEmpty(t, name)
		assert.Len(t, strings.Split(name, "-"), 3, name)
		assert.LessOrEqual(t, len(name), 255)
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "demo", Fixed("demo").Generate())
}
