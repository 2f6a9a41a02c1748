package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", "console")
	require.NoError(t, err)
	l.Debug("hello", "key", "value")

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Info("ignored", "k", 1)
		l.Error("ignored", "error", assert.AnError)
	})
	assert.NoError(t, l.Sync())
}
