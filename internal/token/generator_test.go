package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenID(t *testing.T) {
	id1, err := generateTokenID()
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.Len(t, id1, 64) // 32 bytes = 64 hex chars

	id2, err := generateTokenID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestGenerateTokenID_NoRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := generateTokenID()
		require.NoError(t, err)
		assert.False(t, seen[id], "generated id repeated")
		seen[id] = true
	}
}
