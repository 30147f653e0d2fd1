package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassphrase(t *testing.T) {
	hash, err := HashPassphrase("popcorn")
	require.NoError(t, err)
	assert.True(t, IsBcryptHash(hash))
	assert.True(t, CheckPassphrase("popcorn", hash))
	assert.False(t, CheckPassphrase("Popcorn", hash))
}

func TestIsBcryptHash(t *testing.T) {
	assert.False(t, IsBcryptHash("popcorn"))
	assert.False(t, IsBcryptHash("$2a$10$short"))
}
