package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKeyAndVerify(t *testing.T) {
	hash, err := HashKey("super-secret-operator-key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyKey("super-secret-operator-key", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyKey("wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashKey_UniqueSalt(t *testing.T) {
	a, err := HashKey("same-key")
	require.NoError(t, err)
	b, err := HashKey("same-key")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyKey_MalformedHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"空字符串", ""},
		{"错误算法", "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"字段缺失", "$argon2id$v=19$m=65536"},
		{"盐非法", "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyKey("key", tt.encoded)
			assert.ErrorIs(t, err, ErrInvalidKeyHash)
		})
	}
}
