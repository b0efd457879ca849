package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSealer_GenerateNewKey(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)
	assert.NotNil(t, s.identity)
	assert.Contains(t, s.Recipient(), "age1")
}

func TestNewSealer_InvalidKey(t *testing.T) {
	_, err := NewSealer("invalid-key-format")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")
}

func TestSeal_Open(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s.Seal("TR-1234567890")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "TR-1234567890")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "TR-1234567890", opened)
}

func TestSeal_EmptyIsNil(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Nil(t, sealed)

	opened, err := s.Open(nil)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestSeal_DifferentOutputEachTime(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_WrongKey(t *testing.T) {
	s1, err := NewSealer("")
	require.NoError(t, err)
	s2, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s1.Seal("secret")
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.Error(t, err)
}

func TestSealer_KeyReuse(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	s1, err := NewSealer(key)
	require.NoError(t, err)
	s2, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s1.Seal("VAT-998877")
	require.NoError(t, err)

	opened, err := s2.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "VAT-998877", opened)
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}
