package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("process-secret")
	env, err := Seal(key, []byte("hunter2"))
	require.NoError(t, err)
	assert.Len(t, env.IV, IVSize)
	assert.Len(t, env.Tag, TagSize)

	plain, err := Open(key, env)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plain))
}

func TestSealUsesFreshIV(t *testing.T) {
	key := DeriveKey("k")
	a, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a.IV, b.IV))
}

func TestOpenRejectsWrongKey(t *testing.T) {
	env, err := Seal(DeriveKey("right"), []byte("secret"))
	require.NoError(t, err)
	plain, err := Open(DeriveKey("wrong"), env)
	assert.Error(t, err)
	assert.Nil(t, plain)
}

func TestSealRejectsShortKey(t *testing.T) {
	_, err := Seal(make([]byte, 16), []byte("x"))
	assert.ErrorIs(t, err, ErrKeySize)
	_, err = Open(make([]byte, 31), Envelope{})
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestEnvelopeStringParse(t *testing.T) {
	key := DeriveKey("k")
	env, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	encoded := env.String()
	assert.True(t, IsEnvelope(encoded))

	parsed, err := ParseEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, env, parsed)

	_, err = ParseEnvelope("enc:v1:only-two:parts")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
	_, err = ParseEnvelope("plaintext")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.ErrorIs(t, ComparePassword(hash, "battery staple"), ErrPasswordMismatch)
}
