package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptRequiresInitialize(t *testing.T) {
	v := New()
	_, ok := v.Encrypt("pin")
	assert.False(t, ok)
	_, ok = v.Decrypt("AAAA")
	assert.False(t, ok)
	assert.ErrorIs(t, v.Initialize(""), ErrEmptySecret)
}

func TestRoundTripUsesFreshNonce(t *testing.T) {
	v := New()
	require.NoError(t, v.Initialize("correct horse"))

	for _, plain := range []string{"", "1234", "ключ with unicode", string(make([]byte, 4096))} {
		a, ok := v.Encrypt(plain)
		require.True(t, ok)
		b, ok := v.Encrypt(plain)
		require.True(t, ok)
		assert.NotEqual(t, a, b, "two encryptions must differ")

		got, ok := v.Decrypt(a)
		require.True(t, ok)
		assert.Equal(t, plain, got)
	}
}

func TestDecryptGarbage(t *testing.T) {
	v := New()
	require.NoError(t, v.Initialize("secret"))

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	for _, blob := range []string{"", "%%%not base64%%%", short} {
		_, ok := v.Decrypt(blob)
		assert.False(t, ok, blob)
	}

	blob, ok := v.Encrypt("payload")
	require.True(t, ok)
	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[len(raw)-1] ^= 0xFF
	_, ok = v.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.False(t, ok, "tampered ciphertext must fail authentication")
}

func TestWrongSecretCannotDecrypt(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize("one"))
	b := New()
	require.NoError(t, b.Initialize("two"))

	blob, ok := a.Encrypt("hello")
	require.True(t, ok)
	_, ok = b.Decrypt(blob)
	assert.False(t, ok)

	same := New()
	require.NoError(t, same.Initialize("one"))
	got, ok := same.Decrypt(blob)
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestLockDropsKey(t *testing.T) {
	v := New()
	require.NoError(t, v.Initialize("secret"))
	blob, ok := v.Encrypt("x")
	require.True(t, ok)

	v.Lock()
	assert.False(t, v.Initialized())
	_, ok = v.Decrypt(blob)
	assert.False(t, ok)
}
