package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Valid 32-byte key in hex (64 chars)
const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

const testPrivKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestAESEncryptionService_NewInvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("shortkey")
	assert.Error(t, err)

	_, err = NewAESEncryptionService(strings.Repeat("ab", 16))
	assert.ErrorContains(t, err, "32 bytes")
}

func TestAESEncryptionService_SealsSigningKey(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	sealed, err := svc.Encrypt(testPrivKey)
	require.NoError(t, err)
	assert.NotContains(t, sealed, testPrivKey)

	opened, err := svc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, testPrivKey, opened)
}

func TestAESEncryptionService_DifferentNonces(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	c1, err := svc.Encrypt(testPrivKey)
	require.NoError(t, err)
	c2, err := svc.Encrypt(testPrivKey)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "same plaintext should produce different ciphertext due to random nonce")
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	last := ciphertext[len(ciphertext)-1]
	flip := byte('0')
	if last == '0' {
		flip = '1'
	}
	tampered := ciphertext[:len(ciphertext)-1] + string(flip)

	_, err = svc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestAESEncryptionService_WrongKey(t *testing.T) {
	svc1, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	otherKey, err := GenerateAESKey()
	require.NoError(t, err)
	svc2, err := NewAESEncryptionService(otherKey)
	require.NoError(t, err)

	ciphertext, err := svc1.Encrypt(testPrivKey)
	require.NoError(t, err)

	_, err = svc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptionService_InvalidCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex-at-all!!!")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcdef")
	assert.ErrorContains(t, err, "too short")
}

func TestGenerateAESKey(t *testing.T) {
	k1, err := GenerateAESKey()
	require.NoError(t, err)
	k2, err := GenerateAESKey()
	require.NoError(t, err)

	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
}
