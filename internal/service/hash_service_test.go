package service

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("SecureP@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	match, err := svc.Verify("SecureP@ssw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashService()

	hash1, err := svc.Hash("same-password")
	require.NoError(t, err)
	hash2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "same password should produce different hashes (different salts)")
}

func TestArgon2HashService_VerifiesForeignParams(t *testing.T) {
	svc := NewArgon2HashService()
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("ops-password"), salt, 2, 8*1024, 1, 16)
	b64 := base64.RawStdEncoding
	encoded := fmt.Sprintf("$argon2id$v=19$m=8192,t=2,p=1$%s$%s", b64.EncodeToString(salt), b64.EncodeToString(key))

	match, err := svc.Verify("ops-password", encoded)
	require.NoError(t, err)
	assert.True(t, match, "parameters come from the encoded hash")
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2HashService()

	for _, encoded := range []string{
		"not-a-valid-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdA$",
	} {
		_, err := svc.Verify("password", encoded)
		assert.Error(t, err, encoded)
	}
}
