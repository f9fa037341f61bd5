package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 8*time.Hour, "fiat-token-bridge")

	tokenStr, expiresAt, err := svc.Generate("ops")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")
	tokenStr, _, err := svc.Generate("ops")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_Rejections(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")

	otherSecret, _, err := NewJWTTokenService("secret-2", time.Hour, "issuer").Generate("ops")
	require.NoError(t, err)
	otherIssuer, _, err := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else").Generate("ops")
	require.NoError(t, err)
	noSubject, _, err := svc.Generate("")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ops", Issuer: "issuer"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"different secret": otherSecret,
		"different issuer": otherIssuer,
		"no subject":       noSubject,
		"alg none":         none,
		"garbage":          "not.a.valid.jwt",
		"empty":            "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.Error(t, err)
		})
	}
}
