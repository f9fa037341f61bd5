package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const alertPayload = `1708092000.{"kind":"PAYOUT_FAILED","idempotency_key":"r1","reason":"stripe down"}`

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()

	signature := svc.Sign("alert-secret", alertPayload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify("alert-secret", alertPayload, signature))
	assert.True(t, svc.Verify("alert-secret", alertPayload, strings.ToUpper(signature)), "hex case is irrelevant")
}

func TestHMACSignatureService_VerifyFailures(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("alert-secret", alertPayload)

	tests := []struct {
		name, key, payload, sig string
	}{
		{"wrong key", "other", alertPayload, signature},
		{"tampered payload", "alert-secret", alertPayload + " ", signature},
		{"not hex", "alert-secret", alertPayload, "zz"},
		{"truncated", "alert-secret", alertPayload, signature[:32]},
		{"empty", "alert-secret", alertPayload, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.key, tt.payload, tt.sig))
		})
	}
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}
