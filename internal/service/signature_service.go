package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSignatureService implements ports.SignatureService with HMAC-SHA256.
// It signs outbound operator alerts and the fake provider's webhooks.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return hex.EncodeToString(s.mac(secretKey, payload))
}

// Verify compares in constant time. Malformed hex never verifies.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(s.mac(secretKey, payload), got)
}

func (s *HMACSignatureService) mac(secretKey, payload string) []byte {
	m := hmac.New(sha256.New, []byte(secretKey))
	m.Write([]byte(payload))
	return m.Sum(nil)
}
