package service

import (
	"context"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"

	"github.com/rs/zerolog"
)

// AuthServiceImpl authenticates operators listed in config.
type AuthServiceImpl struct {
	operators map[string]string
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
	log       zerolog.Logger
}

func NewAuthService(
	operators []domain.Operator,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	byName := make(map[string]string, len(operators))
	for _, op := range operators {
		byName[op.Username] = op.PasswordHash
	}
	return &AuthServiceImpl{
		operators: byName,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
		log:       log,
	}
}

// Login validates credentials and returns a JWT.
func (s *AuthServiceImpl) Login(_ context.Context, username, password string) (*ports.LoginResponse, error) {
	hash, ok := s.operators[username]
	if !ok || username == "" {
		s.log.Warn().Str("username", username).Msg("Login for unknown operator")
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, hash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		s.log.Warn().Str("username", username).Msg("Operator login failed")
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return &ports.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}
