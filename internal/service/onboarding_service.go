package service

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"

	"github.com/rs/zerolog"
)

// OnboardingConfig holds the public URLs handed to the payment provider.
type OnboardingConfig struct {
	PublicBaseURL string
	Currency      string
	TokenSymbol   string
}

type onboardingService struct {
	payments ports.PaymentClient
	pool     *WalletPool
	bindings *BindingRegistry
	alerts   ports.AlertService
	cfg      OnboardingConfig
	log      zerolog.Logger
}

// NewOnboardingService creates the connected-account onboarding service.
func NewOnboardingService(
	payments ports.PaymentClient,
	pool *WalletPool,
	bindings *BindingRegistry,
	alerts ports.AlertService,
	cfg OnboardingConfig,
	log zerolog.Logger,
) ports.OnboardingService {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &onboardingService{
		payments: payments,
		pool:     pool,
		bindings: bindings,
		alerts:   alerts,
		cfg:      cfg,
		log:      log,
	}
}

func (s *onboardingService) Start(ctx context.Context, email string) (*ports.OnboardingStart, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email address")
	}

	accountID, err := s.payments.CreateConnectedAccount(ctx, email)
	if err != nil {
		return nil, apperror.ErrPaymentProvider(err)
	}
	link, err := s.onboardingLink(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account", accountID).Msg("connected account created")
	return &ports.OnboardingStart{ConnectedAccountID: accountID, OnboardingURL: link}, nil
}

// Complete binds a pool wallet to the account. Calling it again returns the
// existing binding. A wallet allocated for a losing bind is released.
func (s *onboardingService) Complete(ctx context.Context, accountID string) (*domain.Binding, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apperror.Validation("account id is required")
	}

	existing, err := s.bindings.ByAccount(ctx, accountID)
	if err == nil {
		return existing, nil
	}
	if !apperror.HasCode(err, "BIND_002") {
		return nil, err
	}

	wallet, err := s.pool.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	email, err := s.payments.RetrieveAccountEmail(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Str("account", accountID).Msg("could not fetch account email")
		email = ""
	}

	binding, err := s.bindings.Bind(ctx, accountID, wallet.Address, email)
	if err != nil {
		s.release(ctx, wallet.Address)
		if apperror.HasCode(err, "BIND_001") {
			// A concurrent completion for the same account won the race.
			if winner, lerr := s.bindings.ByAccount(ctx, accountID); lerr == nil {
				return winner, nil
			}
		}
		return nil, err
	}

	s.log.Info().Str("account", accountID).Str("wallet", binding.WalletAddress).Msg("wallet bound")
	return binding, nil
}

func (s *onboardingService) RefreshLink(ctx context.Context, accountID string) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", apperror.Validation("account id is required")
	}
	return s.onboardingLink(ctx, accountID)
}

func (s *onboardingService) CreateCheckout(ctx context.Context, accountID string, amountMinor int64) (*ports.CheckoutSession, error) {
	if amountMinor <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if _, err := s.bindings.ByAccount(ctx, accountID); err != nil {
		return nil, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, ports.CheckoutSessionRequest{
		ConnectedAccountID: accountID,
		AmountMinor:        amountMinor,
		Currency:           s.cfg.Currency,
		ProductName:        fmt.Sprintf("Deposit %s for %s", strings.ToUpper(s.cfg.Currency), s.cfg.TokenSymbol),
		SuccessURL:         s.cfg.PublicBaseURL + "/success",
		CancelURL:          s.cfg.PublicBaseURL + "/cancel",
	})
	if err != nil {
		return nil, apperror.ErrPaymentProvider(err)
	}
	return session, nil
}

func (s *onboardingService) CheckoutSession(ctx context.Context, sessionID string) (*ports.CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperror.Validation("session id is required")
	}
	session, err := s.payments.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, apperror.ErrPaymentProvider(err)
	}
	return session, nil
}

// AccountBalance reports the provider balance of a bound account only.
func (s *onboardingService) AccountBalance(ctx context.Context, accountID string) (*ports.AccountBalance, error) {
	if _, err := s.bindings.ByAccount(ctx, accountID); err != nil {
		return nil, err
	}
	bal, err := s.payments.RetrieveAccountBalance(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrPaymentProvider(err)
	}
	return bal, nil
}

func (s *onboardingService) onboardingLink(ctx context.Context, accountID string) (string, error) {
	q := url.Values{"accountId": {accountID}}.Encode()
	link, err := s.payments.CreateOnboardingLink(ctx, accountID,
		s.cfg.PublicBaseURL+"/onboarding/refresh?"+q,
		s.cfg.PublicBaseURL+"/onboarding/complete?"+q,
	)
	if err != nil {
		return "", apperror.ErrPaymentProvider(err)
	}
	return link, nil
}

// release undoes an allocation. A wallet that cannot be returned is stranded
// and needs an operator.
func (s *onboardingService) release(ctx context.Context, address string) {
	if err := s.pool.Release(context.WithoutCancel(ctx), address); err != nil {
		s.log.Error().Err(err).Str("wallet", address).Msg("failed to release wallet after bind failure")
		if s.alerts != nil {
			s.alerts.Notify(ctx, ports.Alert{
				Kind:   "WALLET_STRANDED",
				Reason: "allocated wallet could not be returned to the pool",
				Detail: fmt.Sprintf("%s: %v", address, err),
			})
		}
	}
}
