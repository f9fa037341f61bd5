package main

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/config"
	"fiat-token-bridge/internal/adapter/chain"
	"fiat-token-bridge/internal/adapter/custody"
	"fiat-token-bridge/internal/adapter/payment"
	"fiat-token-bridge/internal/adapter/storage"
	redisStorage "fiat-token-bridge/internal/adapter/storage/redis"
	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/internal/service"
	"fiat-token-bridge/pkg/metrics"

	"github.com/rs/zerolog"
)

var alertRetryIntervals = []time.Duration{10 * time.Second, time.Minute, 5 * time.Minute}

// app holds every long-lived handle. It is built once in main and passed
// down explicitly.
type app struct {
	metrics    *metrics.Recorder
	engine     *service.SettlementEngine
	onboarding ports.OnboardingService
	reconciler *service.Reconciler
	auth       ports.AuthService
	reporting  ports.ReportingService
	tokens     ports.TokenService
	audit      ports.AuditService
	alerts     *service.WebhookAlertService
	rateLimits *redisStorage.RateLimitStore
	endpoints  *chain.EndpointSelector
	health     []ports.HealthChecker
	closers    []func()
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	if st.Health != nil {
		a.health = append(a.health, st.Health)
	}

	var (
		cache ports.OutcomeCache
		lock  ports.SweepLock
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		cache = redisStorage.NewOutcomeCache(rdb)
		lock = redisStorage.NewSweepLock(rdb)
		a.rateLimits = redisStorage.NewRateLimitStore(rdb)
		a.health = append(a.health, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no outcome cache, sweep lock or rate limiting")
	}

	var enc ports.EncryptionService
	if cfg.AES.Key != "" {
		aes, err := service.NewAESEncryptionService(cfg.AES.Key)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
		enc = aes
	}
	sigSvc := service.NewHMACSignatureService()

	keys, err := openKeyStore(cfg.Custody, enc)
	if err != nil {
		return nil, fmt.Errorf("custody: %w", err)
	}

	chainClient, err := a.openChain(cfg.Chain, log)
	if err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}

	var payments ports.PaymentClient
	switch cfg.Payment.Driver {
	case "fake":
		payments = payment.NewFakeClient(sigSvc, cfg.Server.PublicBaseURL)
		log.Warn().Msg("Using in-process payment provider")
	default:
		payments = payment.NewStripeClient(cfg.Payment.APIKey, cfg.Payment.Country, nil, log)
	}

	a.alerts = service.NewAlertService(cfg.Alerts.WebhookURL, cfg.Alerts.Secret, sigSvc, nil,
		alertRetryIntervals, a.metrics, log)
	a.audit = service.NewAuditService(st.Audit, log)

	conv := domain.Conversion{
		FiatDecimals:  cfg.Conversion.FiatDecimals,
		TokenDecimals: cfg.Conversion.TokenDecimals,
		TokenSymbol:   cfg.Conversion.TokenSymbol,
	}
	pool := service.NewWalletPool(st.Pool, a.metrics, log)
	bindings := service.NewBindingRegistry(st.Bindings)

	a.engine = service.NewSettlementEngine(payments, chainClient, keys, bindings, st.Settlements, cache, a.alerts, conv,
		service.SettlementConfig{
			WebhookSecret:       cfg.Payment.WebhookSecret,
			Currency:            cfg.Payment.Currency,
			ConfirmationTimeout: cfg.Chain.ConfirmationTimeout,
			OutcomeCacheTTL:     cfg.Settlement.OutcomeCacheTTL,
			MaxAttempts:         cfg.Settlement.MaxAttempts,
			OperatorAddress:     cfg.Chain.OperatorAddress,
		}, a.metrics, log)

	a.onboarding = service.NewOnboardingService(payments, pool, bindings, a.alerts, service.OnboardingConfig{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Currency:      cfg.Payment.Currency,
		TokenSymbol:   cfg.Conversion.TokenSymbol,
	}, log)

	a.reconciler = service.NewReconciler(st.Settlements, a.engine, lock, service.ReconcilerConfig{
		Interval: cfg.Settlement.ReconcileInterval,
		MinAge:   cfg.Settlement.ReconcileMinAge,
		Batch:    cfg.Settlement.ReconcileBatch,
	}, log)

	operators := make([]domain.Operator, 0, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators = append(operators, domain.Operator{Username: op.Username, PasswordHash: op.PasswordHash})
	}
	a.tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.auth = service.NewAuthService(operators, service.NewArgon2HashService(), a.tokens, log)
	a.reporting = service.NewReportingService(st.Settlements, st.Pool, a.metrics)

	if n, err := pool.Available(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not count the wallet pool")
	} else {
		log.Info().Int64("available", n).Msg("Wallet pool ready")
	}

	ok = true
	return a, nil
}

func (a *app) openChain(cfg config.ChainConfig, log zerolog.Logger) (ports.ChainClient, error) {
	if cfg.Driver == "fake" {
		log.Warn().Msg("Using in-process chain; balances are lost on restart")
		contract := cfg.ContractAddress
		if contract == "" {
			contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
		}
		return chain.NewFakeClient(contract, cfg.ChainID, log)
	}

	sel, err := chain.NewEndpointSelector(cfg.RPCURLs, cfg.MaxFailures, cfg.Cooldown, nil, a.metrics, log)
	if err != nil {
		return nil, err
	}
	a.endpoints = sel
	a.closers = append(a.closers, sel.Close)

	client, err := chain.NewEthereumClient(sel, cfg.ContractAddress, cfg.ChainID, cfg.PollInterval, a.metrics, log)
	if err != nil {
		return nil, err
	}
	a.health = append(a.health, client)
	return client, nil
}

func openKeyStore(cfg config.CustodyConfig, enc ports.EncryptionService) (ports.KeyStore, error) {
	if cfg.Mode == "hd" {
		return custody.NewHDKeyStore(cfg.Mnemonic, cfg.Passphrase, cfg.ScanLimit)
	}
	return custody.NewSealedKeyStore(cfg.Keys, enc)
}

// Close releases handles in reverse order of acquisition and waits for
// in-flight alert deliveries.
func (a *app) Close() {
	if a.alerts != nil {
		a.alerts.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
