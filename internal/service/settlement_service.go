package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/apperror"
	"fiat-token-bridge/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

const (
	// Redemption keys are namespaced so a caller cannot claim a provider event id.
	redeemKeyPrefix = "redeem:"
	payoutKeyPrefix = "payout:"

	maxIdempotencyKeyLen = 128
	defaultListLimit     = 50
	maxListLimit         = 200

	// maxNonceRetries bounds how often one broadcast re-signs after another
	// transaction took its nonce.
	maxNonceRetries = 3
)

// SettlementConfig holds the engine's tunables.
type SettlementConfig struct {
	WebhookSecret       string
	Currency            string
	ConfirmationTimeout time.Duration
	OutcomeCacheTTL     time.Duration
	MaxAttempts         int
	// OperatorAddress, when set, is the contract owner that signs mints.
	OperatorAddress string
}

// SettlementEngine mints tokens for captured payments and burns them for
// redemptions. Every chain effect is backed by a settlement record that is
// inserted before anything is signed.
type SettlementEngine struct {
	payments ports.PaymentClient
	chain    ports.ChainClient
	keys     ports.KeyStore
	bindings *BindingRegistry
	records  ports.SettlementRepository
	cache    ports.OutcomeCache
	alerts   ports.AlertService
	conv     domain.Conversion
	cfg      SettlementConfig
	metrics  *metrics.Recorder
	log      zerolog.Logger
}

// NewSettlementEngine wires the engine. cache may be nil.
func NewSettlementEngine(
	payments ports.PaymentClient,
	chain ports.ChainClient,
	keys ports.KeyStore,
	bindings *BindingRegistry,
	records ports.SettlementRepository,
	cache ports.OutcomeCache,
	alerts ports.AlertService,
	conv domain.Conversion,
	cfg SettlementConfig,
	m *metrics.Recorder,
	log zerolog.Logger,
) *SettlementEngine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = time.Minute
	}
	return &SettlementEngine{
		payments: payments,
		chain:    chain,
		keys:     keys,
		bindings: bindings,
		records:  records,
		cache:    cache,
		alerts:   alerts,
		conv:     conv,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// ---- Mint path ----

// HandleWebhook verifies a provider webhook and mints for captured payments.
// Only a bad signature or a store failure before the record exists is
// returned as an error; every other outcome is reported in the stage.
func (e *SettlementEngine) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (out *ports.MintOutcome, err error) {
	out = &ports.MintOutcome{Stage: domain.StageReceived}
	defer func() { e.metrics.IncWebhook(string(out.Stage)) }()

	evt, verr := e.payments.VerifyWebhookSignature(rawBody, signatureHeader, e.cfg.WebhookSecret)
	if verr != nil {
		out.Stage = domain.StageBadSignature
		e.log.Warn().Err(verr).Msg("webhook signature rejected")
		return out, apperror.ErrInvalidSignature(verr)
	}
	out.EventID = evt.ID
	out.Stage = domain.StageSignatureVerified

	if !evt.IsMintable() {
		out.Stage = domain.StageIgnored
		switch {
		case evt.IsPaymentFailure():
			e.log.Warn().Str("event_id", evt.ID).Str("account", evt.ConnectedAccountID).Msg("delayed payment failed, nothing minted")
			e.alert(ctx, "ASYNC_PAYMENT_FAILED", evt.ID, "delayed payment failed after checkout",
				fmt.Errorf("account %q amount %d", evt.ConnectedAccountID, evt.AmountMinor))
		case evt.IsCheckout():
			e.log.Info().Str("event_id", evt.ID).Str("payment_status", evt.PaymentStatus).Msg("checkout not paid yet, waiting for async payment")
		default:
			e.log.Debug().Str("event_id", evt.ID).Str("type", evt.Type).Msg("webhook ignored")
		}
		return out, nil
	}
	if evt.AmountMinor <= 0 {
		out.Stage = domain.StageIgnored
		e.log.Warn().Str("event_id", evt.ID).Int64("amount", evt.AmountMinor).Msg("payment event without amount")
		return out, nil
	}

	if rec := e.cachedOutcome(ctx, evt.ID); rec != nil {
		out.Stage = domain.StageDuplicate
		out.Record = rec
		return out, nil
	}
	existing, gerr := e.records.Get(ctx, evt.ID)
	if gerr != nil {
		return out, apperror.InternalError(fmt.Errorf("settlement lookup: %w", gerr))
	}
	if existing != nil {
		out.Stage = domain.StageDuplicate
		out.Record = existing
		e.cacheOutcome(ctx, existing)
		return out, nil
	}

	binding, berr := e.bindings.ByAccount(ctx, evt.ConnectedAccountID)
	if berr != nil {
		if !apperror.HasCode(berr, "BIND_002") {
			return out, berr
		}
		return e.recordNoBinding(ctx, evt, out)
	}
	out.Stage = domain.StageBoundLookedUp

	now := time.Now().UTC()
	rec := &domain.SettlementRecord{
		IdempotencyKey:       evt.ID,
		Kind:                 domain.SettlementKindMint,
		ConnectedAccountID:   binding.ConnectedAccountID,
		WalletAddress:        binding.WalletAddress,
		FiatAmountMinor:      evt.AmountMinor,
		Currency:             evt.Currency,
		RequestedTokenAmount: e.conv.ToToken(evt.AmountMinor).String(),
		Status:               domain.SettlementStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if ierr := e.records.Insert(ctx, rec); ierr != nil {
		if errors.Is(ierr, ports.ErrAlreadyExists) {
			out.Stage = domain.StageDuplicate
			out.Record, _ = e.records.Get(ctx, evt.ID)
			return out, nil
		}
		return out, apperror.InternalError(fmt.Errorf("insert settlement: %w", ierr))
	}
	out.Record = rec

	// The record exists; the caller going away must not abandon it.
	ctx = context.WithoutCancel(ctx)

	signer, serr := e.signerFor(ctx, rec)
	if serr != nil {
		out.Stage = domain.StageAwaitingReconciliation
		e.alert(ctx, "SIGNER_MISSING", rec.IdempotencyKey, "no signer for mint", serr)
		return out, nil
	}

	amount, _ := rec.RequestedTokens()
	out.Stage = domain.StageMintSubmitted
	receipt, cerr := e.broadcast(ctx, rec, signer, domain.MethodMint, amount, true)
	if cerr != nil {
		if isChainFailure(cerr) {
			out.Stage = domain.StageMintFailed
			e.failMint(ctx, rec, cerr)
			return out, nil
		}
		out.Stage = domain.StageAwaitingReconciliation
		e.log.Warn().Err(cerr).Str("key", rec.IdempotencyKey).Msg("mint not confirmed, left for reconciliation")
		return out, nil
	}
	out.Stage = domain.StageMintConfirmed

	if ferr := e.finishMint(ctx, rec, receipt); ferr != nil {
		out.Stage = domain.StageAwaitingReconciliation
		return out, nil
	}
	out.Stage = domain.StageLogged
	return out, nil
}

func (e *SettlementEngine) recordNoBinding(ctx context.Context, evt *domain.PaymentEvent, out *ports.MintOutcome) (*ports.MintOutcome, error) {
	now := time.Now().UTC()
	rec := &domain.SettlementRecord{
		IdempotencyKey:     evt.ID,
		Kind:               domain.SettlementKindMint,
		ConnectedAccountID: evt.ConnectedAccountID,
		FiatAmountMinor:    evt.AmountMinor,
		Currency:           evt.Currency,
		Status:             domain.SettlementStatusFailed,
		FailureReason:      domain.FailureNoBinding,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.records.Insert(ctx, rec); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			out.Stage = domain.StageDuplicate
			return out, nil
		}
		return out, apperror.InternalError(fmt.Errorf("insert settlement: %w", err))
	}
	out.Stage = domain.StageNoBinding
	out.Record = rec
	e.metrics.IncSettlement(string(rec.Kind), string(rec.Status))
	e.cacheOutcome(ctx, rec)
	e.alert(ctx, string(domain.FailureNoBinding), rec.IdempotencyKey,
		"payment captured for an account with no wallet",
		fmt.Errorf("account %q", evt.ConnectedAccountID))
	return out, nil
}

// finishMint decodes the Minted event and confirms the record with the
// amount the contract reports.
func (e *SettlementEngine) finishMint(ctx context.Context, rec *domain.SettlementRecord, receipt *domain.ChainReceipt) error {
	minted, err := e.decodeAmount(receipt, domain.EventMinted)
	if err != nil {
		if terr := e.transition(ctx, rec, ports.SettlementUpdate{
			From:          domain.SettlementStatusPending,
			To:            domain.SettlementStatusReconciliationRequired,
			ChainTxHash:   receipt.TxHash,
			FailureReason: domain.FailureEventNotFound,
		}); terr != nil {
			return terr
		}
		e.alert(ctx, string(domain.FailureEventNotFound), rec.IdempotencyKey, "mint confirmed without Minted event", err)
		return err
	}

	if minted.String() != rec.RequestedTokenAmount {
		e.log.Warn().
			Str("key", rec.IdempotencyKey).
			Str("requested", rec.RequestedTokenAmount).
			Str("minted", minted.String()).
			Msg("minted amount differs from request")
	}
	if err := e.transition(ctx, rec, ports.SettlementUpdate{
		From:        domain.SettlementStatusPending,
		To:          domain.SettlementStatusConfirmed,
		TokenAmount: minted.String(),
		ChainTxHash: receipt.TxHash,
	}); err != nil {
		return err
	}
	e.cacheOutcome(ctx, rec)
	return nil
}

func (e *SettlementEngine) failMint(ctx context.Context, rec *domain.SettlementRecord, cause error) {
	if err := e.transition(ctx, rec, ports.SettlementUpdate{
		From:          domain.SettlementStatusPending,
		To:            domain.SettlementStatusFailed,
		FailureReason: domain.FailureMintFailed,
	}); err != nil {
		return
	}
	e.cacheOutcome(ctx, rec)
	e.alert(ctx, string(domain.FailureMintFailed), rec.IdempotencyKey, "payment captured but mint failed", cause)
}

// ---- Redemption path ----

// Redeem burns tokens from a bound wallet and pays the fiat equivalent to
// the bound account. The payout is only attempted after the burn is confirmed.
func (e *SettlementEngine) Redeem(ctx context.Context, req ports.RedeemRequest) (*domain.SettlementRecord, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" || len(key) > maxIdempotencyKeyLen {
		return nil, apperror.Validation("idempotency key is required (max 128 characters)")
	}
	if !common.IsHexAddress(req.WalletAddress) {
		return nil, apperror.Validation("invalid wallet address")
	}
	if req.TokenAmount == nil || req.TokenAmount.Sign() <= 0 {
		return nil, apperror.Validation("token amount must be positive")
	}
	fiat, err := e.conv.ToFiat(req.TokenAmount)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if fiat <= 0 {
		return nil, apperror.Validation("token amount is below one fiat minor unit")
	}

	binding, err := e.bindings.ByWallet(ctx, req.WalletAddress)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &domain.SettlementRecord{
		IdempotencyKey:       redeemKeyPrefix + key,
		Kind:                 domain.SettlementKindBurn,
		ConnectedAccountID:   binding.ConnectedAccountID,
		WalletAddress:        binding.WalletAddress,
		FiatAmountMinor:      fiat,
		Currency:             e.cfg.Currency,
		RequestedTokenAmount: req.TokenAmount.String(),
		Status:               domain.SettlementStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := e.records.Insert(ctx, rec); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return e.existingRedemption(ctx, rec)
		}
		return nil, apperror.InternalError(fmt.Errorf("insert settlement: %w", err))
	}

	ctx = context.WithoutCancel(ctx)
	log := e.log.With().Str("key", rec.IdempotencyKey).Str("wallet", rec.WalletAddress).Logger()

	signer, err := e.signerFor(ctx, rec)
	if err != nil {
		_ = e.transition(ctx, rec, ports.SettlementUpdate{
			From:          domain.SettlementStatusPending,
			To:            domain.SettlementStatusFailed,
			FailureReason: domain.FailureBurnFailed,
		})
		return nil, err
	}

	receipt, err := e.broadcast(ctx, rec, signer, domain.MethodBurn, req.TokenAmount, true)
	if err != nil {
		switch {
		case isChainFailure(err) || !rec.IsSubmitted():
			log.Warn().Err(err).Msg("burn failed")
			if terr := e.transition(ctx, rec, ports.SettlementUpdate{
				From:          domain.SettlementStatusPending,
				To:            domain.SettlementStatusFailed,
				ChainTxHash:   rec.ChainTxHash,
				FailureReason: domain.FailureBurnFailed,
			}); terr != nil {
				return nil, apperror.InternalError(terr)
			}
			return nil, apperror.ErrChainSubmission(err)
		default:
			log.Warn().Err(err).Msg("burn outcome unknown, left for reconciliation")
			return nil, apperror.ErrChainTimeout(err)
		}
	}

	if err := e.completeBurn(ctx, rec, receipt); err != nil {
		return nil, err
	}
	return rec, nil
}

// existingRedemption maps a replayed redemption key to its recorded outcome.
// None of these paths burn again.
func (e *SettlementEngine) existingRedemption(ctx context.Context, attempted *domain.SettlementRecord) (*domain.SettlementRecord, error) {
	existing, err := e.records.Get(ctx, attempted.IdempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settlement lookup: %w", err))
	}
	if existing == nil {
		return nil, apperror.ErrSettlementInProgress()
	}
	if existing.WalletAddress != attempted.WalletAddress ||
		existing.RequestedTokenAmount != attempted.RequestedTokenAmount {
		return nil, apperror.ErrInvalidSettlementState("idempotency key reused with different parameters")
	}

	switch existing.Status {
	case domain.SettlementStatusConfirmed:
		return existing, nil
	case domain.SettlementStatusPending:
		return nil, apperror.ErrSettlementInProgress()
	case domain.SettlementStatusReconciliationRequired:
		return nil, apperror.ErrReconciliationRequired(fmt.Errorf("settlement %s: %s", existing.IdempotencyKey, existing.FailureReason))
	default:
		return nil, apperror.ErrSettlementFailed()
	}
}

// completeBurn decodes the Burned event and pays out its fiat equivalent.
func (e *SettlementEngine) completeBurn(ctx context.Context, rec *domain.SettlementRecord, receipt *domain.ChainReceipt) error {
	burned, err := e.decodeAmount(receipt, domain.EventBurned)
	if err != nil {
		if terr := e.transition(ctx, rec, ports.SettlementUpdate{
			From:          domain.SettlementStatusPending,
			To:            domain.SettlementStatusReconciliationRequired,
			ChainTxHash:   receipt.TxHash,
			FailureReason: domain.FailureEventNotFound,
		}); terr != nil {
			return apperror.InternalError(terr)
		}
		e.alert(ctx, string(domain.FailureEventNotFound), rec.IdempotencyKey, "burn confirmed without Burned event", err)
		return apperror.ErrReconciliationRequired(err)
	}
	rec.ChainTxHash = receipt.TxHash
	return e.payout(ctx, rec, burned, domain.SettlementStatusPending)
}

// payout transfers fiat for a confirmed burn. The provider idempotency key
// is derived from the record key, so a retried payout never pays twice.
func (e *SettlementEngine) payout(ctx context.Context, rec *domain.SettlementRecord, burned *big.Int, from domain.SettlementStatus) error {
	fiat, err := e.conv.ToFiat(burned)
	if err != nil {
		return e.payoutFailed(ctx, rec, burned, from, err)
	}

	var transferID string
	if fiat > 0 {
		handle, err := e.priorTransfer(ctx, rec, from)
		if err != nil {
			return e.payoutFailed(ctx, rec, burned, from, err)
		}
		if handle == nil {
			handle, err = e.payments.CreateTransfer(ctx, ports.TransferRequest{
				Destination:    rec.ConnectedAccountID,
				AmountMinor:    fiat,
				Currency:       rec.Currency,
				Description:    "Redemption of " + e.conv.Format(burned),
				IdempotencyKey: payoutKeyPrefix + rec.IdempotencyKey,
				TransferGroup:  rec.IdempotencyKey,
			})
			if err != nil {
				return e.payoutFailed(ctx, rec, burned, from, err)
			}
		}
		transferID = handle.ID
	} else {
		e.log.Warn().Str("key", rec.IdempotencyKey).Str("burned", burned.String()).Msg("burn worth less than one fiat unit, no payout")
	}

	if err := e.transition(ctx, rec, ports.SettlementUpdate{
		From:                   from,
		To:                     domain.SettlementStatusConfirmed,
		TokenAmount:            burned.String(),
		ChainTxHash:            rec.ChainTxHash,
		CounterpartyTransferID: transferID,
	}); err != nil {
		return apperror.InternalError(err)
	}
	rec.FiatAmountMinor = fiat
	return nil
}

// priorTransfer finds a payout already made for rec. The provider only
// remembers idempotency keys for a day, so any payout that is not the
// first in-process attempt looks for a transfer tagged with the record key
// before paying.
func (e *SettlementEngine) priorTransfer(ctx context.Context, rec *domain.SettlementRecord, from domain.SettlementStatus) (*ports.TransferHandle, error) {
	if from == domain.SettlementStatusPending && rec.Attempts == 0 {
		return nil, nil
	}
	handle, err := e.payments.FindTransfer(ctx, rec.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("look up prior transfer: %w", err)
	}
	if handle != nil {
		e.log.Warn().Str("key", rec.IdempotencyKey).Str("transfer_id", handle.ID).Msg("payout already made, not paying again")
	}
	return handle, nil
}

func (e *SettlementEngine) payoutFailed(ctx context.Context, rec *domain.SettlementRecord, burned *big.Int, from domain.SettlementStatus, cause error) error {
	if from != domain.SettlementStatusReconciliationRequired {
		if err := e.transition(ctx, rec, ports.SettlementUpdate{
			From:          from,
			To:            domain.SettlementStatusReconciliationRequired,
			TokenAmount:   burned.String(),
			ChainTxHash:   rec.ChainTxHash,
			FailureReason: domain.FailurePayoutFailed,
		}); err != nil {
			return apperror.InternalError(err)
		}
	}
	e.alert(ctx, string(domain.FailurePayoutFailed), rec.IdempotencyKey, "tokens burned but payout failed", cause)
	return apperror.ErrReconciliationRequired(cause)
}

// ---- Reconciliation ----

// Resume advances one PENDING record. A recorded transaction is looked up
// and rebroadcast if unmined; a record without one is prepared afresh.
// Confirmation is left to a later pass.
func (e *SettlementEngine) Resume(ctx context.Context, rec *domain.SettlementRecord) (*domain.SettlementRecord, error) {
	if rec.IsTerminal() {
		return rec, nil
	}
	log := e.log.With().Str("key", rec.IdempotencyKey).Str("kind", string(rec.Kind)).Logger()

	attempts, err := e.records.IncrementAttempts(ctx, rec.IdempotencyKey)
	if err != nil {
		return rec, fmt.Errorf("increment attempts: %w", err)
	}
	rec.Attempts = attempts

	if rec.IsSubmitted() {
		receipt, err := e.chain.ReceiptByHash(ctx, rec.ChainTxHash)
		if err != nil {
			return rec, fmt.Errorf("receipt lookup: %w", err)
		}
		if receipt != nil {
			return e.settleMined(ctx, rec, receipt)
		}
	}

	if attempts > e.cfg.MaxAttempts {
		log.Error().Int("attempts", attempts).Msg("giving up on settlement")
		if err := e.transition(ctx, rec, ports.SettlementUpdate{
			From:          domain.SettlementStatusPending,
			To:            domain.SettlementStatusReconciliationRequired,
			FailureReason: domain.FailureSubmissionUnknown,
		}); err != nil {
			return rec, err
		}
		e.alert(ctx, string(domain.FailureSubmissionUnknown), rec.IdempotencyKey,
			"settlement not confirmed after maximum attempts", fmt.Errorf("%d attempts", attempts))
		return rec, nil
	}

	if rec.IsSubmitted() {
		raw, err := hexutil.Decode(rec.RawTx)
		if err != nil {
			return rec, fmt.Errorf("decode stored tx: %w", err)
		}
		err = e.chain.Submit(ctx, &domain.PendingTx{
			Hash:   rec.ChainTxHash,
			Method: methodFor(rec.Kind),
			Raw:    raw,
		})
		switch {
		case err == nil:
			log.Info().Str("tx", rec.ChainTxHash).Msg("settlement rebroadcast")
			return rec, nil
		case errors.Is(err, ports.ErrNonceSpent):
			// Another transaction was mined on this nonce; the recorded one
			// never can be. Sign afresh below.
			log.Warn().Err(err).Str("tx", rec.ChainTxHash).Msg("recorded transaction lost its nonce")
			if rerr := e.releaseSubmission(ctx, rec); rerr != nil {
				return rec, rerr
			}
		case isChainFailure(err):
			return rec, e.failSettlement(ctx, rec, err)
		default:
			return rec, fmt.Errorf("rebroadcast: %w", err)
		}
	}

	signer, err := e.signerFor(ctx, rec)
	if err != nil {
		return rec, err
	}
	amount, ok := rec.RequestedTokens()
	if !ok {
		return rec, fmt.Errorf("settlement %s has no requested amount", rec.IdempotencyKey)
	}
	if _, err := e.broadcast(ctx, rec, signer, methodFor(rec.Kind), amount, false); err != nil {
		if isChainFailure(err) {
			return rec, e.failSettlement(ctx, rec, err)
		}
		return rec, fmt.Errorf("resubmit: %w", err)
	}
	log.Info().Str("tx", rec.ChainTxHash).Msg("settlement submitted by reconciler")
	return rec, nil
}

// settleMined finishes a record whose transaction has a receipt.
func (e *SettlementEngine) settleMined(ctx context.Context, rec *domain.SettlementRecord, receipt *domain.ChainReceipt) (*domain.SettlementRecord, error) {
	if !receipt.Confirmed {
		return rec, e.failSettlement(ctx, rec, ports.ErrTxReverted)
	}
	var err error
	if rec.Kind == domain.SettlementKindMint {
		err = e.finishMint(ctx, rec, receipt)
	} else {
		err = e.completeBurn(ctx, rec, receipt)
	}
	if err != nil && rec.IsTerminal() {
		// Recorded and alerted; nothing left for the reconciler.
		return rec, nil
	}
	return rec, err
}

func (e *SettlementEngine) failSettlement(ctx context.Context, rec *domain.SettlementRecord, cause error) error {
	if rec.Kind == domain.SettlementKindMint {
		e.failMint(ctx, rec, cause)
		return nil
	}
	return e.transition(ctx, rec, ports.SettlementUpdate{
		From:          domain.SettlementStatusPending,
		To:            domain.SettlementStatusFailed,
		FailureReason: domain.FailureBurnFailed,
	})
}

// ---- Operator actions ----

// RetryPayout reattempts the transfer for a burn whose payout failed.
func (e *SettlementEngine) RetryPayout(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	rec, err := e.Get(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !rec.CanRetryPayout() {
		return nil, apperror.ErrInvalidSettlementState("payout retry requires a confirmed burn awaiting reconciliation")
	}
	burned, ok := rec.ConfirmedTokens()
	if !ok {
		return nil, apperror.ErrInvalidSettlementState("burned amount not recorded")
	}
	if err := e.payout(ctx, rec, burned, domain.SettlementStatusReconciliationRequired); err != nil {
		return nil, err
	}
	return e.Get(ctx, idempotencyKey)
}

// RetryMint reopens a mint that failed on chain. The record goes back to
// PENDING without a transaction and is signed again straight away; if that
// does not get through the reconciler picks it up.
func (e *SettlementEngine) RetryMint(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	rec, err := e.Get(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !rec.CanRetryMint() {
		return nil, apperror.ErrInvalidSettlementState("mint retry requires a mint that failed on chain")
	}
	if rec.IsSubmitted() {
		receipt, err := e.chain.ReceiptByHash(ctx, rec.ChainTxHash)
		if err != nil {
			return nil, apperror.ErrChainSubmission(err)
		}
		if receipt != nil && receipt.Confirmed {
			return nil, apperror.ErrInvalidSettlementState("recorded mint transaction succeeded on chain; resolve by hand")
		}
	}

	if err := e.transition(ctx, rec, ports.SettlementUpdate{
		From:   domain.SettlementStatusFailed,
		To:     domain.SettlementStatusPending,
		Reopen: true,
	}); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidSettlementState("record changed concurrently")
		}
		return nil, apperror.InternalError(err)
	}
	rec.ChainTxHash, rec.RawTx, rec.Attempts = "", "", 0

	ctx = context.WithoutCancel(ctx)
	e.forgetOutcome(ctx, rec.IdempotencyKey)
	if _, err := e.Resume(ctx, rec); err != nil {
		e.log.Warn().Err(err).Str("key", rec.IdempotencyKey).Msg("retried mint not submitted, left for reconciliation")
	}
	return e.Get(ctx, idempotencyKey)
}

// Resolve closes a record an operator has settled by hand.
func (e *SettlementEngine) Resolve(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	rec, err := e.Get(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.SettlementStatusReconciliationRequired {
		return nil, apperror.ErrInvalidSettlementState("only records awaiting reconciliation can be resolved")
	}
	if err := e.transition(ctx, rec, ports.SettlementUpdate{
		From:          domain.SettlementStatusReconciliationRequired,
		To:            domain.SettlementStatusFailed,
		FailureReason: domain.FailureResolvedByOperator,
	}); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidSettlementState("record changed concurrently")
		}
		return nil, apperror.InternalError(err)
	}
	e.cacheOutcome(ctx, rec)
	return e.Get(ctx, idempotencyKey)
}

// ---- Queries ----

func (e *SettlementEngine) Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	rec, err := e.records.Get(ctx, idempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settlement lookup: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrSettlementNotFound()
	}
	return rec, nil
}

func (e *SettlementEngine) List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Kind != "" && filter.Kind != domain.SettlementKindMint && filter.Kind != domain.SettlementKindBurn {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown kind %q", filter.Kind))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, total, err := e.records.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	return records, total, nil
}

func (e *SettlementEngine) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, apperror.Validation("invalid wallet address")
	}
	bal, err := e.chain.BalanceOf(ctx, common.HexToAddress(address).Hex())
	if err != nil {
		return nil, apperror.ErrChainSubmission(err)
	}
	return bal, nil
}

func (e *SettlementEngine) TotalSupply(ctx context.Context) (*big.Int, error) {
	supply, err := e.chain.TotalSupply(ctx)
	if err != nil {
		return nil, apperror.ErrChainSubmission(err)
	}
	return supply, nil
}

// ---- helpers ----

// broadcast prepares, records and submits a contract call. The hash and raw
// bytes are stored before the first broadcast so a crash can be resumed
// without signing a second transaction. A transaction refused because its
// nonce was taken is released and signed again. With await set it blocks
// until the receipt or the confirmation timeout.
func (e *SettlementEngine) broadcast(
	ctx context.Context,
	rec *domain.SettlementRecord,
	signer ports.Signer,
	method string,
	amount *big.Int,
	await bool,
) (*domain.ChainReceipt, error) {
	var tx *domain.PendingTx
	for attempt := 1; ; attempt++ {
		var err error
		tx, err = e.chain.Prepare(ctx, signer, method, rec.WalletAddress, amount)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", method, err)
		}
		if err := e.records.RecordSubmission(ctx, rec.IdempotencyKey, tx.Hash, hexutil.Encode(tx.Raw)); err != nil {
			return nil, fmt.Errorf("record submission: %w", err)
		}
		rec.ChainTxHash = tx.Hash
		rec.RawTx = hexutil.Encode(tx.Raw)

		e.log.Info().
			Str("key", rec.IdempotencyKey).
			Str("method", method).
			Str("tx", tx.Hash).
			Uint64("nonce", tx.Nonce).
			Msg("submitting transaction")

		err = e.chain.Submit(ctx, tx)
		if err == nil {
			break
		}
		if !errors.Is(err, ports.ErrNonceConflict) {
			return nil, fmt.Errorf("submit %s: %w", method, err)
		}
		if rerr := e.releaseSubmission(ctx, rec); rerr != nil {
			return nil, fmt.Errorf("submit %s: %w", method, err)
		}
		if attempt >= maxNonceRetries {
			return nil, fmt.Errorf("submit %s after %d nonce conflicts: %w", method, attempt, err)
		}
		e.log.Warn().Err(err).Str("key", rec.IdempotencyKey).Int("attempt", attempt).Msg("nonce taken, signing again")
	}

	if !await {
		return nil, nil
	}
	return e.chain.AwaitConfirmation(ctx, tx.Hash, e.cfg.ConfirmationTimeout)
}

// releaseSubmission forgets a refused transaction on rec.
func (e *SettlementEngine) releaseSubmission(ctx context.Context, rec *domain.SettlementRecord) error {
	if err := e.records.ReleaseSubmission(ctx, rec.IdempotencyKey, rec.ChainTxHash); err != nil {
		e.log.Error().Err(err).Str("key", rec.IdempotencyKey).Str("tx", rec.ChainTxHash).Msg("failed to release refused transaction")
		return fmt.Errorf("release submission: %w", err)
	}
	rec.ChainTxHash = ""
	rec.RawTx = ""
	return nil
}

// signerFor picks the key for a record: the operator for mints when one is
// configured, otherwise the wallet itself.
func (e *SettlementEngine) signerFor(ctx context.Context, rec *domain.SettlementRecord) (ports.Signer, error) {
	address := rec.WalletAddress
	if rec.Kind == domain.SettlementKindMint && e.cfg.OperatorAddress != "" {
		address = e.cfg.OperatorAddress
	}
	signer, err := e.keys.SignerFor(ctx, address)
	if err != nil {
		e.log.Error().Err(err).Str("address", address).Msg("signer lookup failed")
		return nil, apperror.ErrSignerNotFound(err)
	}
	return signer, nil
}

func (e *SettlementEngine) decodeAmount(receipt *domain.ChainReceipt, event string) (*big.Int, error) {
	fields, err := e.chain.DecodeEvent(receipt, event)
	if err != nil {
		return nil, err
	}
	amount, ok := fields[domain.EventFieldAmount].(*big.Int)
	if !ok || amount == nil {
		return nil, fmt.Errorf("%w: %s has no %s", ports.ErrEventNotFound, event, domain.EventFieldAmount)
	}
	return amount, nil
}

// transition applies a conditional status change and mirrors it on rec.
func (e *SettlementEngine) transition(ctx context.Context, rec *domain.SettlementRecord, u ports.SettlementUpdate) error {
	if err := e.records.Transition(ctx, rec.IdempotencyKey, u); err != nil {
		e.log.Error().Err(err).
			Str("key", rec.IdempotencyKey).
			Str("from", string(u.From)).
			Str("to", string(u.To)).
			Msg("settlement transition failed")
		return fmt.Errorf("transition %s: %w", rec.IdempotencyKey, err)
	}

	rec.Status = u.To
	rec.FailureReason = u.FailureReason
	if u.TokenAmount != "" {
		rec.TokenAmount = u.TokenAmount
	}
	if u.ChainTxHash != "" {
		rec.ChainTxHash = u.ChainTxHash
	}
	if u.CounterpartyTransferID != "" {
		rec.CounterpartyTransferID = u.CounterpartyTransferID
	}
	rec.UpdatedAt = time.Now().UTC()

	e.metrics.IncSettlement(string(rec.Kind), string(u.To))
	if u.To == domain.SettlementStatusConfirmed {
		e.metrics.ObserveConfirmation(time.Since(rec.CreatedAt))
	}
	e.log.Info().
		Str("key", rec.IdempotencyKey).
		Str("kind", string(rec.Kind)).
		Str("status", string(u.To)).
		Str("reason", string(u.FailureReason)).
		Str("tx", rec.ChainTxHash).
		Msg("settlement updated")
	return nil
}

func (e *SettlementEngine) alert(ctx context.Context, kind, key, reason string, cause error) {
	if e.alerts == nil {
		return
	}
	a := ports.Alert{Kind: kind, IdempotencyKey: key, Reason: reason}
	if cause != nil {
		a.Detail = cause.Error()
	}
	e.alerts.Notify(ctx, a)
}

func (e *SettlementEngine) cachedOutcome(ctx context.Context, key string) *domain.SettlementRecord {
	if e.cache == nil {
		return nil
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("outcome cache read failed, falling through to store")
		return nil
	}
	if raw == nil {
		return nil
	}
	var rec domain.SettlementRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached outcome")
		return nil
	}
	return &rec
}

// cacheOutcome stores terminal records only; a PENDING record may still move.
func (e *SettlementEngine) cacheOutcome(ctx context.Context, rec *domain.SettlementRecord) {
	if e.cache == nil || !rec.IsTerminal() {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, rec.IdempotencyKey, raw, e.cfg.OutcomeCacheTTL); err != nil {
		e.log.Warn().Err(err).Str("key", rec.IdempotencyKey).Msg("failed to cache settlement outcome")
	}
}

func (e *SettlementEngine) forgetOutcome(ctx context.Context, key string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, key); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("failed to drop cached settlement outcome")
	}
}

// isChainFailure reports a definitive chain refusal: the transaction
// reverted or was never accepted. Anything else may still confirm.
func isChainFailure(err error) bool {
	return errors.Is(err, ports.ErrTxReverted) || errors.Is(err, ports.ErrTxRejected)
}

func methodFor(kind domain.SettlementKind) string {
	if kind == domain.SettlementKindBurn {
		return domain.MethodBurn
	}
	return domain.MethodMint
}
