package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/metrics"

	"github.com/rs/zerolog"
)

// AlertSignatureHeader carries "t=<unix>,v1=<hex hmac of <unix>.<body>>".
const AlertSignatureHeader = "X-Bridge-Signature"

// DefaultAlertRetryIntervals is the delivery backoff after the first attempt.
var DefaultAlertRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlertPayload is the JSON body POSTed to the operator webhook.
type AlertPayload struct {
	ports.Alert
	Timestamp int64 `json:"timestamp"`
}

// WebhookAlertService implements ports.AlertService. Every alert is logged
// at error level and counted; with a webhook URL configured it is also
// delivered asynchronously with retries.
type WebhookAlertService struct {
	url            string
	secret         string
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	metrics        *metrics.Recorder
	log            zerolog.Logger
	inflight       sync.WaitGroup
}

func NewAlertService(
	url, secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	retryIntervals []time.Duration,
	m *metrics.Recorder,
	log zerolog.Logger,
) *WebhookAlertService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAlertService{
		url:            url,
		secret:         secret,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		retryIntervals: retryIntervals,
		metrics:        m,
		log:            log,
	}
}

func (s *WebhookAlertService) Notify(_ context.Context, alert ports.Alert) {
	s.metrics.IncAlert(alert.Kind)
	s.log.Error().
		Str("alert", alert.Kind).
		Str("idempotency_key", alert.IdempotencyKey).
		Str("reason", alert.Reason).
		Str("detail", alert.Detail).
		Msg("Operator attention required")

	if s.url == "" {
		return
	}

	ts := time.Now().Unix()
	body, err := json.Marshal(AlertPayload{Alert: alert, Timestamp: ts})
	if err != nil {
		s.log.Error().Err(err).Str("alert", alert.Kind).Msg("alert: failed to marshal payload")
		return
	}
	signature := fmt.Sprintf("t=%d,v1=%s", ts, s.sigSvc.Sign(s.secret, fmt.Sprintf("%d.%s", ts, body)))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliverWithRetries(body, signature, alert.Kind)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookAlertService) Wait() {
	s.inflight.Wait()
}

func (s *WebhookAlertService) deliverWithRetries(body []byte, signature, kind string) {
	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			s.log.Error().Err(err).Str("alert", kind).Msg("alert: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(AlertSignatureHeader, signature)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("alert", kind).Int("attempt", attempt+1).Msg("alert: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("alert", kind).Int("attempt", attempt+1).Msg("alert: delivered")
			return
		}
		s.log.Warn().Str("alert", kind).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("alert: non-2xx response, retrying")
	}

	s.log.Error().Str("alert", kind).Msg("alert: all retry attempts exhausted")
}
