package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	"fiat-token-bridge/internal/core/ports"
	"fiat-token-bridge/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

// Backend is the slice of *ethclient.Client the bridge uses.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dialer opens a Backend for one RPC URL.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// DialEthclient is the production Dialer.
func DialEthclient(ctx context.Context, rawURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rawURL)
}

type endpoint struct {
	url       string
	client    Backend
	failures  int
	downUntil time.Time
}

// EndpointSelector rotates calls across RPC endpoints. An endpoint that fails
// maxFailures times in a row at the connection level sits out for cooldown.
type EndpointSelector struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	cursor      int
	maxFailures int
	cooldown    time.Duration
	dial        Dialer
	now         func() time.Time
	metrics     *metrics.Recorder
	log         zerolog.Logger
}

func NewEndpointSelector(
	urls []string,
	maxFailures int,
	cooldown time.Duration,
	dial Dialer,
	m *metrics.Recorder,
	log zerolog.Logger,
) (*EndpointSelector, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one rpc url is required")
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}
	if dial == nil {
		dial = DialEthclient
	}

	eps := make([]*endpoint, 0, len(urls))
	for _, u := range urls {
		eps = append(eps, &endpoint{url: u})
	}

	return &EndpointSelector{
		endpoints:   eps,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		dial:        dial,
		now:         time.Now,
		metrics:     m,
		log:         log,
	}, nil
}

// Next returns the next healthy endpoint URL in rotation. When every endpoint
// is cooling down it returns the one that recovers first.
func (s *EndpointSelector) Next() string {
	c := s.candidates()
	return c[0].url
}

// candidates lists healthy endpoints in rotation order starting at the cursor,
// and advances the cursor by one.
func (s *EndpointSelector) candidates() []*endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := len(s.endpoints)
	start := s.cursor
	s.cursor = (s.cursor + 1) % n

	out := make([]*endpoint, 0, n)
	for i := 0; i < n; i++ {
		ep := s.endpoints[(start+i)%n]
		if !ep.downUntil.After(now) {
			out = append(out, ep)
		}
	}
	if len(out) > 0 {
		return out
	}

	soonest := s.endpoints[0]
	for _, ep := range s.endpoints[1:] {
		if ep.downUntil.Before(soonest.downUntil) {
			soonest = ep
		}
	}
	return []*endpoint{soonest}
}

func (s *EndpointSelector) client(ctx context.Context, ep *endpoint) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ep.client != nil {
		return ep.client, nil
	}
	c, err := s.dial(ctx, ep.url)
	if err != nil {
		return nil, err
	}
	ep.client = c
	return c, nil
}

func (s *EndpointSelector) markOK(ep *endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep.failures = 0
	ep.downUntil = time.Time{}
}

func (s *EndpointSelector) markFailed(ep *endpoint, err error) {
	s.mu.Lock()
	ep.failures++
	tripped := ep.failures >= s.maxFailures
	if tripped {
		ep.downUntil = s.now().Add(s.cooldown)
	}
	failures := ep.failures
	s.mu.Unlock()

	s.metrics.IncRPCFailure(ep.url)
	evt := s.log.Warn()
	if tripped {
		evt = s.log.Error()
	}
	evt.Err(err).
		Str("endpoint", ep.url).
		Int("consecutive_failures", failures).
		Bool("cooling_down", tripped).
		Msg("RPC endpoint failed")
}

// Do runs fn against endpoints in rotation until one answers. Only
// connection-level failures move on to the next endpoint; any other error
// is returned as is. When every candidate fails the error wraps
// ports.ErrChainUnavailable.
func (s *EndpointSelector) Do(ctx context.Context, fn func(Backend) error) error {
	var lastErr error
	for _, ep := range s.candidates() {
		if err := ctx.Err(); err != nil {
			return err
		}

		c, err := s.client(ctx, ep)
		if err != nil {
			s.markFailed(ep, err)
			lastErr = err
			continue
		}

		err = fn(c)
		if err == nil {
			s.markOK(ep)
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !isConnectionError(err) {
			s.markOK(ep)
			return err
		}
		s.markFailed(ep, err)
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ports.ErrChainUnavailable, lastErr)
}

// Probe checks every endpoint with eth_blockNumber so cooling endpoints
// recover without waiting for live traffic.
func (s *EndpointSelector) Probe(ctx context.Context, timeout time.Duration) {
	s.mu.Lock()
	eps := append([]*endpoint(nil), s.endpoints...)
	s.mu.Unlock()

	for _, ep := range eps {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		c, err := s.client(pctx, ep)
		if err == nil {
			_, err = c.BlockNumber(pctx)
		}
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.markFailed(ep, err)
			continue
		}
		s.markOK(ep)
	}
}

// RunProbe probes on every tick until ctx is done.
func (s *EndpointSelector) RunProbe(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx, interval/2)
		}
	}
}

// Close releases every dialed client.
func (s *EndpointSelector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.endpoints {
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError ||
			httpErr.StatusCode == http.StatusTooManyRequests
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
