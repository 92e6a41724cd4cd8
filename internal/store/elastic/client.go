// Package elastic is the HTTP driver for the document store.
package elastic

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Config holds connection parameters for the document store.
type Config struct {
	Addr     string
	Username string
	Password string
	// MinHealth is the minimum acceptable cluster status for readiness
	// (default "yellow").
	MinHealth string
	Timeout   time.Duration
	// InsecureTLS skips certificate verification.
	InsecureTLS bool
	// CAFile adds a trusted CA certificate.
	CAFile string
}

// Store implements store.Store over the document store's HTTP API.
type Store struct {
	client    *resty.Client
	minHealth string
}

// NewStore creates a connected HTTP client for the store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	minHealth := cfg.MinHealth
	if minHealth == "" {
		minHealth = "yellow"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.Addr).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	if cfg.Username != "" {
		client.SetBasicAuth(cfg.Username, cfg.Password)
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.InsecureTLS {
		tlsCfg.InsecureSkipVerify = true
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	client.SetTLSClientConfig(tlsCfg)

	return &Store{client: client, minHealth: minHealth}, nil
}

// Ready probes cluster health. An I/O failure is Unknown, never NotReady.
func (s *Store) Ready(ctx context.Context) store.Readiness {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("wait_for_status", s.minHealth).
		SetQueryParam("timeout", "1s").
		Get("/_cluster/health")
	if err != nil {
		return store.Unknown
	}

	var health struct {
		Status   string `json:"status"`
		TimedOut bool   `json:"timed_out"`
	}
	if jsonErr := json.Unmarshal(resp.Body(), &health); jsonErr != nil {
		return store.Unknown
	}
	if resp.StatusCode() == http.StatusRequestTimeout || health.TimedOut {
		return store.NotReady
	}
	if resp.IsError() {
		return store.NotReady
	}
	return store.Ready
}

// WaitForReady polls Ready until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for document store: %w", ctx.Err())
		case <-ticker.C:
			if s.Ready(ctx) == store.Ready {
				return nil
			}
		}
	}
}

// Close releases idle connections.
func (s *Store) Close() {
	if c, ok := s.client.GetClient().Transport.(*http.Transport); ok {
		c.CloseIdleConnections()
	}
}

// execute runs one HTTP call, recording metrics and translating transport
// failures. Non-2xx responses are returned for the caller to interpret.
func (s *Store) execute(
	ctx context.Context, op, method, path string,
	body any, query map[string]string,
) (*resty.Response, error) {
	start := time.Now()
	req := s.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	for k, v := range query {
		req.SetQueryParam(k, v)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		err = &store.TransportError{Op: op, Err: err}
	}
	metrics.ObserveStoreOp(op, start, err)
	return resp, err
}

// wire shapes of the store's structured error body.

type errorBody struct {
	Error  *errorDetail `json:"error"`
	Status int          `json:"status"`
}

type errorDetail struct {
	Type         string         `json:"type"`
	Reason       string         `json:"reason"`
	RootCause    []errorDetail  `json:"root_cause"`
	CausedBy     *errorDetail   `json:"caused_by"`
	FailedShards []shardFailure `json:"failed_shards"`
}

type shardFailure struct {
	Shard  int          `json:"shard"`
	Index  string       `json:"index"`
	Reason *errorDetail `json:"reason"`
}

// backendError translates a non-2xx response into a BackendError, extracting
// the causal chain and per-shard failure detail.
func backendError(op string, resp *resty.Response) error {
	be := &store.BackendError{Op: op, Status: resp.StatusCode()}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Error == nil {
		be.Reason = fmt.Sprintf("status %d", resp.StatusCode())
		return be
	}

	be.Reason = body.Error.Reason
	if be.Reason == "" {
		be.Reason = body.Error.Type
	}
	for _, rc := range body.Error.RootCause {
		if rc.Reason != "" {
			be.Causes = append(be.Causes, rc.Reason)
		}
	}
	for cb := body.Error.CausedBy; cb != nil; cb = cb.CausedBy {
		if cb.Reason != "" {
			be.Causes = append(be.Causes, cb.Reason)
		}
	}
	for _, sf := range body.Error.FailedShards {
		if sf.Reason != nil && sf.Reason.Reason != "" {
			be.ShardFailures = append(be.ShardFailures, sf.Reason.Reason)
		}
	}
	return be
}
