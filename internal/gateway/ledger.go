package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
)

// LedgerClient issues refund/release instructions to the settlement
// collaborator. Calls carry an idempotency key so retries after transport
// failures never move money twice.
type LedgerClient interface {
	Refund(ctx context.Context, referenceID string, amount decimal.Decimal, idempotencyKey string) (string, error)
	Release(ctx context.Context, referenceID string, amount decimal.Decimal, idempotencyKey string) (string, error)
}

type httpLedgerClient struct {
	baseURL string
	client  *http.Client
}

// NewLedgerClient builds the HTTP client, or a local fallback when no endpoint
// is configured (development mode).
func NewLedgerClient(cfg config.GatewayConfig, logger *zap.Logger) LedgerClient {
	if cfg.LedgerURL == "" {
		logger.Warn("GATEWAY_LEDGER_URL not provided; using local ledger stub")
		return &stubLedgerClient{logger: logger}
	}
	return &httpLedgerClient{
		baseURL: cfg.LedgerURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpLedgerClient) Refund(ctx context.Context, referenceID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	return c.instruct(ctx, "/refunds", referenceID, amount, idempotencyKey)
}

func (c *httpLedgerClient) Release(ctx context.Context, referenceID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	return c.instruct(ctx, "/releases", referenceID, amount, idempotencyKey)
}

func (c *httpLedgerClient) instruct(ctx context.Context, path, referenceID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	body := map[string]string{
		"reference_id": referenceID,
		"amount":       amount.StringFixed(2),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ledger collaborator returned status %d", resp.StatusCode)
	}
	var response struct {
		SettlementRef string `json:"settlement_ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}
	return response.SettlementRef, nil
}

// stubLedgerClient fabricates settlement references locally.
type stubLedgerClient struct {
	logger *zap.Logger
}

func (s *stubLedgerClient) Refund(_ context.Context, referenceID string, amount decimal.Decimal, _ string) (string, error) {
	ref := "stub-refund-" + uuid.NewString()
	s.logger.Debug("stub ledger refund",
		zap.String("reference_id", referenceID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("settlement_ref", ref))
	return ref, nil
}

func (s *stubLedgerClient) Release(_ context.Context, referenceID string, amount decimal.Decimal, _ string) (string, error) {
	ref := "stub-release-" + uuid.NewString()
	s.logger.Debug("stub ledger release",
		zap.String("reference_id", referenceID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("settlement_ref", ref))
	return ref, nil
}
