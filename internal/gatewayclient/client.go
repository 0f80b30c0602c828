// Package gatewayclient calls the payment gateway's validation endpoint used
// by the redirect-and-poll flow.
package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/coursepay/internal/config"
	obstracing "github.com/smallbiznis/coursepay/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	maxResponseBytes = 1 << 20
	maxAttempts      = 3
)

var (
	ErrNotConfigured       = errors.New("gateway_client_not_configured")
	ErrTransactionNotFound = errors.New("gateway_transaction_not_found")
	ErrUnexpectedResponse  = errors.New("gateway_unexpected_response")
	ErrEmptyTransactionID  = errors.New("gateway_empty_transaction_id")
)

// ValidationResult carries the gateway's answer in the same shape a webhook
// delivers, so callers can feed Payload straight into the gateway adapter.
type ValidationResult struct {
	TransactionID string
	RawStatus     string
	Payload       []byte
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	tunables   *config.ReconcilerConfigHolder
	httpClient *http.Client
	log        *zap.Logger

	newBackOff func() backoff.BackOff
}

func New(cfg config.Config, tunables *config.ReconcilerConfigHolder, log *zap.Logger) *Client {
	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.Gateway.BaseURL, "/"),
		apiKey:     cfg.Gateway.APIKey,
		timeout:    timeout,
		tunables:   tunables,
		httpClient: obstracing.WrapHTTPClient(&http.Client{}),
		log:        log.Named("gatewayclient"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// callTimeout prefers the reloadable tunable over the static env value.
func (c *Client) callTimeout() time.Duration {
	if c.tunables != nil {
		if timeout := c.tunables.Get().GatewayTimeout; timeout > 0 {
			return timeout
		}
	}
	return c.timeout
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Validate asks the gateway for the current state of a transaction. The
// whole call, retries included, is bounded by the configured timeout; a
// timeout or transport failure is reported as ErrTransientIO.
func (c *Client) Validate(ctx context.Context, transactionID string) (ValidationResult, error) {
	if !c.Configured() {
		return ValidationResult{}, ErrNotConfigured
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ValidationResult{}, ErrEmptyTransactionID
	}

	ctx, span := otel.Tracer("coursepay/gatewayclient").Start(ctx, "gateway.validate")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.transaction_id", transactionID))

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout())
	defer cancel()

	endpoint := c.baseURL + "/transactions/" + url.PathEscape(transactionID) + "/validate"
	result, err := backoff.Retry(ctx, func() (ValidationResult, error) {
		return c.fetch(ctx, endpoint, transactionID)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrTransactionNotFound) {
			err = fmt.Errorf("%w: %v", paymentdomain.ErrTransientIO, ctx.Err())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway validation failed")
		c.log.Warn("gateway validation failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return ValidationResult{}, err
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, transactionID string) (ValidationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ValidationResult{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrTransientIO, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrTransientIO, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ValidationResult{}, backoff.Permanent(ErrTransactionNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return ValidationResult{}, fmt.Errorf("%w: gateway status %d", paymentdomain.ErrTransientIO, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return ValidationResult{}, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode))
	}

	var envelope struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		RawStatus     string `json:"rawStatus"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ValidationResult{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrUnexpectedResponse, err))
	}
	raw := envelope.RawStatus
	if raw == "" {
		raw = envelope.Status
	}
	if envelope.TransactionID != "" && envelope.TransactionID != transactionID {
		return ValidationResult{}, backoff.Permanent(fmt.Errorf("%w: transaction id mismatch", ErrUnexpectedResponse))
	}

	return ValidationResult{
		TransactionID: transactionID,
		RawStatus:     raw,
		Payload:       body,
	}, nil
}
