package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/config"
)

const activatePath = "/post"

// ErrEmptyResponse indicates the backend answered without a response code.
var ErrEmptyResponse = errors.New("relay backend returned no response code")

// DispatchError wraps any failure to obtain a response code from the backend.
type DispatchError struct {
	RelayID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch relay %s: %v", e.RelayID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Timeout reports whether the dispatch failed because the deadline expired.
func (e *DispatchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Dispatcher issues one activation request and returns the raw backend code.
type Dispatcher interface {
	Dispatch(ctx context.Context, identity, relayID string) (int64, error)
}

// HTTPDispatcher is a resty-backed implementation of Dispatcher.
type HTTPDispatcher struct {
	httpClient *resty.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewHTTPDispatcher builds a dispatcher for the backend at cfg.BaseURL.
// Requests are never retried: an activation is not idempotent.
func NewHTTPDispatcher(cfg config.RelayConfig, logger *zap.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout)

	return &HTTPDispatcher{
		httpClient: restyClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// Dispatch posts code/relay query parameters and parses the integer reply.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, identity, relayID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"code":  identity,
			"relay": relayID,
		}).
		Post(activatePath)
	if err != nil {
		return 0, &DispatchError{RelayID: relayID, Err: err}
	}

	if resp.IsError() {
		return 0, &DispatchError{
			RelayID: relayID,
			Err:     fmt.Errorf("relay backend status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())),
		}
	}

	code, err := parseCode(resp.String())
	if err != nil {
		return 0, &DispatchError{RelayID: relayID, Err: err}
	}

	d.logger.Debug("relay backend replied", zap.String("relay", relayID), zap.Int64("code", code), zap.Duration("took", resp.Time()))
	return code, nil
}

func parseCode(body string) (int64, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "null" {
		return 0, ErrEmptyResponse
	}

	code, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse relay response %q: %w", body, err)
	}
	return code, nil
}
