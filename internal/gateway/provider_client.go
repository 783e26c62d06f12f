package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"mobile-payment-backend/internal/metrics"
)

const (
	providerSuccessCode = "0000"
	maxProviderBody     = 1 << 20
	statusReadRetries   = 2
)

// ProviderClient talks to the external payment provider. Every request is
// signed, paced by a token bucket and bounded by the configured timeout.
type ProviderClient struct {
	baseURL  string
	clientID string
	signer   *Signer
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewProviderClient(baseURL string, clientID string, signer *Signer, httpClient *http.Client, timeout time.Duration, maxRPS float64, logger *slog.Logger, m *metrics.Metrics) *ProviderClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	burst := 1
	if maxRPS > 0 {
		limit = rate.Limit(maxRPS)
		burst = max(1, int(maxRPS))
	}

	return &ProviderClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		signer:   signer,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
	}
}

// providerFailure is a failed call, already in Result vocabulary.
type providerFailure struct {
	Code    string
	Message string
	Body    map[string]any
	// Retryable marks transport-level failures worth another attempt.
	Retryable bool
}

func (f *providerFailure) Error() string {
	return f.Code + ": " + f.Message
}

func (f *providerFailure) result() Result {
	return Result{Success: false, Error: f.Code, Message: f.Message, Provider: f.Body}
}

func (c *ProviderClient) Post(ctx context.Context, operation string, path string, params map[string]any) (map[string]any, *providerFailure) {
	return c.call(ctx, operation, http.MethodPost, path, params)
}

// Get retries transport failures with exponential backoff; reads are
// idempotent on the provider side.
func (c *ProviderClient) Get(ctx context.Context, operation string, path string, params map[string]any) (map[string]any, *providerFailure) {
	var (
		body map[string]any
		fail *providerFailure
	)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 100 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, statusReadRetries), ctx)
	_ = backoff.Retry(func() error {
		body, fail = c.call(ctx, operation, http.MethodGet, path, params)
		if fail == nil {
			return nil
		}
		if !fail.Retryable {
			return backoff.Permanent(fail)
		}
		return fail
	}, policy)

	return body, fail
}

func (c *ProviderClient) call(ctx context.Context, operation string, method string, path string, params map[string]any) (map[string]any, *providerFailure) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, fail := c.do(ctx, method, path, params)

	code := providerSuccessCode
	if fail != nil {
		code = fail.Code
		c.logger.Warn("provider call failed",
			"operation", operation,
			"path", path,
			"code", fail.Code,
			"message", fail.Message,
		)
	}
	c.metrics.ProviderRequest(operation, code, time.Since(started))
	return body, fail
}

func (c *ProviderClient) do(ctx context.Context, method string, path string, params map[string]any) (map[string]any, *providerFailure) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &providerFailure{Code: ErrCodeTimeout, Message: "provider rate limit wait exceeded the request deadline"}
	}

	signed := make(map[string]any, len(params)+2)
	for k, v := range params {
		signed[k] = v
	}
	signed["clientId"] = c.clientID
	signed[signatureField] = c.signer.Sign(signed)

	req, err := c.newRequest(ctx, method, path, signed)
	if err != nil {
		return nil, &providerFailure{Code: ErrCodeTransport, Message: err.Error()}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, transportFailure(err)
	}

	decoded := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, &providerFailure{
			Code:      ErrCodeInvalidResponse,
			Message:   fmt.Sprintf("provider returned a non-JSON body (HTTP %d)", resp.StatusCode),
			Retryable: resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	code := firstString(decoded, "code")
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && code == providerSuccessCode {
		return decoded, nil
	}

	errCode := firstString(decoded, "error", "code")
	if errCode == "" {
		errCode = "HTTP_" + strconv.Itoa(resp.StatusCode)
	}
	message := firstString(decoded, "message")
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return nil, &providerFailure{
		Code:      errCode,
		Message:   message,
		Body:      decoded,
		Retryable: resp.StatusCode >= http.StatusInternalServerError,
	}
}

func (c *ProviderClient) newRequest(ctx context.Context, method string, path string, params map[string]any) (*http.Request, error) {
	target := c.baseURL + path

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, formatValue(v))
		}
		req, err := http.NewRequestWithContext(ctx, method, target+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Client-Id", c.clientID)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func transportFailure(err error) *providerFailure {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &providerFailure{Code: ErrCodeTimeout, Message: "provider did not respond in time", Retryable: true}
	}
	return &providerFailure{Code: ErrCodeTransport, Message: "provider unreachable: " + err.Error(), Retryable: true}
}
