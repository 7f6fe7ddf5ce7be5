package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// requestConfig contains parameters for an HTTP request.
type requestConfig struct {
	method      string      // HTTP method (GET, POST)
	path        string      // URL path, e.g. "/auth/login"
	query       url.Values  // Query parameters
	body        interface{} // Request body (will be JSON-encoded)
	expectCodes []int       // Expected HTTP status codes (default: any 2xx)
}

func (c requestConfig) op() string {
	return c.method + " " + c.path
}

// doRequest executes an API request through the intercepted client.
// Returns response body, status code, and error.
func (a *Adapter) doRequest(ctx context.Context, cfg requestConfig) ([]byte, int, error) {
	apiURL := a.buildURL(cfg.path, cfg.query)

	var bodyBytes []byte
	if cfg.body != nil {
		var err error
		bodyBytes, err = json.Marshal(cfg.body)
		if err != nil {
			return nil, 0, errors.Wrap(err, "marshal request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if cfg.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	if cfg.method == http.MethodGet {
		resp, err = a.doWithRetry(ctx, req)
	} else {
		resp, err = a.httpClient.Do(req)
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr.StatusCode, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, &NetworkError{Op: cfg.op(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{Op: cfg.op(), Err: errors.Wrap(err, "read response")}
	}

	if !isExpectedStatus(resp.StatusCode, cfg.expectCodes) {
		requestID := resp.Header.Get("X-Request-Id")
		apiErr := newAPIErrorFromResponse(resp.StatusCode, respBody, requestID)
		a.logger.Debug("api request failed",
			zap.String("op", cfg.op()),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("request_id", requestID))
		return respBody, resp.StatusCode, apiErr
	}

	return respBody, resp.StatusCode, nil
}

// doEnvelope executes an API request and decodes the {success, message, data}
// envelope. A 2xx response with success=false is reported as an APIError.
func doEnvelope[T any](ctx context.Context, a *Adapter, cfg requestConfig) (*models.Envelope[T], error) {
	body, status, err := a.doRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, errors.Newf("%s: expected JSON envelope but got: %q", cfg.op(), preview)
	}

	var env models.Envelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, errors.Wrapf(err, "%s: unmarshal response", cfg.op())
	}
	if !env.Success {
		return nil, &APIError{
			StatusCode: status,
			Message:    env.Message,
			Fields:     env.Errors,
			Body:       body,
		}
	}
	return &env, nil
}

// buildURL constructs a full URL with query string.
func (a *Adapter) buildURL(path string, query url.Values) string {
	result := a.endpoint + path
	if len(query) > 0 {
		result += "?" + query.Encode()
	}
	return result
}

// authPayload extracts a complete credential from an auth-bearing envelope.
func authPayload(op string, env *models.Envelope[models.AuthPayload]) (*models.AuthPayload, error) {
	if !env.Data.Issued() {
		return nil, errors.Newf("%s: response carries no credential", op)
	}
	if r := env.Data.User.Role; r != "" && !r.Valid() {
		return nil, errors.Newf("%s: unknown user role %q", op, r)
	}
	return &env.Data, nil
}

func requireField(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "cannot be empty"}
	}
	return nil
}

