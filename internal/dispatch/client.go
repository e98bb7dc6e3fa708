// Package dispatch performs the outbound calls to SAP and ServiceNow. Every
// call carries the request's correlation id as its idempotency key, runs
// under a bounded timeout, and classifies its outcome as success, retryable
// failure, or non-retryable failure. The dispatcher never retries silently;
// retries are operator actions recorded in the request history.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TargetConfig is the per-target endpoint configuration, passed explicitly
// into each call rather than held as global state.
type TargetConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequiresApproval marks targets whose tickets park in AWAITING_APPROVAL
	// until reconciliation reports a verdict.
	RequiresApproval bool
}

// Targets bundles the configuration for every dispatchable system.
type Targets struct {
	SAP        TargetConfig
	ServiceNow TargetConfig
}

const defaultTimeout = 12 * time.Second

func (c TargetConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

// TargetError is a downstream-reported failure, decoded from the error body.
type TargetError struct {
	Target     string
	Code       string
	Message    string
	StatusCode int
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s error [%s]: %s (status: %d)", e.Target, e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether the failure is worth another attempt. 4xx
// responses are validation-shaped rejections of the payload itself.
func (e *TargetError) IsRetryable() bool {
	return e.StatusCode >= 500
}

type targetErrorBody struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

// send performs one HTTP exchange against a target, attaching the
// correlation id as the idempotency key, and decodes the response with the
// supplied decoder (JSON or XML depending on the endpoint).
func send(ctx context.Context, client *http.Client, target, method, url, contentType string, body []byte, correlationID string, decode func([]byte, any) error, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if correlationID != "" {
		httpReq.Header.Set("Idempotency-Key", correlationID)
		httpReq.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody targetErrorBody
		if jsonErr := json.Unmarshal(respBody, &errBody); jsonErr != nil || errBody.Message == "" && errBody.Err == "" {
			return &TargetError{
				Target:     target,
				Code:       "http_error",
				Message:    string(respBody),
				StatusCode: resp.StatusCode,
			}
		}
		return &TargetError{
			Target:     target,
			Code:       errBody.Err,
			Message:    errBody.Message,
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if err := decode(respBody, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func decodeJSON(data []byte, out any) error { return json.Unmarshal(data, out) }
func decodeXML(data []byte, out any) error  { return xml.Unmarshal(data, out) }

// isRetryable classifies transport failures. Timeouts, connection errors and
// 5xx responses may succeed on a later attempt; downstream 4xx rejections
// will not.
func isRetryable(err error) bool {
	var targetErr *TargetError
	if errors.As(err, &targetErr) {
		return targetErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	// Anything else is transport-level (dial, reset, DNS).
	return true
}
