package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/jpillora/backoff"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const apiVersion = "/api/v1"

// maxErrorBodySize bounds how much of an error response is kept.
const maxErrorBodySize = 4096

// APIError is a non-retryable error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d (%s)", e.StatusCode, e.Message)
}

// IsNotFound returns true if err is a 404 response from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *restClient) getPath(path string) string {
	return fmt.Sprintf("%s%s/%s", c.serverURL, apiVersion, strings.TrimPrefix(path, "/"))
}

func (c *restClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r, err := http.NewRequestWithContext(ctx, method, c.getPath(path), reader)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	c.mutex.RLock()
	token := c.token
	c.mutex.RUnlock()
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	r.Header.Set("Accept", "application/json")
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r, nil
}

func (c *restClient) doRequest(r *http.Request) (*http.Response, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.httpClient == nil {
		return nil, errors.New("client is closed")
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp == nil {
		return nil, errors.New("received nil response")
	}
	return resp, nil
}

// retryRequest sends the request, retrying transport errors and server
// errors with backoff. Client errors are returned immediately. The caller
// must close the body of the returned response.
func (c *restClient) retryRequest(ctx context.Context, method, path string, data any) (*http.Response, error) {
	var out []byte
	if data != nil {
		var err error
		if out, err = json.Marshal(data); err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}

	var lastErr error
	timer := time.NewTimer(0)
	defer timer.Stop()
	backoff := c.getBackoff()
	for i := 1; i <= c.maxAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "request canceled")
		case <-timer.C:
			r, err := c.newRequest(ctx, method, path, out)
			if err != nil {
				return nil, err
			}

			resp, err := c.doRequest(r)
			switch {
			case err != nil:
				lastErr = err
				grip.Warning(message.WrapError(err, message.Fields{
					"message": "error sending request to API server",
					"attempt": i,
					"max":     c.maxAttempts,
					"method":  method,
					"path":    path,
				}))
			case resp.StatusCode < 300:
				return resp, nil
			case resp.StatusCode < 500:
				defer resp.Body.Close()
				return nil, readAPIError(resp)
			default:
				lastErr = readAPIError(resp)
				resp.Body.Close()
				grip.Warning(message.WrapError(lastErr, message.Fields{
					"message": "server error from API server",
					"attempt": i,
					"max":     c.maxAttempts,
					"method":  method,
					"path":    path,
				}))
			}

			timer.Reset(backoff.Duration())
		}
	}
	return nil, errors.Wrapf(lastErr, "failed to make request after %d attempts", c.maxAttempts)
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	errResp := gimlet.ErrorResponse{}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		apiErr.Message = errResp.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func (c *restClient) getBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    c.timeoutStart,
		Max:    c.timeoutMax,
		Factor: 2,
		Jitter: true,
	}
}

// doJSON sends the request and decodes the response body into out, when out
// is non-nil.
func (c *restClient) doJSON(ctx context.Context, method, path string, data, out any) error {
	resp, err := c.retryRequest(ctx, method, path, data)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decoding response from %s %s", method, path)
}
