package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/services"
)

// APIError is a non-2xx response from the sync server. Status codes
// below 500 are permanent for the submitted batch and are not retried
// within a cycle.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// SyncAPI is the server boundary the reconciliation loop talks to.
type SyncAPI interface {
	Push(ctx context.Context, walletID uuid.UUID, deviceID string, events []*models.Event) (*services.PushResult, error)
	Pull(ctx context.Context, walletID uuid.UUID, sinceSeq int64) (*services.PullResult, error)
}

// HTTPSyncAPI implements SyncAPI over the /sync wire contract.
type HTTPSyncAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewHTTPSyncAPI(baseURL, token string, httpClient *http.Client) *HTTPSyncAPI {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSyncAPI{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

type pushBody struct {
	DeviceID string          `json:"deviceId"`
	WalletID uuid.UUID       `json:"walletId"`
	Events   []*models.Event `json:"events"`
}

func (c *HTTPSyncAPI) Push(ctx context.Context, walletID uuid.UUID, deviceID string, events []*models.Event) (*services.PushResult, error) {
	var out services.PushResult
	err := c.doJSON(ctx, http.MethodPost, "/sync/push", pushBody{
		DeviceID: deviceID,
		WalletID: walletID,
		Events:   events,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSyncAPI) Pull(ctx context.Context, walletID uuid.UUID, sinceSeq int64) (*services.PullResult, error) {
	q := url.Values{}
	q.Set("walletId", walletID.String())
	q.Set("sinceSeq", strconv.FormatInt(sinceSeq, 10))

	var out services.PullResult
	err := c.doJSON(ctx, http.MethodGet, "/sync/pull?"+q.Encode(), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSyncAPI) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	delay := c.baseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		// Client errors are final; the server already refused the batch.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *HTTPSyncAPI) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errBody); err == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
