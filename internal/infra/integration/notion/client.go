package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://api.notion.com"
	DefaultAPIVersion = "2022-06-28"
)

var ErrMissingCredentials = eris.New("notion: api key and database id are required")

// APIError is a non-2xx answer from Notion.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion api: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion api: status=%d message=%s", e.StatusCode, e.Message)
}

type Options struct {
	BaseURL    string
	APIKey     string
	DatabaseID string
	HTTPClient *http.Client
	APIVersion string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client talks to one Notion database. It is safe for concurrent use and
// reuses a single http.Client.
type Client struct {
	baseURL    string
	apiKey     string
	databaseID string
	http       *http.Client
	apiVersion string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	databaseID := strings.TrimSpace(opts.DatabaseID)
	if apiKey == "" || databaseID == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		databaseID: databaseID,
		http:       httpClient,
		apiVersion: apiVersion,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}, nil
}

func (c *Client) DatabaseID() string {
	return c.databaseID
}

func (c *Client) retrieveDatabase(ctx context.Context) (*databaseResponse, error) {
	var out databaseResponse
	if err := c.do(ctx, http.MethodGet, "/v1/databases/"+c.databaseID, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) queryDatabase(ctx context.Context, req queryRequest) (*queryResponse, error) {
	var out queryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// createPage is retried only on 429: a 5xx may still have created the
// page, and a second create would duplicate the lead.
func (c *Client) createPage(ctx context.Context, req createPageRequest) (*pageResponse, error) {
	var out pageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/pages", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, idempotent bool, out any) error {
	var bodyBytes []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "notion: encode request")
		}
		bodyBytes = b
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return eris.Wrap(err, "notion: build request")
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if idempotent && attempt < c.maxRetries && ctx.Err() == nil {
				zap.L().Debug("notion: transport error, retrying", zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return eris.Wrapf(err, "notion: %s %s", method, path)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return eris.Wrap(readErr, "notion: read response")
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return eris.Wrap(err, "notion: decode response")
			}
			return nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests ||
			(idempotent && resp.StatusCode >= 500 && resp.StatusCode <= 599)
		if retryable && attempt < c.maxRetries {
			zap.L().Debug("notion: transient status, retrying", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return parseAPIError(resp.StatusCode, respBody)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "LeadRelay/1.0")
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		if strings.TrimSpace(parsed.Message) != "" {
			apiErr.Message = parsed.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
