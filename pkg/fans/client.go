// Package fans implements the stateful-unlock driver for JustForFans.
// Listings expose photo URLs directly but hide video URLs behind a
// playlist-based reveal protocol that mutates account state; the driver
// owns the full create/populate/read/delete cycle.
package fans

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
)

// BaseURL is the site root; every ajax endpoint hangs off it.
const BaseURL = "https://justfor.fans"

// Client is an authenticated JustForFans HTTP client. Endpoints answer
// with HTML fragments or bare strings rather than JSON, so the primitive
// is GetText.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	userHash   string
	logger     logger.Logger
}

// NewClient builds a client from a raw cookie header. The UserHash4 cookie
// is the session token every ajax call must repeat as a query or form
// parameter; its absence is an immediate auth error.
func NewClient(cookieHeader, userAgent string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	userHash := ""
	for _, item := range strings.Split(cookieHeader, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(item), "=")
		if found && name == "UserHash4" {
			userHash = value
		}
	}
	if userHash == "" {
		return nil, errs.New(errs.ErrorTypeAuth, "cookie header is missing the UserHash4 token")
	}

	headers := map[string]string{
		"Cookie":     cookieHeader,
		"User-Agent": userAgent,
		"Accept":     "*/*",
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    BaseURL,
		userHash:   userHash,
		logger:     log,
	}, nil
}

// UserHash returns the session token extracted from the cookies.
func (c *Client) UserHash() string {
	return c.userHash
}

// GetText performs an authenticated GET and returns the response body.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	return c.do(req)
}

// formResponse is the JSON envelope the mutating playlist endpoint answers
// with.
type formResponse struct {
	Ok     bool   `json:"ok"`
	Status int    `json:"status"`
	Text   string `json:"text"`
}

// PostForm performs an authenticated form POST and decodes the JSON
// envelope.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (formResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return formResponse{}, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	body, err := c.do(req)
	if err != nil {
		return formResponse{}, err
	}

	var response formResponse
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		return formResponse{}, errs.Wrap(errs.ErrorTypeParsing, "failed to parse form response", err)
	}
	return response, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return "", req.Context().Err()
		}
		return "", &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Cause:   err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := c.checkStatus(resp.StatusCode); err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) checkStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication rejected; cookies may be expired",
			Code:    statusCode,
		}
	case statusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: statusCode}
	case statusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: statusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", statusCode),
			Code:    statusCode,
		}
	}
}
