// Package x implements the stateless-credential driver for the X GraphQL
// timeline API. Every request carries the stored cookie header; no
// cross-request session state exists.
package x

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
)

// bearerToken is the fixed public web-client token; authentication comes
// from the account cookies.
const bearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

// Client is an authenticated X GraphQL API client.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient builds a client from a raw cookie header ("k=v; k2=v2"). The
// ct0 cookie doubles as the CSRF token header; its absence is an immediate
// auth error since no request can succeed without it.
func NewClient(cookieHeader, userAgent string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	cookies := parseCookieHeader(cookieHeader)
	csrf, ok := cookies["ct0"]
	if !ok || csrf == "" {
		return nil, errs.New(errs.ErrorTypeAuth, "cookie header is missing the ct0 token")
	}

	headers := map[string]string{
		"Cookie":                    cookieHeader,
		"Authorization":             "Bearer " + bearerToken,
		"X-Csrf-Token":              csrf,
		"X-Twitter-Active-User":     "yes",
		"X-Twitter-Auth-Type":       "OAuth2Session",
		"X-Twitter-Client-Language": cookies["lang"],
		"User-Agent":                userAgent,
		"Accept":                    "*/*",
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    BaseURL,
		logger:     log,
	}, nil
}

func parseCookieHeader(header string) map[string]string {
	cookies := make(map[string]string)
	for _, item := range strings.Split(header, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, value, found := strings.Cut(item, "=")
		if !found {
			continue
		}
		cookies[name] = value
	}
	return cookies
}

// GetJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Cause:   err,
		}
	}

	if err := c.checkResponse(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Cause:   err,
		}
	}

	return nil
}

// checkResponse classifies a non-OK response. A markup body instead of JSON
// is the bot-mitigation interstitial; retrying cannot clear it, so it is
// classified with the other auth failures.
func (c *Client) checkResponse(statusCode int, body []byte) error {
	if isChallengePage(body) {
		c.logger.ErrorWithFields("bot challenge page detected", map[string]interface{}{
			"status": statusCode,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "received a bot challenge page instead of an API response",
			Code:    statusCode,
		}
	}

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
	case statusCode >= 400:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", statusCode),
			Code:    statusCode,
		}
	}
	return nil
}

func isChallengePage(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "challenge") || strings.Contains(lower, "javascript is disabled")
}
