// Package extraction derives a brand context from a domain's public
// website: fetch the homepage, pull the descriptive text, and fall
// back to a headless browser for JavaScript-rendered sites.
package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; InsightAgent/1.0)"

// maxBodyBytes caps how much of a homepage we read.
const maxBodyBytes = 2 << 20

// FetchError represents an error during URL fetching.
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NormalizeURL ensures a scheme is present and the URL parses.
func NormalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", &FetchError{URL: raw, Message: "empty URL"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{URL: raw, Message: "failed to parse URL", Cause: err}
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return "", &FetchError{URL: raw, Message: "failed to parse URL", Cause: err}
		}
	}
	if parsed.Host == "" {
		return "", &FetchError{URL: raw, Message: "URL has no host"}
	}
	return parsed.String(), nil
}

// FetchHTML retrieves the raw HTML for a page.
func FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := &http.Client{Timeout: DefaultTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: pageURL, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "failed to read body", Cause: err}
	}
	return string(body), nil
}
