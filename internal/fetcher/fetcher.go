package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// ErrFetch wraps any failure to retrieve the source page.
var ErrFetch = errors.New("fetch error")

const defaultMaxContentSize = 10 << 20

// Fetcher retrieves a single HTML page.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxContentSize int64
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:         &http.Client{Timeout: timeout},
		userAgent:      userAgent,
		maxContentSize: defaultMaxContentSize,
	}
}

// WithMaxContentSize overrides the body size cap.
func (f *Fetcher) WithMaxContentSize(n int64) *Fetcher {
	f.maxContentSize = n
	return f
}

// Fetch GETs rawURL and returns the body decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url %q: %v", ErrFetch, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrFetch, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: HTTP %d from %s", ErrFetch, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(body)) > f.maxContentSize {
		return "", fmt.Errorf("%w: content too large (exceeds %d bytes)", ErrFetch, f.maxContentSize)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty body from %s", ErrFetch, rawURL)
	}

	html, err := decode(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrFetch, err)
	}

	log.Info().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Fetched source page")
	return html, nil
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return string(body), nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
