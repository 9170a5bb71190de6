package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"time"

	// Page images come as jpeg, png, gif or webp depending on the source.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MinImageSize is the smallest payload accepted as a page image.
// Truncated responses are almost always smaller.
const MinImageSize = 64

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

// Fetcher retrieves single page images over HTTP. It performs exactly one
// retrieval per call and writes no files; retry policy lives with the caller.
type Fetcher struct {
	client    *http.Client
	userAgent string
	referer   string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithReferer sets a Referer header on every request. Some image hosts
// refuse requests without one.
func WithReferer(ref string) Option {
	return func(f *Fetcher) { f.referer = ref }
}

// NewFetcher creates a Fetcher with a pooled transport.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 32,
				MaxIdleConns:        64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one image with the given timeout and returns its bytes.
// Failures come back as *Error classified Transient, Permanent or
// InvalidContent. A payload that is not a decodable image is a failure
// even when the server answered 200.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{Kind: Permanent, URL: rawURL, Err: fmt.Errorf("malformed url")}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: Permanent, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts, resets and cancellations all land here.
		return nil, &Error{Kind: Transient, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: Transient, URL: rawURL, Err: fmt.Errorf("status %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Kind: Permanent, URL: rawURL, Err: fmt.Errorf("status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: Transient, URL: rawURL, Err: err}
	}

	if len(body) < MinImageSize {
		return nil, &Error{Kind: InvalidContent, URL: rawURL, Err: fmt.Errorf("payload too small (%d bytes)", len(body))}
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(body)); err != nil {
		return nil, &Error{Kind: InvalidContent, URL: rawURL, Err: fmt.Errorf("not a decodable image: %v", err)}
	}

	return body, nil
}

// Ext returns the canonical file extension for an image payload based on
// its magic bytes, defaulting to .jpg when the format is unknown.
func Ext(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ".jpg"
	}
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
