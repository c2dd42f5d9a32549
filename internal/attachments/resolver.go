// Package attachments turns uploaded files or remote image URLs into stored
// receipts addressed by an opaque token.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("attachment not found")
	ErrTooLarge   = errors.New("attachment too large")
	ErrInvalidURL = errors.New("invalid attachment url")
	ErrFetch      = errors.New("attachment fetch failed")
)

// Source is where an attachment payload comes from. Reader wins over URL
// when both are set.
type Source struct {
	Reader io.Reader
	URL    string
}

// Empty reports whether the source carries no attachment at all.
func (s Source) Empty() bool {
	return s.Reader == nil && strings.TrimSpace(s.URL) == ""
}

// Config tunes a Resolver.
type Config struct {
	MaxBytes     int64         // 0 disables the limit
	FetchTimeout time.Duration // applies to remote URLs
	Client       *http.Client  // defaults to http.DefaultClient
}

// Resolver stores attachment payloads and hands back their tokens.
type Resolver struct {
	store    BlobStore
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
}

// NewResolver creates a Resolver writing to store.
func NewResolver(store BlobStore, cfg Config) *Resolver {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		store:    store,
		client:   client,
		maxBytes: cfg.MaxBytes,
		timeout:  cfg.FetchTimeout,
	}
}

// Store persists the payload of src under a fresh token and returns it.
// An empty source stores nothing and returns an empty token.
func (r *Resolver) Store(ctx context.Context, src Source) (string, error) {
	if src.Empty() {
		return "", nil
	}

	body := src.Reader
	if body == nil {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		rc, err := r.fetch(ctx, strings.TrimSpace(src.URL))
		if err != nil {
			return "", err
		}
		defer rc.Close()
		body = rc
	}

	token := uuid.NewString()
	if err := r.store.Put(ctx, token, r.limit(body)); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return token, nil
}

// Open returns the payload stored under token.
func (r *Resolver) Open(ctx context.Context, token string) (io.ReadCloser, error) {
	return r.store.Get(ctx, token)
}

func (r *Resolver) fetch(ctx context.Context, raw string) (io.ReadCloser, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	if r.maxBytes > 0 && resp.ContentLength > r.maxBytes {
		resp.Body.Close()
		return nil, ErrTooLarge
	}
	return resp.Body, nil
}

func (r *Resolver) limit(body io.Reader) io.Reader {
	if r.maxBytes <= 0 {
		return body
	}
	return &capReader{r: body, max: r.maxBytes}
}

// capReader fails with ErrTooLarge once more than max bytes were read.
type capReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, ErrTooLarge
	}
	return n, err
}
