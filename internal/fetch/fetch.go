// Package fetch reads resources (network bundles, wasm modules) from either a
// local path or an http(s) URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"a9d/internal/common/fsutil"
)

// maxResourceBytes caps a single fetched resource.
const maxResourceBytes = 512 << 20

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Code)
}

// IsNotFound reports whether err means the resource does not exist
// (missing file or HTTP 404).
func IsNotFound(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Fetcher loads raw bytes for a resource reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Client is the default Fetcher. The zero value is not usable; use New.
type Client struct {
	httpClient *http.Client
}

// New constructs a Client. connectTimeout bounds dialing only; request
// deadlines come from the caller's context.
func New(connectTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{httpClient: &http.Client{Transport: tr}}
}

// IsURL reports whether ref is an http(s) URL.
func IsURL(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Join appends name to a base directory or base URL.
func Join(base, name string) string {
	if IsURL(base) {
		u, err := url.Parse(base)
		if err != nil {
			return strings.TrimRight(base, "/") + "/" + name
		}
		u.Path = path.Join(u.Path, name)
		return u.String()
	}
	return filepath.Join(base, name)
}

// Fetch returns the bytes behind ref.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("fetch: empty resource path")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsURL(ref) {
		return c.fetchURL(ctx, ref)
	}
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return b, nil
}

func (c *Client) fetchURL(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: ref, Code: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", ref, err)
	}
	if len(b) > maxResourceBytes {
		return nil, fmt.Errorf("fetch %s: resource exceeds %d bytes", ref, maxResourceBytes)
	}
	return b, nil
}
