package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/mpnp/pkg/buildinfo"
	"github.com/matzehuels/mpnp/pkg/cache"
	"github.com/matzehuels/mpnp/pkg/observability"
)

const (
	// DefaultURL is the public npm registry.
	DefaultURL = "https://registry.npmjs.org"

	httpTimeout = 30 * time.Second

	// abbreviated metadata: versions and dist-tags without readmes
	acceptMetadata = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8"
)

var (
	// ErrNotFound is returned when a package or version doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Metadata is the subset of a registry document needed for resolution.
type Metadata struct {
	Name     string            `json:"name"`
	Versions []string          `json:"versions"`
	DistTags map[string]string `json:"dist_tags,omitempty"`
}

// Client is an HTTP client for one registry.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
	group   singleflight.Group
}

// NewClient creates a Client for baseURL. Metadata is cached in c for ttl;
// pass a nil cache to disable caching.
func NewClient(baseURL string, c cache.Cache, ttl time.Duration) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeout},
		cache:   c,
		ttl:     ttl,
		headers: map[string]string{"User-Agent": buildinfo.UserAgent()},
	}
}

// SetHeader adds a header to every request (e.g. an Authorization token).
func (c *Client) SetHeader(key, value string) {
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	c.headers[key] = value
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// BaseURL returns the registry URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Metadata returns the published versions and dist-tags of name.
// Concurrent calls for the same name share one request. If refresh is true
// the cache is bypassed (the fresh answer is still stored).
func (c *Client) Metadata(ctx context.Context, name string, refresh bool) (*Metadata, error) {
	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.metadata(ctx, name, refresh)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Metadata), nil
}

func (c *Client) metadata(ctx context.Context, name string, refresh bool) (*Metadata, error) {
	key := cache.Key("metadata", c.baseURL, name)

	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			var m Metadata
			if err := json.Unmarshal(data, &m); err == nil {
				observability.Cache().OnCacheHit(ctx, "metadata")
				return &m, nil
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "metadata")

	var doc document
	err := cache.RetryWithBackoff(ctx, func() error {
		return c.getJSON(ctx, c.metadataURL(name), &doc)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: package %s", err, name)
		}
		return nil, err
	}

	m := &Metadata{Name: name, DistTags: doc.DistTags}
	for v := range doc.Versions {
		m.Versions = append(m.Versions, v)
	}
	slices.Sort(m.Versions)

	if data, err := json.Marshal(m); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "metadata", len(data))
		}
	}
	return m, nil
}

// ArchiveURL returns the tarball URL of name@version.
func (c *Client) ArchiveURL(name, version string) string {
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", c.baseURL, name, basename(name), version)
}

// Download writes the archive of name@version to dest. The file is written
// to a temporary sibling and renamed into place, so dest is either absent or
// complete.
func (c *Client) Download(ctx context.Context, name, version, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return cache.RetryWithBackoff(ctx, func() error {
		return c.download(ctx, c.ArchiveURL(name, version), dest)
	})
}

func (c *Client) download(ctx context.Context, rawURL, dest string) error {
	body, err := c.do(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := dest + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (c *Client) metadataURL(name string) string {
	// scoped names keep the @ but escape the slash: @scope%2Fname
	return c.baseURL + "/" + url.PathEscape(name)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.do(ctx, rawURL, map[string]string{"Accept": acceptMetadata})
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// basename strips the scope of a package name: @scope/name -> name.
func basename(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

type document struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}
