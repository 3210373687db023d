package printer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// MaxLogoBytes bounds a fetched logo.
const MaxLogoBytes = 2 << 20

// Logger receives fetch failures. Resolve never returns them.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// LogoResolver turns a logo reference into an embeddable data URI.
type LogoResolver struct {
	client *http.Client
	logger Logger

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group
}

// ResolverOption configures a LogoResolver.
type ResolverOption func(*LogoResolver)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *LogoResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithResolverLogger reports failed fetches.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *LogoResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewLogoResolver builds a resolver with an empty cache.
func NewLogoResolver(opts ...ResolverOption) *LogoResolver {
	r := &LogoResolver{
		client: http.DefaultClient,
		logger: nopLogger{},
		cache:  map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns ref as a data URI. Data URIs and empty refs come back
// unchanged; http(s) URLs are fetched once and cached. On any failure the
// original ref is returned.
func (r *LogoResolver) Resolve(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	if !isHTTP(ref) {
		return ref
	}
	r.mu.RLock()
	cached, ok := r.cache[ref]
	r.mu.RUnlock()
	if ok {
		return cached
	}
	value, err, _ := r.group.Do(ref, func() (any, error) {
		uri, err := r.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[ref] = uri
		r.mu.Unlock()
		return uri, nil
	})
	if err != nil {
		r.logger.Warn("logo fetch failed", "url", ref, "error", err)
		return ref
	}
	return value.(string)
}

// ResolveAll resolves refs concurrently, keeping their order.
func (r *LogoResolver) ResolveAll(ctx context.Context, refs []string) []string {
	out := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range refs {
		g.Go(func() error {
			out[i] = r.Resolve(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *LogoResolver) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxLogoBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxLogoBytes {
		return "", fmt.Errorf("logo larger than %d bytes", MaxLogoBytes)
	}
	kind := imageType(resp.Header.Get("Content-Type"), data)
	if kind == "" {
		return "", fmt.Errorf("not an image")
	}
	return "data:" + kind + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// imageType prefers the declared content type and falls back to sniffing.
func imageType(header string, data []byte) string {
	for _, candidate := range []string{header, http.DetectContentType(data)} {
		if parsed, _, err := mime.ParseMediaType(candidate); err == nil && strings.HasPrefix(parsed, "image/") {
			return parsed
		}
	}
	if strings.Contains(string(data[:min(len(data), 512)]), "<svg") {
		return "image/svg+xml"
	}
	return ""
}

func isHTTP(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
