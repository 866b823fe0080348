// Package reqctx supplies request-scoped values (JWT claims, headers,
// cookies, environment) that operations use as predicate or column
// literals.
package reqctx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownAnnotation  = errors.New("unknown context annotation")
)

// Provider extracts values of one kind from a request. Annotation names the
// kind, e.g. "jwt" or "header".
type Provider interface {
	Annotation() string
	Extract(ctx context.Context, key string, r *http.Request) (interface{}, bool, error)
}

type cacheKey struct {
	annotation string
	key        string
}

type result struct {
	value interface{}
	ok    bool
	err   error
}

// RequestContext resolves values for one request. Every (annotation, key)
// pair is extracted at most once; later lookups reuse the first result.
// It is safe for concurrent use.
type RequestContext struct {
	req       *http.Request
	providers map[string]Provider

	mu    sync.Mutex
	cache map[cacheKey]result
}

// New returns a RequestContext for r. Later providers replace earlier ones
// with the same annotation.
func New(r *http.Request, providers ...Provider) *RequestContext {
	rc := &RequestContext{
		req:       r,
		providers: make(map[string]Provider, len(providers)),
		cache:     make(map[cacheKey]result),
	}
	for _, p := range providers {
		rc.providers[p.Annotation()] = p
	}
	return rc
}

// Value returns the value of key from the provider registered for
// annotation. A missing key yields (nil, false, nil); an annotation with no
// provider is an error.
func (rc *RequestContext) Value(ctx context.Context, annotation, key string) (interface{}, bool, error) {
	p, ok := rc.providers[annotation]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownAnnotation, annotation)
	}

	ck := cacheKey{annotation: annotation, key: key}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if r, ok := rc.cache[ck]; ok {
		return r.value, r.ok, r.err
	}
	v, found, err := p.Extract(ctx, key, rc.req)
	rc.cache[ck] = result{value: v, ok: found, err: err}
	return v, found, err
}

// HeaderProvider reads request headers. Keys are case-insensitive.
type HeaderProvider struct{}

func (HeaderProvider) Annotation() string { return "header" }

func (HeaderProvider) Extract(_ context.Context, key string, r *http.Request) (interface{}, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	values := r.Header.Values(key)
	if len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}

// CookieProvider reads request cookies.
type CookieProvider struct{}

func (CookieProvider) Annotation() string { return "cookie" }

func (CookieProvider) Extract(_ context.Context, key string, r *http.Request) (interface{}, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	c, err := r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c.Value, true, nil
}

var lookupEnv = os.LookupEnv

// EnvProvider reads process environment variables through Lookup, which
// defaults to os.LookupEnv when nil.
type EnvProvider struct {
	Lookup func(string) (string, bool)
}

func (EnvProvider) Annotation() string { return "env" }

func (p EnvProvider) Extract(_ context.Context, key string, _ *http.Request) (interface{}, bool, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = lookupEnv
	}
	v, ok := lookup(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}
