// Package endpoint resolves the resource addresses of a broadcast-ordering
// API from its base URL.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidEndpoint is returned when the configured base address is not a
// well-formed absolute URL.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

const (
	infoPath   = "info"
	ordersPath = "order"
)

// Endpoint is the immutable base address of a broadcast API.
type Endpoint struct {
	base *url.URL
}

// New parses base as an absolute URL. A missing trailing slash is added so
// that relative resources resolve below the base path rather than replacing
// its last segment.
func New(base string) (Endpoint, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidEndpoint, base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return Endpoint{base: u}, nil
}

// MustNew is like New but panics on error. It is meant for compile-time
// constants such as config.BlockstreamTestnet.
func MustNew(base string) Endpoint {
	e, err := New(base)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the base address.
func (e Endpoint) String() string {
	if e.base == nil {
		return ""
	}
	return e.base.String()
}

// Resolve joins rel onto the base address with RFC 3986 reference
// resolution.
func (e Endpoint) Resolve(rel string) (*url.URL, error) {
	if e.base == nil {
		return nil, fmt.Errorf("%w: endpoint not initialized", ErrInvalidEndpoint)
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", rel, err)
	}
	return e.base.ResolveReference(ref), nil
}

// Info is the address of the API's lightning node descriptor.
func (e Endpoint) Info() string {
	return e.mustResolve(infoPath)
}

// Orders is the order-collection address used to place bids.
func (e Endpoint) Orders() string {
	return e.mustResolve(ordersPath)
}

// Order is the address of a single order. The id is path-escaped.
func (e Endpoint) Order(uuid string) string {
	return e.mustResolve(ordersPath + "/" + url.PathEscape(uuid))
}

func (e Endpoint) mustResolve(rel string) string {
	u, err := e.Resolve(rel)
	if err != nil {
		panic(err)
	}
	return u.String()
}
