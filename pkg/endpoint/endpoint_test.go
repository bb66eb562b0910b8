package endpoint

import (
	"errors"
	"testing"
)

func TestNew_InvalidEndpoint(t *testing.T) {
	for _, base := range []string{"", "relative/path/", "https://", "::bad"} {
		if _, err := New(base); !errors.Is(err, ErrInvalidEndpoint) {
			t.Fatalf("New(%q) error = %v; want ErrInvalidEndpoint", base, err)
		}
	}
}

func TestEndpointResources(t *testing.T) {
	tests := []struct {
		base  string
		info  string
		order string
		byID  string
	}{
		{
			base:  "https://api.blockstream.space/testnet/",
			info:  "https://api.blockstream.space/testnet/info",
			order: "https://api.blockstream.space/testnet/order",
			byID:  "https://api.blockstream.space/testnet/order/409348bc-6af0-4999-b715-4136753979df",
		},
		{
			// Missing trailing slash is normalized instead of dropping "api".
			base:  "http://127.0.0.1:9292/api",
			info:  "http://127.0.0.1:9292/api/info",
			order: "http://127.0.0.1:9292/api/order",
			byID:  "http://127.0.0.1:9292/api/order/409348bc-6af0-4999-b715-4136753979df",
		},
		{
			base:  "http://localhost:9292",
			info:  "http://localhost:9292/info",
			order: "http://localhost:9292/order",
			byID:  "http://localhost:9292/order/409348bc-6af0-4999-b715-4136753979df",
		},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			e, err := New(tt.base)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := e.Info(); got != tt.info {
				t.Fatalf("Info = %s; want %s", got, tt.info)
			}
			if got := e.Orders(); got != tt.order {
				t.Fatalf("Orders = %s; want %s", got, tt.order)
			}
			if got := e.Order("409348bc-6af0-4999-b715-4136753979df"); got != tt.byID {
				t.Fatalf("Order = %s; want %s", got, tt.byID)
			}
		})
	}
}

func TestResolve_ReplacesAfterLastSlash(t *testing.T) {
	e := MustNew("https://example.org/a/b/")
	u, err := e.Resolve("../c")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.String() != "https://example.org/a/c" {
		t.Fatalf("Resolve = %s", u)
	}
}

func TestOrder_EscapesID(t *testing.T) {
	e := MustNew("https://example.org/api/")
	if got := e.Order("a/b"); got != "https://example.org/api/order/a%2Fb" {
		t.Fatalf("Order = %s", got)
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustNew("not a url")
}
