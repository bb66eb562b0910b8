package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ionosphere-go/ionosphere/internal/testutil/fakeapi"
	"github.com/ionosphere-go/ionosphere/pkg/config"
	"github.com/ionosphere-go/ionosphere/pkg/lightning"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"github.com/ionosphere-go/ionosphere/pkg/satellite"
)

const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type stubNode struct {
	network string
	infoErr error
	paid    []string
	closed  bool
}

func (n *stubNode) Connect(_ context.Context, id string, _ *model.NodeAddress) (lightning.ConnectResult, error) {
	return lightning.ConnectResult{ID: id}, nil
}

func (n *stubNode) FundChannel(context.Context, string, model.Sat, *model.Msat) (lightning.FundResult, error) {
	return lightning.FundResult{}, nil
}

func (n *stubNode) Pay(_ context.Context, bolt11 string, _ lightning.PayOptions) (lightning.Receipt, error) {
	n.paid = append(n.paid, bolt11)
	return lightning.Receipt{}, nil
}

func (n *stubNode) GetInfo(context.Context) (lightning.Info, error) {
	if n.infoErr != nil {
		return lightning.Info{}, n.infoErr
	}
	return lightning.Info{ID: "02aa", Network: n.network}, nil
}

func (n *stubNode) Close() error {
	n.closed = true
	return nil
}

func startHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if strings.Contains(msg, "operation not permitted") {
				t.Skip("network operations not permitted in sandbox")
			}
			panic(r)
		}
	}()
	return httptest.NewServer(handler)
}

func startAPI(t *testing.T) *fakeapi.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			if strings.Contains(fmt.Sprint(r), "operation not permitted") {
				t.Skip("network operations not permitted in sandbox")
			}
			panic(r)
		}
	}()
	api := fakeapi.Start()
	t.Cleanup(api.Close)
	return api
}

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		APIEndpoint: apiURL,
		Lightning:   config.Lightning{GRPCAddr: "127.0.0.1:9736"},
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := New(&config.Config{}); err == nil {
		t.Fatal("expected error for missing lightning address")
	}
	if _, err := New(&config.Config{APIEndpoint: "relative/path", Lightning: config.Lightning{GRPCAddr: "x:1"}}); err == nil {
		t.Fatal("expected error for relative endpoint")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := &config.Config{Lightning: config.Lightning{GRPCAddr: "127.0.0.1:9736"}}
	c, err := New(cfg, WithNode(&stubNode{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Endpoint().String() != config.BlockstreamTestnet {
		t.Fatalf("endpoint = %s", c.Endpoint())
	}
	if c.Config().Timeouts.Upload != 10*time.Minute || c.Config().Timeouts.HTTP != 30*time.Second {
		t.Fatalf("timeouts not defaulted: %+v", c.Config().Timeouts)
	}
}

func TestNew_DialsLightningLazily(t *testing.T) {
	c, err := New(testConfig("https://api.example/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Node().(*lightning.CLN); !ok {
		t.Fatalf("node = %T; want *lightning.CLN", c.Node())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestClose_LeavesInjectedNodeOpen(t *testing.T) {
	node := &stubNode{}
	c, err := New(testConfig("https://api.example/"), WithNode(node))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = c.Close()
	if node.closed {
		t.Fatal("injected node must stay open")
	}
}

func TestPlaceOrderFromRef_LocalFile(t *testing.T) {
	api := startAPI(t)
	node := &stubNode{}
	c, err := New(testConfig(api.URL), WithNode(node))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}
	order, err := c.PlaceOrderFromRef(context.Background(), path, 100_000)
	if err != nil {
		t.Fatalf("PlaceOrderFromRef: %v", err)
	}
	stored, ok := api.Order(order.UUID)
	if !ok || stored.FileName != "note.txt" {
		t.Fatalf("unexpected order: %+v", stored)
	}
	if len(node.paid) != 1 {
		t.Fatal("expected one payment")
	}
}

func TestPlaceOrderFromRef_IPFS(t *testing.T) {
	api := startAPI(t)
	ipfs := startHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/cat" || r.URL.Query().Get("arg") != testCID {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "content addressed")
	}))
	defer ipfs.Close()

	cfg := testConfig(api.URL)
	cfg.IpfsURL = ipfs.URL
	c, err := New(cfg, WithNode(&stubNode{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order, err := c.PlaceOrderFromRef(context.Background(), "ipfs://"+testCID, 100_000)
	if err != nil {
		t.Fatalf("PlaceOrderFromRef: %v", err)
	}
	stored, _ := api.Order(order.UUID)
	if stored.FileName != testCID || stored.Size != int64(len("content addressed")) {
		t.Fatalf("unexpected upload: %+v", stored)
	}
}

func TestPlaceOrderFromRef_BadRef(t *testing.T) {
	api := startAPI(t)
	c, err := New(testConfig(api.URL), WithNode(&stubNode{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.PlaceOrderFromRef(context.Background(), "filecoin://not-a-cid", 100_000)
	if !errors.Is(err, satellite.ErrInvalidInput) {
		t.Fatalf("error = %v; want invalid input", err)
	}
	if api.Posts() != 0 {
		t.Fatal("no order request expected")
	}
}

func TestHealthcheck(t *testing.T) {
	api := startAPI(t)

	t.Run("healthy", func(t *testing.T) {
		c, _ := New(testConfig(api.URL), WithNode(&stubNode{network: "testnet"}))
		h := c.Healthcheck(context.Background())
		if !h.Healthy() {
			t.Fatalf("expected healthy: %+v", h)
		}
		if h.Remote.ID != api.Node.ID || h.Local.ID != "02aa" {
			t.Fatalf("unexpected report: %+v", h)
		}
	})

	t.Run("network mismatch", func(t *testing.T) {
		c, _ := New(testConfig(api.URL), WithNode(&stubNode{network: "bitcoin"}))
		h := c.Healthcheck(context.Background())
		if h.Healthy() || h.NetworkMismatch() == nil {
			t.Fatalf("expected mismatch: %+v", h)
		}
	})

	t.Run("local node down", func(t *testing.T) {
		c, _ := New(testConfig(api.URL), WithNode(&stubNode{infoErr: errors.New("connection refused")}))
		h := c.Healthcheck(context.Background())
		if h.Healthy() || h.LocalErr == nil || h.RemoteErr != nil {
			t.Fatalf("unexpected report: %+v", h)
		}
	})
}
