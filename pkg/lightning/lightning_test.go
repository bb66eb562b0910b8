package lightning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ionosphere-go/ionosphere/internal/testutil/grpcbuf"
	"github.com/ionosphere-go/ionosphere/pkg/grpc"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const peerID = "032c6ba19a2141c5fee6ac8b6ff6cf24456fd4e8e206716a39af3300876c3a4835"

// peerIDBase64 is peerID as protojson encodes bytes.
const peerIDBase64 = "AyxroZohQcX+5qyLb/bPJEVv1OjiBnFqOa8zAIdsOkg1"

func startNode(t *testing.T, handlers map[string]grpcbuf.Handler) (*CLN, *grpcbuf.Server) {
	t.Helper()
	files, err := grpc.Compile(map[string]string{"node.proto": nodeProto})
	if err != nil {
		t.Fatalf("compile node.proto: %v", err)
	}
	srv := grpcbuf.StartServer(files, handlers)
	t.Cleanup(srv.Stop)

	node, err := Dial("passthrough:///bufnet", srv.DialOptions()...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = node.Close() })
	return node, srv
}

func decode(t *testing.T, req []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(req, &m); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return m
}

func TestGetInfo(t *testing.T) {
	node, _ := startNode(t, map[string]grpcbuf.Handler{
		"Getinfo": func(context.Context, []byte) ([]byte, error) {
			return []byte(`{"id":"` + peerIDBase64 + `","alias":"local","version":"v24.02","blockheight":2541932,"network":"testnet","num_peers":3}`), nil
		},
	})

	info, err := node.GetInfo(context.Background())
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.ID != peerID {
		t.Fatalf("ID = %s", info.ID)
	}
	if info.Network != "testnet" || info.BlockHeight != 2541932 || info.NumPeers != 3 || info.Alias != "local" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestConnect(t *testing.T) {
	var got map[string]any
	node, _ := startNode(t, map[string]grpcbuf.Handler{
		"ConnectPeer": func(_ context.Context, req []byte) ([]byte, error) {
			got = decode(t, req)
			return []byte(`{"id":"` + peerIDBase64 + `","direction":"OUT"}`), nil
		},
	})

	t.Run("with address", func(t *testing.T) {
		res, err := node.Connect(context.Background(), peerID, &model.NodeAddress{Type: "ipv4", Address: "18.214.251.158", Port: 9735})
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if res.ID != peerID || !res.Outgoing {
			t.Fatalf("unexpected result: %+v", res)
		}
		if got["id"] != peerID || got["host"] != "18.214.251.158" || got["port"] != float64(9735) {
			t.Fatalf("unexpected request: %v", got)
		}
	})

	t.Run("id only", func(t *testing.T) {
		if _, err := node.Connect(context.Background(), peerID, nil); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if _, ok := got["host"]; ok {
			t.Fatalf("host should be omitted: %v", got)
		}
		if _, ok := got["port"]; ok {
			t.Fatalf("port should be omitted: %v", got)
		}
	})
}

func TestFundChannel(t *testing.T) {
	var got map[string]any
	node, _ := startNode(t, map[string]grpcbuf.Handler{
		"FundChannel": func(_ context.Context, req []byte) ([]byte, error) {
			got = decode(t, req)
			return []byte(`{"txid":"AAEC","outnum":1,"channel_id":"/w=="}`), nil
		},
	})

	res, err := node.FundChannel(context.Background(), peerID, 1_000_000, nil)
	if err != nil {
		t.Fatalf("FundChannel: %v", err)
	}
	if res.TxID != "000102" || res.OutNum != 1 || res.ChannelID != "ff" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got["id"] != peerIDBase64 {
		t.Fatalf("id = %v", got["id"])
	}
	amt := got["amount"].(map[string]any)["amount"].(map[string]any)
	if amt["msat"] != "1000000000" {
		t.Fatalf("amount = %v", amt)
	}
	if _, ok := got["push_msat"]; ok {
		t.Fatalf("push_msat should be unset: %v", got)
	}
}

func TestFundChannel_BadNodeID(t *testing.T) {
	node, srv := startNode(t, map[string]grpcbuf.Handler{})
	if _, err := node.FundChannel(context.Background(), "zz", 1, nil); err == nil {
		t.Fatal("expected error for non-hex node id")
	}
	if len(srv.Calls()) != 0 {
		t.Fatal("no RPC should be made for an invalid id")
	}
}

func TestPay(t *testing.T) {
	var got map[string]any
	payStatus := "COMPLETE"
	node, _ := startNode(t, map[string]grpcbuf.Handler{
		"Pay": func(_ context.Context, req []byte) ([]byte, error) {
			got = decode(t, req)
			return []byte(`{"payment_preimage":"AQ==","payment_hash":"Ag==","parts":1,` +
				`"amount_msat":{"msat":"100000"},"amount_sent_msat":{"msat":"100001"},"status":"` + payStatus + `"}`), nil
		},
	})

	t.Run("defaults leave options unset", func(t *testing.T) {
		r, err := node.Pay(context.Background(), "lntb1u1p", PayOptions{})
		if err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if r.Amount != 100_000 || r.AmountSent != 100_001 || r.Preimage != "01" || r.PaymentHash != "02" {
			t.Fatalf("unexpected receipt: %+v", r)
		}
		if len(got) != 1 || got["bolt11"] != "lntb1u1p" {
			t.Fatalf("expected only bolt11 in request, got %v", got)
		}
	})

	t.Run("explicit options", func(t *testing.T) {
		risk := 5.0
		fee := model.Msat(2000)
		if _, err := node.Pay(context.Background(), "lntb1u1p", PayOptions{
			RiskFactor: &risk,
			MaxFee:     &fee,
			RetryFor:   90 * time.Second,
			Label:      "bid",
		}); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if got["riskfactor"] != 5.0 || got["retry_for"] != float64(90) || got["label"] != "bid" {
			t.Fatalf("unexpected request: %v", got)
		}
		if got["maxfee"].(map[string]any)["msat"] != "2000" {
			t.Fatalf("maxfee = %v", got["maxfee"])
		}
	})

	t.Run("pending is not success", func(t *testing.T) {
		payStatus = "PENDING"
		defer func() { payStatus = "COMPLETE" }()
		if _, err := node.Pay(context.Background(), "lntb1u1p", PayOptions{}); !errors.Is(err, ErrPaymentIncomplete) {
			t.Fatalf("error = %v; want ErrPaymentIncomplete", err)
		}
	})
}

func TestPay_NodeError(t *testing.T) {
	node, _ := startNode(t, map[string]grpcbuf.Handler{
		"Pay": func(context.Context, []byte) ([]byte, error) {
			return nil, status.Error(codes.FailedPrecondition, "Ran out of routes to try")
		},
	})
	_, err := node.Pay(context.Background(), "lntb1u1p", PayOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("status not preserved: %v", err)
	}
}
