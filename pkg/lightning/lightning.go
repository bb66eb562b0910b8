// Package lightning drives a local Core Lightning node over its gRPC
// interface. The node's service definition is compiled at runtime from the
// embedded node.proto and invoked through the dynamic client in pkg/grpc.
package lightning

import (
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ionosphere-go/ionosphere/pkg/config"
	"github.com/ionosphere-go/ionosphere/pkg/grpc"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"go.uber.org/zap"
	ggrpc "google.golang.org/grpc"
)

//go:embed node.proto
var nodeProto string

// ErrPaymentIncomplete is returned by Pay when the node reports the payment
// as pending or failed instead of returning an error. A pending payment can
// still settle after this error is returned.
var ErrPaymentIncomplete = errors.New("payment not complete")

// CLN is a Core Lightning node reached over cln-grpc. It is safe for
// concurrent use.
type CLN struct {
	rpc         *grpc.Client
	callTimeout time.Duration
}

// Dial connects to the cln-grpc endpoint at addr. Extra options are passed to
// the gRPC client and may override transport credentials.
func Dial(addr string, opts ...ggrpc.DialOption) (*CLN, error) {
	rpc, err := grpc.NewClient(addr, map[string]string{"node.proto": nodeProto}, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial lightning node %s: %w", addr, err)
	}
	return &CLN{rpc: rpc}, nil
}

// DialConfig connects using the Lightning section of the configuration,
// with mutual TLS when certificates are configured. callTimeout bounds every
// node call; zero leaves calls bounded only by the caller's context.
func DialConfig(cfg config.Lightning, callTimeout time.Duration) (*CLN, error) {
	var opts []ggrpc.DialOption
	if cfg.MutualTLS() {
		creds, err := grpc.MutualTLS(cfg.CACert, cfg.ClientCert, cfg.ClientKey, "cln")
		if err != nil {
			return nil, err
		}
		opts = append(opts, creds)
	}
	node, err := Dial(cfg.GRPCAddr, opts...)
	if err != nil {
		return nil, err
	}
	node.callTimeout = callTimeout
	return node, nil
}

// Close releases the gRPC connection.
func (n *CLN) Close() error {
	return n.rpc.Close()
}

// Info is the local node's identity.
type Info struct {
	ID          string
	Alias       string
	Version     string
	BlockHeight uint32
	Network     string
	NumPeers    uint32
}

// GetInfo queries the local node.
func (n *CLN) GetInfo(ctx context.Context) (Info, error) {
	var resp struct {
		ID          []byte `json:"id"`
		Alias       string `json:"alias"`
		Version     string `json:"version"`
		BlockHeight uint32 `json:"blockheight"`
		Network     string `json:"network"`
		NumPeers    uint32 `json:"num_peers"`
	}
	if err := n.call(ctx, "Getinfo", struct{}{}, &resp); err != nil {
		return Info{}, err
	}
	return Info{
		ID:          hex.EncodeToString(resp.ID),
		Alias:       resp.Alias,
		Version:     resp.Version,
		BlockHeight: resp.BlockHeight,
		Network:     resp.Network,
		NumPeers:    resp.NumPeers,
	}, nil
}

// ConnectResult identifies the peer a connection was established with.
type ConnectResult struct {
	ID       string
	Outgoing bool
}

// Connect establishes a network link to nodeID. With a nil addr the node
// looks the peer up in its gossip. Connecting to an already connected peer
// succeeds without opening a second link.
func (n *CLN) Connect(ctx context.Context, nodeID string, addr *model.NodeAddress) (ConnectResult, error) {
	req := struct {
		ID   string  `json:"id"`
		Host *string `json:"host,omitempty"`
		Port *uint32 `json:"port,omitempty"`
	}{ID: nodeID}
	if addr != nil {
		host, port := addr.Address, uint32(addr.Port)
		req.Host, req.Port = &host, &port
	}

	var resp struct {
		ID        []byte `json:"id"`
		Direction string `json:"direction"`
	}
	if err := n.call(ctx, "ConnectPeer", req, &resp); err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{
		ID:       hex.EncodeToString(resp.ID),
		Outgoing: resp.Direction == "OUT",
	}, nil
}

// FundResult describes the funding transaction of a new channel.
type FundResult struct {
	TxID      string
	OutNum    uint32
	ChannelID string
}

// FundChannel opens a channel of the given capacity to an already connected
// peer. push optionally gifts part of the capacity to the peer.
func (n *CLN) FundChannel(ctx context.Context, nodeID string, capacity model.Sat, push *model.Msat) (FundResult, error) {
	id, err := hex.DecodeString(nodeID)
	if err != nil {
		return FundResult{}, fmt.Errorf("node id %q: %w", nodeID, err)
	}

	req := fundchannelRequest{ID: id}
	req.Amount.Amount = &amount{Msat: uint64(capacity.Msat())}
	if push != nil {
		req.PushMsat = &amount{Msat: uint64(*push)}
	}

	var resp struct {
		TxID      []byte `json:"txid"`
		OutNum    uint32 `json:"outnum"`
		ChannelID []byte `json:"channel_id"`
	}
	if err := n.call(ctx, "FundChannel", req, &resp); err != nil {
		return FundResult{}, err
	}
	return FundResult{
		TxID:      hex.EncodeToString(resp.TxID),
		OutNum:    resp.OutNum,
		ChannelID: hex.EncodeToString(resp.ChannelID),
	}, nil
}

// PayOptions tunes a payment. The zero value leaves every choice to the
// node: the invoice amount, no explicit fee cap, default risk factor and
// default retry duration.
type PayOptions struct {
	// Amount overrides the invoice amount; only valid for amountless invoices.
	Amount        *model.Msat
	Label         string
	RiskFactor    *float64
	MaxFeePercent *float64
	ExemptFee     *model.Msat
	MaxFee        *model.Msat
	RetryFor      time.Duration
	MaxDelay      *uint32
}

// Receipt is the proof of a completed payment.
type Receipt struct {
	PaymentHash string
	Preimage    string
	Amount      model.Msat
	AmountSent  model.Msat
	Parts       uint32
}

// Pay pays a BOLT11 invoice. A response whose status is not COMPLETE is
// reported as ErrPaymentIncomplete.
func (n *CLN) Pay(ctx context.Context, bolt11 string, opts PayOptions) (Receipt, error) {
	req := payRequest{
		Bolt11:        bolt11,
		RiskFactor:    opts.RiskFactor,
		MaxFeePercent: opts.MaxFeePercent,
		MaxDelay:      opts.MaxDelay,
	}
	if opts.Label != "" {
		req.Label = &opts.Label
	}
	if opts.RetryFor > 0 {
		secs := uint32(opts.RetryFor / time.Second)
		req.RetryFor = &secs
	}
	req.AmountMsat = msatPtr(opts.Amount)
	req.ExemptFee = msatPtr(opts.ExemptFee)
	req.MaxFee = msatPtr(opts.MaxFee)

	var resp struct {
		Preimage    []byte `json:"payment_preimage"`
		PaymentHash []byte `json:"payment_hash"`
		Parts       uint32 `json:"parts"`
		Amount      amount `json:"amount_msat"`
		AmountSent  amount `json:"amount_sent_msat"`
		Status      string `json:"status"`
	}
	if err := n.call(ctx, "Pay", req, &resp); err != nil {
		return Receipt{}, err
	}
	if resp.Status != "COMPLETE" {
		return Receipt{}, fmt.Errorf("%w: status %s", ErrPaymentIncomplete, resp.Status)
	}
	return Receipt{
		PaymentHash: hex.EncodeToString(resp.PaymentHash),
		Preimage:    hex.EncodeToString(resp.Preimage),
		Amount:      model.Msat(resp.Amount.Msat),
		AmountSent:  model.Msat(resp.AmountSent.Msat),
		Parts:       resp.Parts,
	}, nil
}

func (n *CLN) call(ctx context.Context, method string, req, resp any) error {
	if n.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.callTimeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	out, err := n.rpc.CallWithJSON(ctx, method, body)
	if err != nil {
		zap.L().Debug("lightning call failed", zap.String("method", method), zap.Error(err))
		return fmt.Errorf("lightning %s: %w", method, err)
	}
	if err := json.Unmarshal(out, resp); err != nil {
		return fmt.Errorf("lightning %s: decode response: %w", method, err)
	}
	return nil
}
