// Package satellite orders file broadcasts from a satellite data-link API
// and pays for them over Lightning.
//
// A Client talks to two collaborators: the broadcast-ordering HTTP API and
// the caller's own payment node. Placing an order uploads the file with a
// bid, checks the returned invoice against the bid and pays it. An order
// whose invoice is not paid is cancelled before the failure is reported, so
// a returned model.Order always describes a paid bid.
package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ionosphere-go/ionosphere/pkg/endpoint"
	"github.com/ionosphere-go/ionosphere/pkg/lightning"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"go.uber.org/zap"
)

// PaymentNode is the local Lightning node used to reach and pay the API's
// node. *lightning.CLN implements it. Implementations must be safe for
// concurrent use.
type PaymentNode interface {
	Connect(ctx context.Context, nodeID string, addr *model.NodeAddress) (lightning.ConnectResult, error)
	FundChannel(ctx context.Context, nodeID string, capacity model.Sat, push *model.Msat) (lightning.FundResult, error)
	Pay(ctx context.Context, bolt11 string, opts lightning.PayOptions) (lightning.Receipt, error)
}

// Client is a session with one broadcast API. It holds no per-order state
// and may be used by concurrent callers.
type Client struct {
	endpoint endpoint.Endpoint
	node     PaymentNode
	http     *http.Client
	upload   *http.Client
	payOpts  lightning.PayOptions
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for node info and cancellation
// requests. It is also used for uploads unless WithUploadClient is given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUploadClient sets the client used to post orders. Uploads carry the
// whole file and usually need a longer timeout than other requests.
func WithUploadClient(hc *http.Client) Option {
	return func(c *Client) { c.upload = hc }
}

// WithPayOptions sets the policy handed to the payment node. The invoice
// amount is always used, so opts.Amount is ignored.
func WithPayOptions(opts lightning.PayOptions) Option {
	return func(c *Client) {
		opts.Amount = nil
		c.payOpts = opts
	}
}

// New returns a Client for the API at ep paying through node.
func New(ep endpoint.Endpoint, node PaymentNode, opts ...Option) *Client {
	c := &Client{endpoint: ep, node: node}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.upload == nil {
		c.upload = c.http
	}
	return c
}

// Endpoint returns the API base address.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.endpoint
}

// NodeInfo fetches the API's lightning node descriptor. The result is never
// cached.
func (c *Client) NodeInfo(ctx context.Context) (*model.NodeDescriptor, error) {
	const op = "node info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.Info(), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	var info model.NodeDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if info.ID == "" {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("%w: missing node id", model.ErrDecode)}
	}
	return &info, nil
}

// ConnectResult identifies the API node a link was established with.
type ConnectResult struct {
	NodeID string
	// Address is the host:port dialled, empty when the node was located
	// through gossip.
	Address string
}

// Connect links the local node to the API's node, using the first address
// it advertises or, when it advertises none, its id alone.
func (c *Client) Connect(ctx context.Context) (ConnectResult, error) {
	info, err := c.NodeInfo(ctx)
	if err != nil {
		return ConnectResult{}, err
	}

	var (
		addr    *model.NodeAddress
		address string
	)
	if a, ok := info.PreferredAddress(); ok {
		addr, address = &a, a.HostPort()
	}

	zap.L().Debug("connecting to broadcast node", zap.String("node_id", info.ID), zap.String("address", address))
	if _, err := c.node.Connect(ctx, info.ID, addr); err != nil {
		return ConnectResult{}, &PaymentNodeError{Op: "connect " + info.ID, Err: err}
	}
	return ConnectResult{NodeID: info.ID, Address: address}, nil
}

// ChannelResult describes a channel opened to the API's node.
type ChannelResult struct {
	NodeID    string
	Capacity  model.Sat
	TxID      string
	OutNum    uint32
	ChannelID string
}

// OpenChannel connects to the API's node and funds a channel of the given
// capacity to it. The two steps are not atomic: a failed funding leaves the
// peer connected, which is harmless and cheap to repeat.
func (c *Client) OpenChannel(ctx context.Context, capacity model.Sat) (ChannelResult, error) {
	if capacity == 0 {
		return ChannelResult{}, &InvalidInputError{Reason: "channel capacity must be positive"}
	}

	conn, err := c.Connect(ctx)
	if err != nil {
		return ChannelResult{}, err
	}

	res, err := c.node.FundChannel(ctx, conn.NodeID, capacity, nil)
	if err != nil {
		return ChannelResult{}, &PaymentNodeError{Op: "fund channel with " + conn.NodeID, Err: err}
	}
	zap.L().Info("channel funded",
		zap.String("node_id", conn.NodeID),
		zap.Stringer("capacity", capacity),
		zap.String("txid", res.TxID))

	return ChannelResult{
		NodeID:    conn.NodeID,
		Capacity:  capacity,
		TxID:      res.TxID,
		OutNum:    res.OutNum,
		ChannelID: res.ChannelID,
	}, nil
}
