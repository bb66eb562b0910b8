package sdk

import (
	"context"
	"fmt"

	"github.com/ionosphere-go/ionosphere/pkg/lightning"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"go.uber.org/zap"
)

// Health is the state of both collaborators as seen from this client.
type Health struct {
	// Remote is the API's lightning node; nil when RemoteErr is set.
	Remote    *model.NodeDescriptor
	RemoteErr error
	// Local is the caller's own node; zero when LocalErr is set.
	Local    lightning.Info
	LocalErr error
}

// Healthy reports whether both sides answered and run on the same network.
func (h Health) Healthy() bool {
	return h.RemoteErr == nil && h.LocalErr == nil && h.NetworkMismatch() == nil
}

// NetworkMismatch returns an error when the two nodes are on different
// bitcoin networks. Invoices from one network cannot be paid on another.
func (h Health) NetworkMismatch() error {
	if h.Remote == nil || h.LocalErr != nil {
		return nil
	}
	local, err := model.ParseNetwork(h.Local.Network)
	if err != nil {
		return err
	}
	if local != h.Remote.Network {
		return fmt.Errorf("local node is on %s, broadcast node on %s", local, h.Remote.Network)
	}
	return nil
}

// Healthcheck queries the API node descriptor and the local node. The local
// query is bounded by the configured dial timeout. Both are always
// attempted; failures are reported in the result, not as an error.
func (c *Client) Healthcheck(ctx context.Context) Health {
	var h Health
	h.Remote, h.RemoteErr = c.NodeInfo(ctx)

	localCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Dial)
	defer cancel()
	h.Local, h.LocalErr = c.node.GetInfo(localCtx)

	if c.cfg.Debug {
		zap.L().Debug("healthcheck",
			zap.NamedError("remote_error", h.RemoteErr),
			zap.NamedError("local_error", h.LocalErr),
			zap.String("local_network", h.Local.Network))
	}
	if err := h.NetworkMismatch(); err != nil {
		zap.L().Warn("network mismatch", zap.Error(err))
	}
	return h
}
