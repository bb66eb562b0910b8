package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ionosphere-go/ionosphere/pkg/config"
	"github.com/ionosphere-go/ionosphere/pkg/endpoint"
	"github.com/ionosphere-go/ionosphere/pkg/lightning"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"github.com/ionosphere-go/ionosphere/pkg/satellite"
	"github.com/ionosphere-go/ionosphere/pkg/storage"
	"go.uber.org/zap"
)

// logLevel is the level of the global logger installed by init.
var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Node is the payment node the SDK drives. *lightning.CLN implements it.
type Node interface {
	satellite.PaymentNode
	GetInfo(ctx context.Context) (lightning.Info, error)
	Close() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	node       Node
	payOptions lightning.PayOptions
}

// WithNode uses an already connected payment node instead of dialling the
// one in the configuration. The caller keeps ownership of it.
func WithNode(n Node) Option {
	return func(o *options) { o.node = n }
}

// WithPayOptions sets the payment policy for orders.
func WithPayOptions(opts lightning.PayOptions) Option {
	return func(o *options) { o.payOptions = opts }
}

// Client is a broadcast client built from configuration. The embedded
// satellite.Client provides NodeInfo, Connect, OpenChannel, PlaceOrder,
// PlaceOrderFromStream and CancelOrder.
type Client struct {
	*satellite.Client
	cfg      *config.Config
	node     Node
	ownsNode bool
	storage  *storage.Client
}

// New validates cfg, applies timeout defaults and connects the collaborators.
// The Lightning connection is established lazily on first use.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()

	if cfg.Debug {
		logLevel.SetLevel(zap.DebugLevel)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ep, err := endpoint.New(cfg.APIEndpoint)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.IpfsURL, cfg.LighthouseURL, cfg.Timeouts.Upload)
	if err != nil {
		return nil, err
	}

	node, owns := o.node, false
	if node == nil {
		cln, err := lightning.DialConfig(cfg.Lightning, cfg.Timeouts.Payment)
		if err != nil {
			return nil, err
		}
		node, owns = cln, true
	}

	zap.L().Debug("broadcast client configured",
		zap.String("api", ep.String()),
		zap.String("lightning", cfg.Lightning.GRPCAddr),
		zap.Bool("mutual_tls", cfg.Lightning.MutualTLS()))

	sc := satellite.New(ep, node,
		satellite.WithHTTPClient(&http.Client{Timeout: cfg.Timeouts.HTTP}),
		satellite.WithUploadClient(&http.Client{Timeout: cfg.Timeouts.Upload}),
		satellite.WithPayOptions(o.payOptions),
	)

	return &Client{
		Client:   sc,
		cfg:      cfg,
		node:     node,
		ownsNode: owns,
		storage:  store,
	}, nil
}

// Config returns the validated configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Node returns the payment node in use.
func (c *Client) Node() Node {
	return c.node
}

// PlaceOrderFromRef places an order for the content named by ref: a local
// path, "ipfs://<CID>" or "filecoin://<CID>". Failing to open the source is
// an invalid input; nothing is sent to the API in that case.
func (c *Client) PlaceOrderFromRef(ctx context.Context, ref string, bid model.Msat) (model.Order, error) {
	if !storage.IsRemote(ref) {
		return c.PlaceOrder(ctx, ref, bid)
	}

	src, err := c.storage.Open(ctx, ref)
	if err != nil {
		return model.Order{}, &satellite.InvalidInputError{Reason: "open " + ref, Err: err}
	}
	defer func() {
		if err := src.Close(); err != nil {
			zap.L().Warn("failed to close source", zap.String("ref", ref), zap.Error(err))
		}
	}()
	return c.PlaceOrderFromStream(ctx, src, src.Name, bid)
}

// Close releases the Lightning connection when New dialled it.
func (c *Client) Close() error {
	if c.ownsNode && c.node != nil {
		return c.node.Close()
	}
	return nil
}
