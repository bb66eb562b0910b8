// Package sdk provides the high-level entry point for ordering satellite
// broadcasts paid over Lightning.
//
// The SDK hides the wiring between the broadcast-ordering API, the caller's
// Core Lightning node and the storage backends that upload sources may come
// from.
//
// # Quick Start
//
//	import (
//		"github.com/ionosphere-go/ionosphere/pkg/config"
//		"github.com/ionosphere-go/ionosphere/pkg/sdk"
//	)
//
//	func main() {
//		cfg := &config.Config{
//			APIEndpoint: config.BlockstreamTestnet,
//			Lightning: config.Lightning{
//				GRPCAddr:   "127.0.0.1:9736",
//				CACert:     "/home/user/.lightning/testnet/ca.pem",
//				ClientCert: "/home/user/.lightning/testnet/client.pem",
//				ClientKey:  "/home/user/.lightning/testnet/client-key.pem",
//			},
//		}
//
//		client, err := sdk.New(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer client.Close()
//
//		order, err := client.PlaceOrder(ctx, "message.txt", 100_000)
//		if err != nil {
//			log.Fatal(err)
//		}
//		// Keep order to cancel the broadcast later.
//	}
//
// # Core Components
//
//   - satellite: the order protocol (upload, invoice check, payment,
//     compensation) and the API's node info, connect and channel helpers
//   - lightning: Core Lightning over gRPC
//   - storage: local, IPFS and Filecoin upload sources
//   - config: settings, file and environment loading
//
// # Orders
//
// A returned model.Order always describes a paid bid. When the invoice
// cannot be honoured or the payment fails, the order is cancelled before
// the error is returned. Inspect failures with satellite.Kind or errors.As:
//
//	order, err := client.PlaceOrderFromRef(ctx, "ipfs://Qm...", 100_000)
//	var stuck *satellite.CompensationFailedError
//	if errors.As(err, &stuck) {
//		// stuck.Order may still be live on the API.
//	}
//
// Cancelling an already paid order removes the broadcast but never refunds
// the payment.
//
// # Health
//
// Healthcheck queries both nodes and reports whether they run on the same
// bitcoin network:
//
//	if h := client.Healthcheck(ctx); !h.Healthy() {
//		log.Printf("remote: %v local: %v network: %v", h.RemoteErr, h.LocalErr, h.NetworkMismatch())
//	}
//
// # Logging
//
// The package installs a console zap logger at info level as the global
// logger; Config.Debug raises it to debug. Replace it with zap.ReplaceGlobals
// for custom logging.
//
// # Thread Safety
//
// Client is safe for concurrent use. Each order runs independently with its
// own id and auth token.
package sdk
