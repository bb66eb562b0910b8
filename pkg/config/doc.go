// Package config provides configuration management for the broadcast client.
//
// This package defines the Config structure that controls which broadcast API
// is used, how the local Core Lightning node is reached, where IPFS and
// Filecoin upload sources are read from, and transport timeouts.
//
// # Basic Configuration
//
// The minimum required configuration is the Lightning gRPC address:
//
//	cfg := &config.Config{
//		Lightning: config.Lightning{GRPCAddr: "127.0.0.1:9736"},
//	}
//
// The API endpoint defaults to BlockstreamTestnet. Other providers of the
// same API can be selected by URL:
//
//	cfg.APIEndpoint = config.BlockstreamMainnet
//
// # Lightning Connection
//
// Core Lightning exposes gRPC over mutual TLS. Point the client at the
// certificates generated by the cln-grpc plugin:
//
//	cfg.Lightning = config.Lightning{
//		GRPCAddr:   "127.0.0.1:9736",
//		CACert:     "/home/user/.lightning/testnet/ca.pem",
//		ClientCert: "/home/user/.lightning/testnet/client.pem",
//		ClientKey:  "/home/user/.lightning/testnet/client-key.pem",
//	}
//
// Without certificates, an "https://" address uses system TLS roots and a bare
// or "http://" address connects without transport security.
//
// # Loading From File and Environment
//
// Load reads a YAML file, then a .env file if present, then IONOSPHERE_*
// environment variables, and finally validates:
//
//	cfg, err := config.Load("ionosphere.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// # Timeouts
//
// Timeouts bound the transports only. Zero values are replaced with defaults
// via WithDefaults():
//
//	cfg.Timeouts = config.Timeouts{
//		HTTP:    30 * time.Second, // node info and order cancellation
//		Upload:  10 * time.Minute, // order placement including the file body
//		Dial:    5 * time.Second,  // lightning connect
//		Payment: 2 * time.Minute,  // lightning pay and fundchannel
//	}
//
// # Thread Safety
//
// Config instances should be created once and not modified after passing to
// sdk.New(). The Config is read-only during client operations.
package config
