// Package grpc provides dynamic gRPC client functionality.
//
// This package enables runtime gRPC invocation without generated stubs by compiling
// proto files on-the-fly and using protocol buffer reflection for method resolution.
// It is the transport behind pkg/lightning, which embeds the Core Lightning
// service definition and talks JSON to it.
//
// # Client Creation
//
// Create a dynamic gRPC client with proto files:
//
//	protoFiles := map[string]string{
//		"node.proto": "syntax = \"proto3\"; ...",
//	}
//
//	client, err := grpc.NewClient("127.0.0.1:9736", protoFiles, creds)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Invocation
//
// Requests and responses are protojson documents with proto field names.
// 64-bit integers are strings and bytes are base64:
//
//	out, err := client.CallWithJSON(ctx, "Getinfo", []byte(`{}`))
//
// # Transport Security
//
// The endpoint scheme picks the default credentials ("https://" for TLS with
// system roots, anything else insecure). Core Lightning requires mutual TLS;
// pass the option built by MutualTLS to override the default:
//
//	creds, err := grpc.MutualTLS("ca.pem", "client.pem", "client-key.pem", "cln")
//
// # Thread Safety
//
// Client is safe for concurrent use; the underlying ClientConn multiplexes calls.
package grpc
