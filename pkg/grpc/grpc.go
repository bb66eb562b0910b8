package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/bufbuild/protocompile/linker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client is a dynamic gRPC client that holds a connected gRPC ClientConn and a
// set of compiled file descriptors used to locate services/methods at runtime.
// It is safe for concurrent use.
type Client struct {
	// GRPC is the underlying client connection.
	GRPC *grpc.ClientConn `json:"-"`
	// ProtoFiles are the compiled descriptors of the provided .proto sources.
	ProtoFiles linker.Files `json:"-"`
}

// NewClient creates a dynamic gRPC client for the given endpoint and set of
// .proto files (as filename → file content). Unless opts carry transport
// credentials, the endpoint scheme determines transport security:
//   - "https://": TLS (system defaults)
//   - "http://":  insecure
//   - no scheme:  insecure
//
// The provided proto files are compiled at runtime; if compilation fails the
// connection is closed and an error is returned. The returned client
// proactively starts connecting (ClientConn.Connect()).
func NewClient(endpoint string, protoFiles map[string]string, opts ...grpc.DialOption) (*Client, error) {
	addr, creds := grpcCredsFromEndpoint(endpoint)
	conn, err := grpc.NewClient(addr, append([]grpc.DialOption{creds}, opts...)...)
	if err != nil {
		zap.L().Error("failed to create grpc client", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, err
	}

	descriptors, err := Compile(protoFiles)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	conn.Connect()

	return &Client{
		GRPC:       conn,
		ProtoFiles: descriptors,
	}, nil
}

// Close shuts down the underlying gRPC connection.
// It is safe to call on a nil receiver or when GRPC is nil.
func (c *Client) Close() error {
	if c == nil || c.GRPC == nil {
		return nil
	}
	return c.GRPC.Close()
}

// CallWithJSON invokes a unary RPC by method name using a JSON request body.
// The JSON is unmarshalled into a dynamic input message (discarding unknown
// fields and allowing partial messages), the call is performed, and the
// response is marshaled back to JSON with proto field names and unpopulated
// fields emitted.
func (c *Client) CallWithJSON(ctx context.Context, method string, body []byte) ([]byte, error) {
	fd, methodDesc, err := FindMethod(c.ProtoFiles, method)
	if err != nil {
		return nil, err
	}

	in := dynamicpb.NewMessage(methodDesc.Input())
	out := dynamicpb.NewMessage(methodDesc.Output())

	err = protojson.UnmarshalOptions{
		AllowPartial:   true,
		DiscardUnknown: true,
	}.Unmarshal(body, in)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	fullMethod := "/" + string(fd.Package()) + "." + string(methodDesc.Parent().Name()) + "/" + method
	zap.L().Debug("grpc invoke", zap.String("method", fullMethod))
	err = c.GRPC.Invoke(ctx, fullMethod, in, out)
	if err != nil {
		return nil, err
	}

	jsonBytes, err := protojson.MarshalOptions{
		EmitUnpopulated: true,
		UseProtoNames:   true,
	}.Marshal(out)
	if err != nil {
		return nil, err
	}

	return jsonBytes, nil
}

// MutualTLS builds transport credentials from PEM files: the CA that signed
// the server certificate plus the client certificate and key presented to it.
// serverName overrides the name checked against the server certificate.
func MutualTLS(caPath, certPath, keyPath, serverName string) (grpc.DialOption, error) {
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", caPath)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	return grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	})), nil
}

// grpcCredsFromEndpoint derives a dial address and dial option from an endpoint URL.
// "https://" enables TLS; "http://" and bare addresses use insecure credentials.
func grpcCredsFromEndpoint(endpoint string) (string, grpc.DialOption) {
	if strings.HasPrefix(endpoint, "https://") {
		return strings.TrimPrefix(endpoint, "https://"), grpc.WithTransportCredentials(credentials.NewTLS(nil))
	}
	if strings.HasPrefix(endpoint, "http://") {
		return strings.TrimPrefix(endpoint, "http://"), grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	return endpoint, grpc.WithTransportCredentials(insecure.NewCredentials())
}
