// Package grpcbuf hosts in-memory gRPC servers for tests. Services are
// described by compiled proto descriptors and answered by JSON handlers, so
// no generated stubs are needed on either side.
package grpcbuf

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const bufSize = 1024 * 1024

// Handler answers one unary method. req is the protojson encoding (proto
// field names) of the request; the returned JSON is decoded into the
// method's output message.
type Handler func(ctx context.Context, req []byte) ([]byte, error)

// MetaCapture captures incoming metadata on the server side for later inspection in tests.
type MetaCapture struct {
	last atomic.Value // stores metadata.MD
}

// Last returns the most recently captured metadata or nil if none.
func (m *MetaCapture) Last() metadata.MD {
	if v := m.last.Load(); v != nil {
		return v.(metadata.MD)
	}
	return nil
}

// Server is a bufconn-backed gRPC server.
type Server struct {
	srv      *grpc.Server
	lis      *bufconn.Listener
	files    linker.Files
	handlers map[string]Handler
	Meta     *MetaCapture

	mu    sync.Mutex
	calls []string
}

// StartServer serves every method that has a handler keyed by its simple
// name. Other methods answer Unimplemented.
func StartServer(files linker.Files, handlers map[string]Handler) *Server {
	s := &Server{
		lis:      bufconn.Listen(bufSize),
		files:    files,
		handlers: handlers,
		Meta:     &MetaCapture{},
	}
	s.srv = grpc.NewServer(grpc.UnknownServiceHandler(s.handle))
	go func() { _ = s.srv.Serve(s.lis) }()
	return s
}

// Stop shuts the server down.
func (s *Server) Stop() {
	s.srv.Stop()
	_ = s.lis.Close()
}

// Calls returns the simple method names invoked so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// DialOptions route a client to this server. Use with a "passthrough:///bufnet"
// style target or any address; the dialer ignores it.
func (s *Server) DialOptions() []grpc.DialOption {
	dialer := func(context.Context, string) (net.Conn, error) { return s.lis.Dial() }
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	}
}

func (s *Server) handle(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	name := full[strings.LastIndex(full, "/")+1:]

	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		s.Meta.last.Store(md)
	}

	method := s.findMethod(name)
	handler := s.handlers[name]
	if method == nil || handler == nil {
		return status.Errorf(codes.Unimplemented, "method %s not implemented", full)
	}

	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	in := dynamicpb.NewMessage(method.Input())
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	reqJSON, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(in)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}

	respJSON, err := handler(stream.Context(), reqJSON)
	if err != nil {
		return err
	}

	out := dynamicpb.NewMessage(method.Output())
	if err := protojson.Unmarshal(respJSON, out); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(out)
}

func (s *Server) findMethod(name string) protoreflect.MethodDescriptor {
	for _, file := range s.files {
		for i := 0; i < file.Services().Len(); i++ {
			if m := file.Services().Get(i).Methods().ByName(protoreflect.Name(name)); m != nil {
				return m
			}
		}
	}
	return nil
}
