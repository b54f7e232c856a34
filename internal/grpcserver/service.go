package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobtracker.ingestion.v1.Ingestion"

// IngestionServer is the server API of the Ingestion service. Messages are
// protobuf well-known types, so no generated code is needed.
type IngestionServer interface {
	TriggerRunAll(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	RunSource(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SweepExpired(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	ListRunLogs(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
}

// ServiceDesc describes the Ingestion service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TriggerRunAll", Handler: unary("TriggerRunAll", newEmpty, IngestionServer.TriggerRunAll)},
		{MethodName: "RunSource", Handler: unary("RunSource", newString, IngestionServer.RunSource)},
		{MethodName: "SweepExpired", Handler: unary("SweepExpired", newEmpty, IngestionServer.SweepExpired)},
		{MethodName: "ListRunLogs", Handler: unary("ListRunLogs", newString, IngestionServer.ListRunLogs)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobtracker/ingestion/v1/ingestion.proto",
}

// RegisterIngestionServer registers srv on s.
func RegisterIngestionServer(s grpc.ServiceRegistrar, srv IngestionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty             { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// unary builds the method handler for one RPC.
func unary[Req, Resp proto.Message](
	method string,
	newReq func() Req,
	call func(IngestionServer, context.Context, Req) (Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(IngestionServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(Req))
		})
	}
}

// Client calls the Ingestion service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) TriggerRunAll(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	return out, c.cc.Invoke(ctx, "/"+ServiceName+"/TriggerRunAll", &emptypb.Empty{}, out, opts...)
}

func (c *Client) RunSource(ctx context.Context, sourceID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, "/"+ServiceName+"/RunSource", wrapperspb.String(sourceID), out, opts...)
}

func (c *Client) SweepExpired(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	return out, c.cc.Invoke(ctx, "/"+ServiceName+"/SweepExpired", &emptypb.Empty{}, out, opts...)
}

func (c *Client) ListRunLogs(ctx context.Context, sourceID string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	return out, c.cc.Invoke(ctx, "/"+ServiceName+"/ListRunLogs", wrapperspb.String(sourceID), out, opts...)
}
