// Package rpc holds the gRPC contract of the moodkeeper key-path service.
//
// The service has no generated stubs. Messages are well-known protobuf types:
// a write request is a structpb.Struct {"path": string, "value": object},
// Push answers with the generated child id as a wrapperspb.StringValue, and
// Watch takes the prefix as a wrapperspb.StringValue and streams events as
// structpb.Struct {"path", "kind", "value"}.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "moodkeeper.v1.KeyPathStore"

const (
	SetMethod   = "/" + ServiceName + "/Set"
	PushMethod  = "/" + ServiceName + "/Push"
	WatchMethod = "/" + ServiceName + "/Watch"
)

type KeyPathStoreServer interface {
	Set(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Push(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Watch(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterKeyPathStoreServer(s grpc.ServiceRegistrar, srv KeyPathStoreServer) {
	s.RegisterService(&KeyPathStore_ServiceDesc, srv)
}

func _KeyPathStore_Set_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KeyPathStoreServer).Set(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KeyPathStoreServer).Set(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _KeyPathStore_Push_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KeyPathStoreServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PushMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KeyPathStoreServer).Push(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _KeyPathStore_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(KeyPathStoreServer).Watch(m, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

var KeyPathStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KeyPathStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Set", Handler: _KeyPathStore_Set_Handler},
		{MethodName: "Push", Handler: _KeyPathStore_Push_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: _KeyPathStore_Watch_Handler, ServerStreams: true},
	},
	Metadata: "moodkeeper/v1/keypath.proto",
}

type KeyPathStoreClient interface {
	Set(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Push(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Watch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type keyPathStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewKeyPathStoreClient(cc grpc.ClientConnInterface) KeyPathStoreClient {
	return &keyPathStoreClient{cc}
}

func (c *keyPathStoreClient) Set(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, SetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *keyPathStoreClient) Push(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, PushMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *keyPathStoreClient) Watch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &KeyPathStore_ServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
