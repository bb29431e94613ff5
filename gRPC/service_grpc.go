package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are google.protobuf.Struct carrying the same JSON shapes as the
// HTTP API, so the service needs no generated message types.

const (
	MetricsService_CreateSession_FullMethodName  = "/eyetrack.MetricsService/CreateSession"
	MetricsService_ProcessFrame_FullMethodName   = "/eyetrack.MetricsService/ProcessFrame"
	MetricsService_ResetSession_FullMethodName   = "/eyetrack.MetricsService/ResetSession"
	MetricsService_DestroySession_FullMethodName = "/eyetrack.MetricsService/DestroySession"
	MetricsService_SessionStatus_FullMethodName  = "/eyetrack.MetricsService/SessionStatus"
	MetricsService_StreamFrames_FullMethodName   = "/eyetrack.MetricsService/StreamFrames"
)

type MetricsServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DestroySession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SessionStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamFrames(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
}

func RegisterMetricsServiceServer(s grpc.ServiceRegistrar, srv MetricsServiceServer) {
	s.RegisterService(&MetricsService_ServiceDesc, srv)
}

func unaryHandler[Resp any](fullMethod string, call func(MetricsServiceServer, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MetricsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MetricsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _MetricsService_StreamFrames_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(MetricsServiceServer).StreamFrames(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

var MetricsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "eyetrack.MetricsService",
	HandlerType: (*MetricsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateSession",
			Handler:    unaryHandler(MetricsService_CreateSession_FullMethodName, MetricsServiceServer.CreateSession),
		},
		{
			MethodName: "ProcessFrame",
			Handler:    unaryHandler(MetricsService_ProcessFrame_FullMethodName, MetricsServiceServer.ProcessFrame),
		},
		{
			MethodName: "ResetSession",
			Handler:    unaryHandler(MetricsService_ResetSession_FullMethodName, MetricsServiceServer.ResetSession),
		},
		{
			MethodName: "DestroySession",
			Handler:    unaryHandler(MetricsService_DestroySession_FullMethodName, MetricsServiceServer.DestroySession),
		},
		{
			MethodName: "SessionStatus",
			Handler:    unaryHandler(MetricsService_SessionStatus_FullMethodName, MetricsServiceServer.SessionStatus),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       _MetricsService_StreamFrames_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "eyetrack.proto",
}

type MetricsServiceClient interface {
	CreateSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ProcessFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ResetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	DestroySession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	SessionStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamFrames(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error)
}

type metricsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMetricsServiceClient(cc grpc.ClientConnInterface) MetricsServiceClient {
	return &metricsServiceClient{cc}
}

func (c *metricsServiceClient) CreateSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MetricsService_CreateSession_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metricsServiceClient) ProcessFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MetricsService_ProcessFrame_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metricsServiceClient) ResetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MetricsService_ResetSession_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metricsServiceClient) DestroySession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MetricsService_DestroySession_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metricsServiceClient) SessionStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MetricsService_SessionStatus_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metricsServiceClient) StreamFrames(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &MetricsService_ServiceDesc.Streams[0], MetricsService_StreamFrames_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}
