package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "voicecommand.v1.VoiceControl"

// Full method names.
const (
	StartSessionMethod   = "/" + ServiceName + "/StartSession"
	StopSessionMethod    = "/" + ServiceName + "/StopSession"
	GetSessionMethod     = "/" + ServiceName + "/GetSession"
	PushTranscriptMethod = "/" + ServiceName + "/PushTranscript"
	WatchStatusMethod    = "/" + ServiceName + "/WatchStatus"
)

// VoiceControlServer is the server API for the VoiceControl service. Messages
// are protobuf well-known types: sessions are returned as Struct snapshots
// and transcripts are pushed as StringValue.
type VoiceControlServer interface {
	StartSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PushTranscript(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	WatchStatus(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterVoiceControlServer registers srv on s.
func RegisterVoiceControlServer(s grpc.ServiceRegistrar, srv VoiceControlServer) {
	s.RegisterService(&VoiceControlServiceDesc, srv)
}

// VoiceControlServiceDesc describes the VoiceControl service.
var VoiceControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VoiceControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: startSessionHandler},
		{MethodName: "StopSession", Handler: stopSessionHandler},
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "PushTranscript", Handler: pushTranscriptHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchStatus", Handler: watchStatusHandler, ServerStreams: true},
	},
	Metadata: "voicecommand/v1/voice_control.proto",
}

func startSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VoiceControlServer).StartSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StartSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VoiceControlServer).StartSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func stopSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VoiceControlServer).StopSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StopSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VoiceControlServer).StopSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VoiceControlServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VoiceControlServer).GetSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func pushTranscriptHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VoiceControlServer).PushTranscript(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PushTranscriptMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VoiceControlServer).PushTranscript(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchStatusHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(VoiceControlServer).WatchStatus(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// Client is a VoiceControl client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a VoiceControl client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) StartSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StartSessionMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StopSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StopSessionMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSessionMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PushTranscript(ctx context.Context, transcript string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PushTranscriptMethod, wrapperspb.String(transcript), new(emptypb.Empty), opts...)
}

// WatchStatus opens the status stream.
func (c *Client) WatchStatus(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &VoiceControlServiceDesc.Streams[0], WatchStatusMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
