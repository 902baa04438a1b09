package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the detector service.
const ServiceName = "voxwake.v1.Detector"

// DetectorServer is the server API of voxwake.v1.Detector. Messages are
// protobuf well-known types so no generated code is required.
type DetectorServer interface {
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Transcribe takes 16-bit little-endian mono PCM.
	Transcribe(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	// Events streams detector events until the client goes away.
	Events(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterDetectorServer registers srv on s
func RegisterDetectorServer(s grpc.ServiceRegistrar, srv DetectorServer) {
	s.RegisterService(&DetectorServiceDesc, srv)
}

func unaryHandler[In any, Out any](method string, call func(DetectorServer, context.Context, *In) (*Out, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DetectorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DetectorServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DetectorServer).Events(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// DetectorServiceDesc describes voxwake.v1.Detector
var DetectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DetectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: unaryHandler("Start", DetectorServer.Start)},
		{MethodName: "Stop", Handler: unaryHandler("Stop", DetectorServer.Stop)},
		{MethodName: "Status", Handler: unaryHandler("Status", DetectorServer.Status)},
		{MethodName: "Transcribe", Handler: unaryHandler("Transcribe", DetectorServer.Transcribe)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "voxwake/v1/detector.proto",
}

// DetectorClient is the client API of voxwake.v1.Detector
type DetectorClient struct {
	cc grpc.ClientConnInterface
}

func NewDetectorClient(cc grpc.ClientConnInterface) *DetectorClient {
	return &DetectorClient{cc: cc}
}

func (c *DetectorClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *DetectorClient) Start(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "Start", &emptypb.Empty{}, out, opts...)
}

func (c *DetectorClient) Stop(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "Stop", &emptypb.Empty{}, out, opts...)
}

func (c *DetectorClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "Status", &emptypb.Empty{}, out, opts...)
}

func (c *DetectorClient) Transcribe(ctx context.Context, pcm []byte, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "Transcribe", wrapperspb.Bytes(pcm), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Events opens the event stream
func (c *DetectorClient) Events(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &DetectorServiceDesc.Streams[0], "/"+ServiceName+"/Events", opts...)
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
