package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MovieInterServiceName is the fully qualified gRPC service name.
const MovieInterServiceName = "popcorn.movie.v1.MovieInterService"

const (
	checkMovieExistsMethod = "/" + MovieInterServiceName + "/CheckMovieExists"
	getMovieInfoMethod     = "/" + MovieInterServiceName + "/GetMovieInfo"
)

// MovieInterServiceServer is the server API for MovieInterService. Messages are protobuf
// well-known types: the movie id travels as a StringValue.
type MovieInterServiceServer interface {
	CheckMovieExists(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	GetMovieInfo(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// MovieInterServiceDesc describes MovieInterService for grpc.Server.RegisterService.
var MovieInterServiceDesc = grpc.ServiceDesc{
	ServiceName: MovieInterServiceName,
	HandlerType: (*MovieInterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckMovieExists", Handler: checkMovieExistsHandler},
		{MethodName: "GetMovieInfo", Handler: getMovieInfoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "popcorn/movie/v1/movie.proto",
}

func RegisterMovieInterServiceServer(s grpc.ServiceRegistrar, srv MovieInterServiceServer) {
	s.RegisterService(&MovieInterServiceDesc, srv)
}

func checkMovieExistsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MovieInterServiceServer).CheckMovieExists(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkMovieExistsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MovieInterServiceServer).CheckMovieExists(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getMovieInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MovieInterServiceServer).GetMovieInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMovieInfoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MovieInterServiceServer).GetMovieInfo(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// MovieInterServiceClient is the client API for MovieInterService.
type MovieInterServiceClient interface {
	CheckMovieExists(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	GetMovieInfo(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type movieInterServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMovieInterServiceClient(cc grpc.ClientConnInterface) MovieInterServiceClient {
	return &movieInterServiceClient{cc: cc}
}

func (c *movieInterServiceClient) CheckMovieExists(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, checkMovieExistsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *movieInterServiceClient) GetMovieInfo(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getMovieInfoMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
