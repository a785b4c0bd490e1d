// Package gateway carries protocol messages between network functions over
// gRPC. A Client sends messages to a peer and a Server hands received ones to
// a pdu.Handler. Messages travel as a structured envelope naming their type.
package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "gnb.gateway.v1.PDUGateway"
	// DeliverMethod is the full method name of the single unary RPC.
	DeliverMethod = "/" + ServiceName + "/Deliver"
)

// PDUGatewayServer is the server API of the PDU gateway.
type PDUGatewayServer interface {
	Deliver(ctx context.Context, env *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterPDUGatewayServer registers srv with s.
func RegisterPDUGatewayServer(s grpc.ServiceRegistrar, srv PDUGatewayServer) {
	s.RegisterService(&pduGatewayServiceDesc, srv)
}

var pduGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PDUGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gnb/gateway/v1/gateway.proto",
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PDUGatewayServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DeliverMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PDUGatewayServer).Deliver(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
