package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/observability"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
)

// Server decodes delivered envelopes and hands the messages to a handler.
type Server struct {
	registry *pdu.Registry
	handler  pdu.Handler
	log      logging.Logger
}

// NewServer returns a Server decoding with reg and delivering to h.
func NewServer(reg *pdu.Registry, h pdu.Handler, log logging.Logger) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("gateway: message registry is nil")
	}
	if h == nil {
		return nil, fmt.Errorf("gateway: message handler is nil")
	}
	return &Server{
		registry: reg,
		handler:  h,
		log:      logging.OrNoop(log).With(logging.String("component", "gateway-server")),
	}, nil
}

// Deliver implements PDUGatewayServer.
func (s *Server) Deliver(ctx context.Context, env *structpb.Struct) (*emptypb.Empty, error) {
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = s.log
	}

	msg, err := Decode(s.registry, env)
	if err != nil {
		log.Warn(ctx, "rejecting undecodable message", logging.Err(err))
		return nil, ToStatusError(err)
	}
	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		log.Warn(ctx, "message rejected",
			logging.String("message", msg.MessageType()),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	log.Debug(ctx, "message delivered", logging.String("message", msg.MessageType()))
	return &emptypb.Empty{}, nil
}

// NewGRPCServer builds a gRPC server with the gateway's interceptor chain
// and the PDU gateway service registered. collector may be nil.
func NewGRPCServer(srv PDUGatewayServer, log logging.Logger, collector *observability.Collector, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			ProcedureIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterPDUGatewayServer(s, srv)
	return s
}
