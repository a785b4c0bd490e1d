package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

// ProcedureIDMetadataKey carries the procedure id of the sending side, so
// both ends log the same id for one exchange.
const ProcedureIDMetadataKey = "x-procedure-id"

// ProcedureIDUnaryServerInterceptor ensures a procedure_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with procedure_id and method.
func ProcedureIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	base = logging.OrNoop(base)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, ProcedureIDMetadataKey); incoming != "" {
				ctx = logging.ContextWithProcedureID(ctx, incoming)
			}
		}

		ctx, reqLog := logging.WithProcedureLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		return handler(ctx, req)
	}
}

// ProcedureIDUnaryClientInterceptor forwards the caller's procedure id, when
// there is one, as outgoing metadata.
func ProcedureIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := logging.ProcedureIDFromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, ProcedureIDMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
