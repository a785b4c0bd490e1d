package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
)

// Client sends messages to a peer gateway. It implements pdu.Notifier.
type Client struct {
	conn  *grpc.ClientConn
	owned bool
	log   logging.Logger
}

// Dial connects to the peer gateway at target without transport security.
func Dial(target string, log logging.Logger, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(ProcedureIDUnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", target, err)
	}
	c := NewClient(conn, log)
	c.owned = true
	return c, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of conn.
func NewClient(conn *grpc.ClientConn, log logging.Logger) *Client {
	return &Client{
		conn: conn,
		log:  logging.OrNoop(log).With(logging.String("component", "gateway-client")),
	}
}

// Send encodes msg and delivers it to the peer.
func (c *Client) Send(ctx context.Context, msg pdu.Message) error {
	env, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := c.conn.Invoke(ctx, DeliverMethod, env, new(emptypb.Empty)); err != nil {
		c.log.Warn(ctx, "delivery failed",
			logging.String("message", msg.MessageType()),
			logging.Err(err),
		)
		return fmt.Errorf("gateway: deliver %s: %w", msg.MessageType(), err)
	}
	return nil
}

// Close releases the connection if the client dialed it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}
