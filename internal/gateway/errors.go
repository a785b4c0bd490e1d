package gateway

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/f1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/scheduler"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

// ToStatusError maps control plane errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()

	case errors.Is(err, pdu.ErrUnknownMessage):
		return status.Error(codes.Unimplemented, err.Error())

	case errors.Is(err, ErrMalformedEnvelope),
		errors.Is(err, procedure.ErrValidation),
		errors.Is(err, f1ap.ErrUnexpectedMessage),
		errors.Is(err, e1ap.ErrUnexpectedMessage):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ue.ErrUnknownUE):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, e1ap.ErrContextExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, scheduler.ErrQueueFull),
		errors.Is(err, ue.ErrNoFreeIndex),
		errors.Is(err, e1ap.ErrNoFreeID):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, procedure.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
