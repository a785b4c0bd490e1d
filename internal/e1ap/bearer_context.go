package e1ap

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

const (
	setupProcedureName        = "e1-bearer-context-setup"
	modificationProcedureName = "e1-bearer-context-modification"
	releaseProcedureName      = "e1-bearer-context-release"
)

// exchange is the request/response part shared by the bearer context
// procedures: one request, one correlated answer under a guard timer.
type exchange struct {
	e     *E1AP
	ctx   context.Context
	run   *procedure.Run
	name  string
	timer *timers.Timer
}

func (e *E1AP) newExchange(ctx context.Context, name string, idx ue.Index) *exchange {
	ctx, run := procedure.Begin(ctx, name, e.log, e.metrics, attribute.Int64("ue.index", int64(idx)))
	return &exchange{e: e, ctx: ctx, run: run, name: name, timer: e.timers.CreateOn(e.ctrl)}
}

// task wraps first into an instrumented task whose timer is released on
// completion.
func (x *exchange) task(first async.Step) *async.Task {
	t := async.NewWithContext(x.ctx, x.name, first)
	t.OnComplete(func(*async.Task) { x.timer.Stop() })
	return x.run.Attach(t)
}

// send opens a transaction under key, sends msg and awaits the answer. A
// missing answer resumes then with procedure.ErrTimeout.
func (x *exchange) send(key uint32, msg pdu.Message, then async.Step) async.Next {
	txn, err := x.e.txns.Begin(key)
	if err != nil {
		return async.Fail(fmt.Errorf("%s: %w", x.name, err))
	}
	if err := x.e.notifier.Send(x.ctx, msg); err != nil {
		txn.Close()
		return async.Fail(fmt.Errorf("%s: send %s: %w", x.name, msg.MessageType(), err))
	}
	x.run.Event("request_sent", attribute.Int64("cu_cp_ue_e1ap_id", int64(key)))
	x.run.Log.Debug(x.ctx, "e1ap request sent",
		logging.String("message", msg.MessageType()),
		logging.Uint64("cu_cp_ue_e1ap_id", uint64(key)),
	)
	return async.Await(async.WithTimeout(txn, x.timer, x.e.cfg.ResponseTimeout), func(in async.Result) async.Next {
		if errors.Is(in.Err, async.ErrTimedOut) {
			x.run.Log.Warn(x.ctx, "e1ap response timed out", logging.String("message", msg.MessageType()))
			return then(async.Result{Err: fmt.Errorf("%s: %w", x.name, procedure.ErrTimeout)})
		}
		if in.Err != nil {
			return then(async.Result{Err: fmt.Errorf("%s: %w", x.name, in.Err)})
		}
		return then(in)
	})
}

func (x *exchange) unexpected(v any) async.Next {
	return async.Fail(procedure.Invalid(x.name, "", "unexpected answer %T", v))
}

// BearerContextSetup returns a task that asks the CU-UP to set up the bearer
// context of req.UEIndex. The task succeeds with a BearerContextSetupResponse
// whenever the CU-UP answered: a rejection has Success false, a partial
// success lists the failed PDU sessions. It fails on timeout, on an invalid
// request or on a malformed answer.
func (e *E1AP) BearerContextSetup(ctx context.Context, req BearerContextSetupRequest) *async.Task {
	x := e.newExchange(ctx, setupProcedureName, req.UEIndex)
	return x.task(func(async.Result) async.Next {
		uc, err := e.allocate(req.UEIndex)
		if err != nil {
			return async.Fail(fmt.Errorf("%s: %w", setupProcedureName, err))
		}
		msg, err := toSetupRequest(uc.cucpID, &req)
		if err != nil {
			e.RemoveUE(req.UEIndex)
			return async.Fail(err)
		}
		return x.send(uc.cucpID, msg, func(in async.Result) async.Next {
			if in.Err != nil {
				e.RemoveUE(req.UEIndex)
				return async.Fail(in.Err)
			}
			resp := BearerContextSetupResponse{UEIndex: req.UEIndex}
			switch m := in.Value.(type) {
			case *e1msg.BearerContextSetupResponse:
				if err := fromSetupResponse(m, req.PDUSessions, &resp); err != nil {
					e.RemoveUE(req.UEIndex)
					return async.Fail(err)
				}
				e.establish(req.UEIndex, m.CUUPUEE1APID)
				x.run.Log.Info(x.ctx, "bearer context set up",
					logging.Int("pdu_sessions_setup", len(resp.PDUSessionsSetup)),
					logging.Int("pdu_sessions_failed", len(resp.PDUSessionsFailed)),
				)
			case *e1msg.BearerContextSetupFailure:
				e.RemoveUE(req.UEIndex)
				if err := fromSetupFailure(m, &resp); err != nil {
					return async.Fail(err)
				}
			default:
				e.RemoveUE(req.UEIndex)
				return x.unexpected(in.Value)
			}
			return async.Return(resp)
		})
	})
}

// BearerContextModification returns a task that modifies an established
// bearer context. Outcomes follow BearerContextSetup.
func (e *E1AP) BearerContextModification(ctx context.Context, req BearerContextModificationRequest) *async.Task {
	x := e.newExchange(ctx, modificationProcedureName, req.UEIndex)
	return x.task(func(async.Result) async.Next {
		uc, ok := e.lookup(req.UEIndex)
		if !ok || !uc.established {
			return async.Fail(fmt.Errorf("%s: %w: %s", modificationProcedureName, ue.ErrUnknownUE, req.UEIndex))
		}
		msg, err := toModificationRequest(uc.cucpID, uc.cuupID, &req)
		if err != nil {
			return async.Fail(err)
		}
		return x.send(uc.cucpID, msg, func(in async.Result) async.Next {
			if in.Err != nil {
				return async.Fail(in.Err)
			}
			resp := BearerContextModificationResponse{UEIndex: req.UEIndex}
			switch m := in.Value.(type) {
			case *e1msg.BearerContextModificationResponse:
				if m.CUUPUEE1APID != uc.cuupID {
					return async.Fail(procedure.Invalid(modificationProcedureName, "gnb_cu_up_ue_e1ap_id",
						"got %d, want %d", m.CUUPUEE1APID, uc.cuupID))
				}
				if err := fromModificationResponse(m, &req, &resp); err != nil {
					return async.Fail(err)
				}
			case *e1msg.BearerContextModificationFailure:
				if err := fromModificationFailure(m, &resp); err != nil {
					return async.Fail(err)
				}
			default:
				return x.unexpected(in.Value)
			}
			return async.Return(resp)
		})
	})
}

// BearerContextRelease returns a task that commands the CU-UP to release the
// UE's bearer context and waits for completion. The UE's E1AP context is
// dropped whatever the outcome.
func (e *E1AP) BearerContextRelease(ctx context.Context, idx ue.Index, cause Cause) *async.Task {
	x := e.newExchange(ctx, releaseProcedureName, idx)
	return x.task(func(async.Result) async.Next {
		uc, ok := e.lookup(idx)
		if !ok {
			return async.Fail(fmt.Errorf("%s: %w: %s", releaseProcedureName, ue.ErrUnknownUE, idx))
		}
		if !uc.established {
			e.RemoveUE(idx)
			return async.Return(nil)
		}
		conv := &converter{proc: releaseProcedureName}
		msg := &e1msg.BearerContextReleaseCommand{
			CUCPUEE1APID: uc.cucpID,
			CUUPUEE1APID: uc.cuupID,
			Cause:        conv.causeToPeer("cause", cause),
		}
		if conv.err != nil {
			return async.Fail(conv.err)
		}
		return x.send(uc.cucpID, msg, func(in async.Result) async.Next {
			e.RemoveUE(idx)
			if in.Err != nil {
				return async.Fail(in.Err)
			}
			if _, ok := in.Value.(*e1msg.BearerContextReleaseComplete); !ok {
				return x.unexpected(in.Value)
			}
			return async.Return(nil)
		})
	})
}
