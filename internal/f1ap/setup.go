package f1ap

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
)

const setupProcedureName = "f1-setup"

// SetupResult is the outcome of an F1 setup that got an answer.
type SetupResult struct {
	Accepted bool
	// Response is set when Accepted.
	Response *SetupResponse
	// Failure is set when the CU rejected the setup.
	Failure  *SetupFailure
	Attempts int
}

func (r SetupResult) Outcome() string {
	if r.Accepted {
		return "success"
	}
	return "rejected"
}

// setupProcedure carries the state of one F1 setup run.
type setupProcedure struct {
	f       *F1AP
	ctx     context.Context
	run     *procedure.Run
	req     SetupRequest
	timer   *timers.Timer
	attempt int
	phase   procedure.Phase
}

// Setup returns a task performing F1 setup. The task succeeds with a
// SetupResult when the CU answered, and fails with procedure.ErrTimeout when
// no attempt got an answer. A rejection carrying TimeToWait is retried after
// that wait while attempts remain.
func (f *F1AP) Setup(ctx context.Context, req SetupRequest) *async.Task {
	ctx, run := procedure.Begin(ctx, setupProcedureName, f.log, f.metrics,
		attribute.Int64("f1.du_id", int64(req.DUID)),
	)
	p := &setupProcedure{
		f:     f,
		ctx:   ctx,
		run:   run,
		req:   req,
		timer: f.timers.CreateOn(f.ctrl),
	}
	task := async.NewWithContext(ctx, setupProcedureName, p.start)
	task.OnComplete(func(*async.Task) { p.timer.Stop() })
	return run.Attach(task)
}

func (p *setupProcedure) start(async.Result) async.Next {
	if len(p.req.ServedCells) == 0 {
		p.phase = procedure.PhaseFailed
		return async.Fail(procedure.Invalid(setupProcedureName, "served_cells", "no cell to serve"))
	}
	return p.sendRequest()
}

func (p *setupProcedure) sendRequest() async.Next {
	p.attempt++
	id, ok := p.f.ids.Next(func(id uint32) bool { return p.f.txns.Has(uint8(id)) })
	if !ok {
		p.phase = procedure.PhaseFailed
		return async.Fail(fmt.Errorf("f1 setup: no free transaction id"))
	}
	txn, err := p.f.txns.Begin(uint8(id))
	if err != nil {
		p.phase = procedure.PhaseFailed
		return async.Fail(fmt.Errorf("f1 setup: %w", err))
	}

	msg := p.req
	msg.TransactionID = uint8(id)
	if err := p.f.notifier.Send(p.ctx, &msg); err != nil {
		txn.Close()
		p.phase = procedure.PhaseFailed
		return async.Fail(fmt.Errorf("f1 setup: send request: %w", err))
	}

	p.phase = procedure.PhaseAwaitingResponse
	p.run.Event("request_sent", attribute.Int("attempt", p.attempt), attribute.Int("transaction_id", int(id)))
	p.run.Log.Debug(p.ctx, "f1 setup request sent",
		logging.Int("attempt", p.attempt),
		logging.Int("transaction_id", int(id)),
	)
	return async.Await(async.WithTimeout(txn, p.timer, p.f.cfg.ResponseTimeout), p.onAnswer)
}

func (p *setupProcedure) onAnswer(in async.Result) async.Next {
	if errors.Is(in.Err, async.ErrTimedOut) {
		return p.onTimeout()
	}
	if in.Err != nil {
		p.phase = procedure.PhaseFailed
		return async.Fail(fmt.Errorf("f1 setup: %w", in.Err))
	}

	switch msg := in.Value.(type) {
	case *SetupResponse:
		return p.onSetupResponse(msg)
	case *SetupFailure:
		return p.onSetupFailure(msg)
	default:
		p.phase = procedure.PhaseFailed
		return async.Fail(procedure.Invalid(setupProcedureName, "", "unexpected answer %T", in.Value))
	}
}

func (p *setupProcedure) onTimeout() async.Next {
	p.run.Log.Warn(p.ctx, "f1 setup response timed out",
		logging.Int("attempt", p.attempt),
		logging.String("phase", p.phase.String()),
	)
	if p.f.cfg.Setup.CanRetry(p.attempt) {
		p.phase = procedure.PhaseRetrying
		return p.sendRequest()
	}
	p.phase = procedure.PhaseFailed
	return async.Fail(fmt.Errorf("f1 setup: %d attempts without response: %w", p.attempt, procedure.ErrTimeout))
}

func (p *setupProcedure) onSetupResponse(resp *SetupResponse) async.Next {
	served := make(map[NRCGI]struct{}, len(p.req.ServedCells))
	for _, c := range p.req.ServedCells {
		served[c.NRCGI] = struct{}{}
	}
	for _, c := range resp.CellsToActivate {
		if _, ok := served[c]; !ok {
			p.phase = procedure.PhaseFailed
			return async.Fail(procedure.Invalid(setupProcedureName, "cells_to_activate",
				"cell %s/%d is not served by this DU", c.PLMN, c.NCI))
		}
	}

	p.f.markConnected(resp)
	p.phase = procedure.PhaseCompleted
	return async.Return(SetupResult{Accepted: true, Response: resp, Attempts: p.attempt})
}

func (p *setupProcedure) onSetupFailure(fail *SetupFailure) async.Next {
	p.run.Log.Warn(p.ctx, "f1 setup rejected",
		logging.String("cause", fail.Cause.String()),
		logging.Int("attempt", p.attempt),
	)
	if fail.TimeToWait != nil && p.f.cfg.Setup.CanRetry(p.attempt) {
		wait := timers.TicksFor(fail.TimeToWait.Duration(), p.f.cfg.TickQuantum)
		p.phase = procedure.PhaseRetrying
		p.run.Event("waiting_before_retry", attribute.Int64("ticks", int64(wait)))
		return async.Await(async.Sleep(p.timer, wait), func(async.Result) async.Next {
			return p.sendRequest()
		})
	}
	p.phase = procedure.PhaseCompleted
	return async.Return(SetupResult{Accepted: false, Failure: fail, Attempts: p.attempt})
}
