package mac

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

const ueCreateProcedureName = "mac-ue-create"

// UECreateRequest asks the MAC to install a UE.
type UECreateRequest struct {
	UEIndex   ue.Index
	CellIndex CellIndex
	CRNTI     RNTI
	ULBearers []LCID
}

// UECreateResponse reports the outcome of a UE creation.
type UECreateResponse struct {
	UEIndex   ue.Index
	CellIndex CellIndex
	Result    bool
}

func (r UECreateResponse) Outcome() string {
	if r.Result {
		return "success"
	}
	return "failure"
}

type ueCreateProcedure struct {
	m   *MAC
	ctx context.Context
	run *procedure.Run
	req UECreateRequest

	ulInserted bool
	dlInserted bool
}

// CreateUE returns a task that installs the UE's uplink context on the UL
// executor, then its downlink context and scheduler configuration on the
// cell's DL executor, and finally reports the result to the ConfigNotifier
// from the control executor. On failure the contexts already installed are
// removed and a negative response is reported before the task fails.
func (m *MAC) CreateUE(ctx context.Context, req UECreateRequest) *async.Task {
	ctx, run := procedure.Begin(ctx, ueCreateProcedureName, m.log, m.cfg.Metrics,
		attribute.Int64("ue.index", int64(req.UEIndex)),
		attribute.Int64("ue.crnti", int64(req.CRNTI)),
		attribute.Int64("cell.index", int64(req.CellIndex)),
	)
	p := &ueCreateProcedure{m: m, ctx: ctx, run: run, req: req}
	return run.Attach(async.NewWithContext(ctx, ueCreateProcedureName, p.start))
}

func (p *ueCreateProcedure) start(async.Result) async.Next {
	if !p.req.UEIndex.Valid() {
		return async.Fail(procedure.Invalid(ueCreateProcedureName, "ue_index", "invalid index"))
	}
	if int(p.req.CellIndex) >= len(p.m.cells) {
		return async.Fail(fmt.Errorf("%w: %d", ErrUnknownCell, p.req.CellIndex))
	}
	return async.Await(async.Dispatch(p.m.cfg.UL), p.createUL)
}

// createUL runs on the UL executor.
func (p *ueCreateProcedure) createUL(in async.Result) async.Next {
	if in.Err != nil {
		return p.abort(fmt.Errorf("dispatch to uplink executor: %w", in.Err))
	}
	if !p.m.demux.insert(p.req.UEIndex, p.req.CRNTI, p.req.ULBearers) {
		return p.abort(fmt.Errorf("%w: %s", ErrUEExists, p.req.UEIndex))
	}
	p.ulInserted = true
	return async.Await(async.Dispatch(p.m.cfg.DL[p.req.CellIndex]), p.createDL)
}

// createDL runs on the cell's DL executor.
func (p *ueCreateProcedure) createDL(in async.Result) async.Next {
	if in.Err != nil {
		return p.abort(fmt.Errorf("dispatch to downlink executor: %w", in.Err))
	}
	if !p.m.cells[p.req.CellIndex].insert(p.req.UEIndex, p.req.CRNTI) {
		return p.abort(fmt.Errorf("%w: %s in cell %d", ErrUEExists, p.req.UEIndex, p.req.CellIndex))
	}
	p.dlInserted = true

	txn, err := p.m.sched.Begin(p.req.UEIndex)
	if err != nil {
		return p.abort(fmt.Errorf("scheduler configuration: %w", err))
	}
	p.run.Log.Debug(p.ctx, "sched ue config started", logging.String("ue", p.req.UEIndex.String()))
	p.m.cfg.Scheduler.ConfigureUE(p.req.UEIndex, p.req.CellIndex, p.req.CRNTI)

	var wait async.Awaitable = txn
	if p.m.cfg.Timers != nil && p.m.cfg.SchedConfigTimeout > 0 {
		timer := p.m.cfg.Timers.CreateOn(p.m.cfg.Ctrl)
		wait = async.WithTimeout(txn, timer, p.m.cfg.SchedConfigTimeout)
	}
	return async.Await(wait, p.onSchedConfigured)
}

func (p *ueCreateProcedure) onSchedConfigured(in async.Result) async.Next {
	if errors.Is(in.Err, async.ErrTimedOut) {
		return p.abort(fmt.Errorf("scheduler configuration: %w", procedure.ErrTimeout))
	}
	if in.Err != nil {
		return p.abort(fmt.Errorf("scheduler configuration: %w", in.Err))
	}
	p.run.Event("sched_configured")
	return async.Await(async.Dispatch(p.m.cfg.Ctrl), func(in async.Result) async.Next {
		if in.Err != nil {
			return async.Fail(fmt.Errorf("dispatch to control executor: %w", in.Err))
		}
		return async.Return(p.respond(true))
	})
}

// abort undoes what was installed and reports a negative result from the
// control executor.
func (p *ueCreateProcedure) abort(cause error) async.Next {
	if p.ulInserted {
		p.m.demux.remove(p.req.UEIndex)
	}
	if p.dlInserted {
		p.m.cells[p.req.CellIndex].remove(p.req.UEIndex)
	}
	err := fmt.Errorf("%s: %w", ueCreateProcedureName, cause)
	return async.Await(async.Dispatch(p.m.cfg.Ctrl), func(async.Result) async.Next {
		p.respond(false)
		return async.Fail(err)
	})
}

func (p *ueCreateProcedure) respond(ok bool) UECreateResponse {
	resp := UECreateResponse{UEIndex: p.req.UEIndex, CellIndex: p.req.CellIndex, Result: ok}
	if p.m.cfg.Notifier != nil {
		p.m.cfg.Notifier.OnUECreateComplete(resp)
	}
	return resp
}
