// Package cucp assembles the CU-CP control plane: the UE repository, a per-UE
// task scheduler and the E1AP entity towards the CU-UP. UE routines run as
// tasks on the UE's control loop and await the E1AP procedures as
// sub-tasks.
package cucp

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/scheduler"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/transaction"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

// Config holds CU-CP settings.
type Config struct {
	MaxUEs     int
	QueueDepth int
	E1AP       e1ap.Config
}

// Metrics groups the recorders the CU-CP feeds.
type Metrics interface {
	procedure.Recorder
	scheduler.MetricsRecorder
	timers.MetricsRecorder
	transaction.MissRecorder
}

// Dependencies are the executors and peers of the CU-CP.
type Dependencies struct {
	// E1Notifier carries E1AP messages to the CU-UP.
	E1Notifier pdu.Notifier
	Ctrl       executor.Executor
	Log        logging.Logger
	Metrics    Metrics
}

// UEContext is what the CU-CP keeps per UE.
type UEContext struct {
	// Sessions are the PDU sessions the CU-UP holds for the UE. The map is
	// read-only once stored.
	Sessions map[e1ap.PDUSessionID]struct{}
}

// CUCP is the CU-CP control plane.
type CUCP struct {
	log     logging.Logger
	metrics procedure.Recorder
	timers  *timers.Manager
	ues     *ue.Repository[UEContext]
	sched   *scheduler.TaskScheduler
	e1      *e1ap.E1AP
}

// New wires the CU-CP.
func New(cfg Config, deps Dependencies) (*CUCP, error) {
	if cfg.MaxUEs <= 0 {
		return nil, fmt.Errorf("cucp: max ues must be positive, got %d", cfg.MaxUEs)
	}
	if deps.Ctrl == nil {
		return nil, fmt.Errorf("cucp: control executor is nil")
	}
	log := logging.OrNoop(deps.Log).With(logging.String("component", "cucp"))
	c := &CUCP{
		log: log,
		ues: ue.NewRepository[UEContext](cfg.MaxUEs),
	}

	timerOpts := []timers.Option{timers.WithLogger(log)}
	schedOpts := []scheduler.Option{scheduler.WithLogger(log)}
	e1deps := e1ap.Dependencies{
		Notifier:    deps.E1Notifier,
		Ctrl:        deps.Ctrl,
		Indications: c,
		Log:         log,
	}
	if deps.Metrics != nil {
		timerOpts = append(timerOpts, timers.WithMetrics(deps.Metrics))
		schedOpts = append(schedOpts, scheduler.WithMetrics(deps.Metrics))
		c.metrics = deps.Metrics
		e1deps.Metrics = deps.Metrics
		e1deps.Misses = deps.Metrics
	}
	c.timers = timers.NewManager(timerOpts...)
	schedOpts = append(schedOpts, scheduler.WithTimers(c.timers, deps.Ctrl))
	c.sched = scheduler.New(cfg.MaxUEs, cfg.QueueDepth, schedOpts...)

	e1deps.Timers = c.timers
	e1, err := e1ap.New(cfg.E1AP, e1deps)
	if err != nil {
		return nil, fmt.Errorf("cucp: %w", err)
	}
	c.e1 = e1
	return c, nil
}

// E1AP returns the E1AP entity.
func (c *CUCP) E1AP() *e1ap.E1AP { return c.e1 }

// Scheduler returns the per-UE task scheduler.
func (c *CUCP) Scheduler() *scheduler.TaskScheduler { return c.sched }

// Timers returns the timer manager advanced by Tick.
func (c *CUCP) Timers() *timers.Manager { return c.timers }

// Tick advances the CU-CP timers by one quantum.
func (c *CUCP) Tick() { c.timers.Tick() }

// HandleMessage routes a message received from the CU-UP to E1AP.
func (c *CUCP) HandleMessage(ctx context.Context, msg pdu.Message) error {
	return c.e1.HandleMessage(ctx, msg)
}

// AddUE allocates a UE.
func (c *CUCP) AddUE() (ue.Index, error) {
	idx, err := c.ues.Allocate(UEContext{Sessions: make(map[e1ap.PDUSessionID]struct{})})
	if err != nil {
		return ue.InvalidIndex, fmt.Errorf("cucp: add ue: %w", err)
	}
	c.log.Debug(context.Background(), "ue added", logging.String("ue", idx.String()))
	return idx, nil
}

// NumUEs returns the number of allocated UEs.
func (c *CUCP) NumUEs() int { return c.ues.Len() }

// Sessions returns the PDU sessions established for idx.
func (c *CUCP) Sessions(idx ue.Index) ([]e1ap.PDUSessionID, error) {
	u, err := c.ues.Get(idx)
	if err != nil {
		return nil, err
	}
	out := make([]e1ap.PDUSessionID, 0, len(u.Sessions))
	for id := range u.Sessions {
		out = append(out, id)
	}
	return out, nil
}

// schedule submits a UE routine after checking that the UE exists. A
// routine that could not be submitted is cancelled.
func (c *CUCP) schedule(idx ue.Index, t *async.Task) error {
	if !c.ues.Contains(idx) {
		t.Cancel()
		return fmt.Errorf("cucp: %w: %s", ue.ErrUnknownUE, idx)
	}
	if err := c.sched.Schedule(idx, t); err != nil {
		t.Cancel()
		return fmt.Errorf("cucp: %s: %w", t.Name(), err)
	}
	return nil
}

// updateSessions applies added and removed sessions to the UE context. A UE
// released meanwhile is ignored. The session set is replaced, never written
// in place, so a map obtained from Get stays immutable.
func (c *CUCP) updateSessions(idx ue.Index, added []e1ap.PDUSessionID, removed []e1ap.PDUSessionID) {
	_ = c.ues.Update(idx, func(u UEContext) UEContext {
		next := make(map[e1ap.PDUSessionID]struct{}, len(u.Sessions)+len(added))
		for id := range u.Sessions {
			next[id] = struct{}{}
		}
		for _, id := range added {
			next[id] = struct{}{}
		}
		for _, id := range removed {
			delete(next, id)
		}
		u.Sessions = next
		return u
	})
}
