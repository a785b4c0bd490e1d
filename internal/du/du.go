// Package du assembles the DU-high control plane: the F1AP entity towards
// the CU, the MAC UE contexts, a per-UE task scheduler and the timer manager
// that all of them share. Timers advance once per subframe, driven by slot
// indications.
package du

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/f1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/mac"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/scheduler"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/transaction"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

const maxNumerology = 4

// ErrUEIndexOutOfRange is returned for UE indices beyond the configured UE
// count.
var ErrUEIndexOutOfRange = errors.New("du: ue index out of range")

// Config holds DU-high settings.
type Config struct {
	// Numerology selects the subcarrier spacing; a subframe holds
	// 1<<Numerology slots.
	Numerology uint8
	MaxUEs     int
	QueueDepth int
	F1AP       f1ap.Config
	// SchedConfigTimeout bounds the wait for the MAC scheduler during UE
	// creation, in ticks. Zero waits forever.
	SchedConfigTimeout uint32
}

// Metrics groups the recorders the DU feeds. Any of them may be nil.
type Metrics interface {
	procedure.Recorder
	scheduler.MetricsRecorder
	timers.MetricsRecorder
	transaction.MissRecorder
}

// Dependencies are the executors and peers of the DU-high.
type Dependencies struct {
	// F1Notifier carries F1AP messages to the CU.
	F1Notifier pdu.Notifier
	Ctrl       executor.Executor
	UL         executor.Executor
	// DL holds one executor per cell.
	DL           []executor.Executor
	MACScheduler mac.SchedulerConfigurator
	// Cells is told about cells the CU activates or deactivates.
	Cells   f1ap.IndicationNotifier
	Log     logging.Logger
	Metrics Metrics
}

// DU is the DU-high control plane.
type DU struct {
	cfg    Config
	log    logging.Logger
	timers *timers.Manager
	f1     *f1ap.F1AP
	mac    *mac.MAC
	sched  *scheduler.TaskScheduler

	slotsPerSubframe uint64

	mu      sync.Mutex
	slot    uint64
	created map[ue.Index]mac.UECreateResponse
}

// New wires the DU-high.
func New(cfg Config, deps Dependencies) (*DU, error) {
	if cfg.Numerology > maxNumerology {
		return nil, fmt.Errorf("du: numerology %d above %d", cfg.Numerology, maxNumerology)
	}
	if cfg.MaxUEs <= 0 {
		return nil, fmt.Errorf("du: max ues must be positive, got %d", cfg.MaxUEs)
	}
	if deps.Ctrl == nil {
		return nil, fmt.Errorf("du: control executor is nil")
	}
	log := logging.OrNoop(deps.Log).With(logging.String("component", "du"))

	d := &DU{
		cfg:              cfg,
		log:              log,
		slotsPerSubframe: 1 << cfg.Numerology,
		created:          make(map[ue.Index]mac.UECreateResponse),
	}

	var (
		procMetrics  procedure.Recorder
		schedMetrics scheduler.MetricsRecorder
		misses       transaction.MissRecorder
		timerOpts    = []timers.Option{timers.WithLogger(log)}
	)
	if deps.Metrics != nil {
		procMetrics, schedMetrics, misses = deps.Metrics, deps.Metrics, deps.Metrics
		timerOpts = append(timerOpts, timers.WithMetrics(deps.Metrics))
	}
	d.timers = timers.NewManager(timerOpts...)

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithTimers(d.timers, deps.Ctrl),
	}
	if schedMetrics != nil {
		schedOpts = append(schedOpts, scheduler.WithMetrics(schedMetrics))
	}
	d.sched = scheduler.New(cfg.MaxUEs, cfg.QueueDepth, schedOpts...)

	f1, err := f1ap.New(cfg.F1AP, f1ap.Dependencies{
		Notifier:    deps.F1Notifier,
		Timers:      d.timers,
		Ctrl:        deps.Ctrl,
		Indications: deps.Cells,
		Log:         log,
		Metrics:     procMetrics,
		Misses:      misses,
	})
	if err != nil {
		return nil, fmt.Errorf("du: %w", err)
	}
	d.f1 = f1

	m, err := mac.New(mac.Config{
		Ctrl:               deps.Ctrl,
		UL:                 deps.UL,
		DL:                 deps.DL,
		Scheduler:          deps.MACScheduler,
		Notifier:           d,
		Timers:             d.timers,
		SchedConfigTimeout: cfg.SchedConfigTimeout,
		Log:                log,
		Metrics:            procMetrics,
		Misses:             misses,
	})
	if err != nil {
		return nil, fmt.Errorf("du: %w", err)
	}
	d.mac = m
	return d, nil
}

// F1AP returns the F1AP entity.
func (d *DU) F1AP() *f1ap.F1AP { return d.f1 }

// MAC returns the MAC entity.
func (d *DU) MAC() *mac.MAC { return d.mac }

// Timers returns the timer manager ticked by HandleSlot.
func (d *DU) Timers() *timers.Manager { return d.timers }

// Scheduler returns the per-UE task scheduler.
func (d *DU) Scheduler() *scheduler.TaskScheduler { return d.sched }

// HandleSlot is called once per slot. Timers advance on the first slot of
// every subframe.
func (d *DU) HandleSlot() {
	d.mu.Lock()
	slot := d.slot
	d.slot++
	d.mu.Unlock()
	if slot%d.slotsPerSubframe == 0 {
		d.timers.Tick()
	}
}

// HandleMessage routes a message received from the CU to F1AP.
func (d *DU) HandleMessage(ctx context.Context, msg pdu.Message) error {
	return d.f1.HandleMessage(ctx, msg)
}

// ConnectToCU runs F1 setup for the served cells.
func (d *DU) ConnectToCU(ctx context.Context, req f1ap.SetupRequest) *async.Task {
	t := d.f1.Setup(ctx, req)
	t.OnComplete(func(t *async.Task) {
		res, err := async.ResultAs[f1ap.SetupResult](t)
		switch {
		case err != nil:
			d.log.Error(ctx, "f1 setup failed", logging.Err(err))
		case !res.Accepted:
			d.log.Warn(ctx, "f1 setup rejected by cu", logging.Int("attempts", res.Attempts))
		default:
			d.log.Info(ctx, "du connected to cu",
				logging.String("cu_name", d.f1.CUName()),
				logging.Int("active_cells", d.f1.ActiveCells()),
			)
		}
	})
	t.Start()
	return t
}

func (d *DU) checkIndex(idx ue.Index) error {
	if !idx.Valid() || int64(idx) >= int64(d.sched.Capacity()) {
		return fmt.Errorf("%w: %s", ErrUEIndexOutOfRange, idx)
	}
	return nil
}

// CreateUE schedules a MAC UE creation on the UE's control loop. done, when
// not nil, is called once with the outcome of this creation. A creation that
// fails or is cancelled reports a negative response.
func (d *DU) CreateUE(ctx context.Context, req mac.UECreateRequest, done func(mac.UECreateResponse)) (*async.Task, error) {
	if err := d.checkIndex(req.UEIndex); err != nil {
		return nil, err
	}
	t := d.mac.CreateUE(ctx, req)
	if err := d.sched.Schedule(req.UEIndex, t); err != nil {
		t.Cancel()
		return nil, fmt.Errorf("du: create %s: %w", req.UEIndex, err)
	}
	if done != nil {
		t.OnComplete(func(t *async.Task) {
			resp, err := async.ResultAs[mac.UECreateResponse](t)
			if err != nil {
				resp = mac.UECreateResponse{UEIndex: req.UEIndex, CellIndex: req.CellIndex}
			}
			done(resp)
		})
	}
	return t, nil
}

// OnUECreateComplete implements mac.ConfigNotifier.
func (d *DU) OnUECreateComplete(resp mac.UECreateResponse) {
	if resp.Result {
		d.mu.Lock()
		d.created[resp.UEIndex] = resp
		d.mu.Unlock()
	}
	d.log.Info(context.Background(), "ue creation finished",
		logging.String("ue", resp.UEIndex.String()),
		logging.String("outcome", resp.Outcome()),
	)
}

// NumUEs returns the number of UEs created successfully and not removed.
func (d *DU) NumUEs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.created)
}

// RemoveUE drops the UE's pending tasks and schedules the removal of its MAC
// contexts behind the task currently running for it.
func (d *DU) RemoveUE(ctx context.Context, idx ue.Index) (*async.Task, error) {
	if err := d.checkIndex(idx); err != nil {
		return nil, err
	}
	if n := d.sched.ClearPendingTasks(idx); n > 0 {
		d.log.Debug(ctx, "dropped pending ue tasks before removal",
			logging.String("ue", idx.String()),
			logging.Int("count", n),
		)
	}
	t := async.NewWithContext(ctx, "du-ue-remove", func(async.Result) async.Next {
		removed := d.mac.RemoveUE(idx)
		d.mu.Lock()
		delete(d.created, idx)
		d.mu.Unlock()
		return async.Return(removed)
	})
	if err := d.sched.Schedule(idx, t); err != nil {
		t.Cancel()
		return nil, fmt.Errorf("du: remove %s: %w", idx, err)
	}
	return t, nil
}
