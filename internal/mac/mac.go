// Package mac holds the MAC control surface used by the DU manager: UE
// contexts in the uplink demultiplexer and the per-cell downlink entities,
// and the UE creation procedure that installs them.
package mac

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/transaction"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

var (
	// ErrUEExists is returned when a UE index is already installed.
	ErrUEExists = errors.New("mac: ue already exists")
	// ErrUnknownCell is returned for a cell index with no downlink executor.
	ErrUnknownCell = errors.New("mac: unknown cell")
)

// RNTI is a radio network temporary identifier.
type RNTI uint16

// LCID is a logical channel id.
type LCID uint8

// CellIndex is the DU-local index of a cell.
type CellIndex uint16

// SchedulerConfigurator is the MAC scheduler's UE configuration interface.
// ConfigureUE is called on the cell's downlink executor; the scheduler
// answers through MAC.HandleSchedUEConfigResponse.
type SchedulerConfigurator interface {
	ConfigureUE(idx ue.Index, cell CellIndex, crnti RNTI)
}

// ConfigNotifier receives the results of UE configuration procedures on the
// control executor.
type ConfigNotifier interface {
	OnUECreateComplete(resp UECreateResponse)
}

// Config holds the MAC executors and collaborators.
type Config struct {
	Ctrl executor.Executor
	UL   executor.Executor
	// DL is indexed by CellIndex.
	DL        []executor.Executor
	Scheduler SchedulerConfigurator
	Notifier  ConfigNotifier
	// Timers, when set together with SchedConfigTimeout, guards the wait for
	// the scheduler's configuration response.
	Timers             *timers.Manager
	SchedConfigTimeout uint32
	Log                logging.Logger
	Metrics            procedure.Recorder
	Misses             transaction.MissRecorder
}

type ulUE struct {
	crnti   RNTI
	bearers map[LCID]struct{}
}

// demux is the uplink demultiplexer's view of UE contexts.
type demux struct {
	mu  sync.Mutex
	ues map[ue.Index]*ulUE
}

func (d *demux) insert(idx ue.Index, crnti RNTI, lcids []LCID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ues[idx]; ok {
		return false
	}
	u := &ulUE{crnti: crnti, bearers: make(map[LCID]struct{}, len(lcids))}
	for _, l := range lcids {
		u.bearers[l] = struct{}{}
	}
	d.ues[idx] = u
	return true
}

func (d *demux) remove(idx ue.Index) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ues[idx]
	delete(d.ues, idx)
	return ok
}

func (d *demux) get(idx ue.Index) (*ulUE, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.ues[idx]
	return u, ok
}

// dlEntities holds the downlink UE contexts of one cell.
type dlEntities struct {
	mu  sync.Mutex
	ues map[ue.Index]RNTI
}

func (d *dlEntities) insert(idx ue.Index, crnti RNTI) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ues[idx]; ok {
		return false
	}
	d.ues[idx] = crnti
	return true
}

func (d *dlEntities) remove(idx ue.Index) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ues, idx)
}

func (d *dlEntities) contains(idx ue.Index) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ues[idx]
	return ok
}

// MAC is the control side of the MAC layer.
type MAC struct {
	cfg   Config
	log   logging.Logger
	demux demux
	cells []*dlEntities
	// pending scheduler configurations, keyed by UE.
	sched *transaction.Manager[ue.Index]
}

// New validates cfg and returns a MAC.
func New(cfg Config) (*MAC, error) {
	if cfg.Ctrl == nil || cfg.UL == nil {
		return nil, fmt.Errorf("mac: control and uplink executors are required")
	}
	if len(cfg.DL) == 0 {
		return nil, fmt.Errorf("mac: at least one downlink executor is required")
	}
	for i, e := range cfg.DL {
		if e == nil {
			return nil, fmt.Errorf("mac: downlink executor %d is nil", i)
		}
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("mac: scheduler configurator is nil")
	}
	log := logging.OrNoop(cfg.Log).With(logging.String("component", "mac"))
	m := &MAC{
		cfg:   cfg,
		log:   log,
		demux: demux{ues: make(map[ue.Index]*ulUE)},
		cells: make([]*dlEntities, len(cfg.DL)),
		sched: transaction.NewManager[ue.Index]("mac-sched", log, cfg.Misses),
	}
	for i := range m.cells {
		m.cells[i] = &dlEntities{ues: make(map[ue.Index]RNTI)}
	}
	return m, nil
}

// HandleSchedUEConfigResponse is called by the scheduler once a UE
// configuration is applied. It reports false when no creation awaited it.
func (m *MAC) HandleSchedUEConfigResponse(idx ue.Index) bool {
	return m.sched.Deliver(idx, nil)
}

// HasUE reports whether idx has an uplink context.
func (m *MAC) HasUE(idx ue.Index) bool {
	_, ok := m.demux.get(idx)
	return ok
}

// CRNTI returns the C-RNTI of an installed UE.
func (m *MAC) CRNTI(idx ue.Index) (RNTI, bool) {
	u, ok := m.demux.get(idx)
	if !ok {
		return 0, false
	}
	return u.crnti, true
}

// HasDLContext reports whether cell has a downlink context for idx.
func (m *MAC) HasDLContext(cell CellIndex, idx ue.Index) bool {
	if int(cell) >= len(m.cells) {
		return false
	}
	return m.cells[cell].contains(idx)
}

// RemoveUE drops the UE's uplink and downlink contexts.
func (m *MAC) RemoveUE(idx ue.Index) bool {
	removed := m.demux.remove(idx)
	for _, c := range m.cells {
		c.remove(idx)
	}
	if removed {
		m.log.Debug(context.Background(), "ue removed from mac", logging.String("ue", idx.String()))
	}
	return removed
}
