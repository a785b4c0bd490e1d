// Package e1ap is the CU-CP side of the E1 interface towards the CU-UP:
// bearer context setup, modification and release for each UE, and the
// handling of CU-UP initiated messages.
package e1ap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/transaction"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

const defaultMaxUEIDs = 1 << 16

var (
	// ErrUnexpectedMessage is returned by HandleMessage for messages the
	// CU-CP never receives.
	ErrUnexpectedMessage = errors.New("e1ap: unexpected message")
	// ErrContextExists is returned when setting up a bearer context for a UE
	// that already has one.
	ErrContextExists = errors.New("e1ap: bearer context already exists")
	// ErrNoFreeID is returned when every gNB-CU-CP UE E1AP ID is in use.
	ErrNoFreeID = errors.New("e1ap: no free gNB-CU-CP UE E1AP ID")
)

// Config holds E1AP settings.
type Config struct {
	// ResponseTimeout guards every request, in timer ticks.
	ResponseTimeout uint32
	// MaxUEIDs bounds the gNB-CU-CP UE E1AP ID space.
	MaxUEIDs uint32
}

// IndicationNotifier is told about CU-UP initiated requests.
type IndicationNotifier interface {
	OnBearerContextReleaseRequest(idx ue.Index, cause Cause)
}

// Dependencies are the collaborators of E1AP.
type Dependencies struct {
	Notifier pdu.Notifier
	Timers   *timers.Manager
	// Ctrl is the CU-CP control executor. Responses and indications are
	// re-posted onto it, and procedure timers fire on it.
	Ctrl        executor.Executor
	Indications IndicationNotifier
	Log         logging.Logger
	Metrics     procedure.Recorder
	Misses      transaction.MissRecorder
}

type ueContext struct {
	idx    ue.Index
	cucpID uint32
	cuupID uint32
	// established is set once the CU-UP has accepted a bearer context.
	established bool
}

// E1AP is the CU-CP's E1AP entity.
type E1AP struct {
	cfg         Config
	notifier    pdu.Notifier
	timers      *timers.Manager
	ctrl        executor.Executor
	indications IndicationNotifier
	log         logging.Logger
	metrics     procedure.Recorder
	misses      transaction.MissRecorder

	// outstanding requests, keyed by gNB-CU-CP UE E1AP ID.
	txns *transaction.Manager[uint32]
	ids  *transaction.IDPool

	mu     sync.Mutex
	byUE   map[ue.Index]*ueContext
	byCUCP map[uint32]*ueContext
}

// New wires an E1AP entity.
func New(cfg Config, deps Dependencies) (*E1AP, error) {
	if deps.Notifier == nil {
		return nil, fmt.Errorf("e1ap: notifier is nil")
	}
	if deps.Timers == nil {
		return nil, fmt.Errorf("e1ap: timer manager is nil")
	}
	if deps.Ctrl == nil {
		return nil, fmt.Errorf("e1ap: control executor is nil")
	}
	if cfg.MaxUEIDs == 0 {
		cfg.MaxUEIDs = defaultMaxUEIDs
	}
	log := logging.OrNoop(deps.Log).With(logging.String("component", "e1ap"))
	return &E1AP{
		cfg:         cfg,
		notifier:    deps.Notifier,
		timers:      deps.Timers,
		ctrl:        deps.Ctrl,
		indications: deps.Indications,
		log:         log,
		metrics:     deps.Metrics,
		misses:      deps.Misses,
		txns:        transaction.NewManager[uint32]("e1ap", log, deps.Misses),
		ids:         transaction.NewIDPool(cfg.MaxUEIDs),
		byUE:        make(map[ue.Index]*ueContext),
		byCUCP:      make(map[uint32]*ueContext),
	}, nil
}

// NumUEs returns the number of UEs with an E1AP context.
func (e *E1AP) NumUEs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byUE)
}

// HasBearerContext reports whether the CU-UP holds a bearer context for idx.
func (e *E1AP) HasBearerContext(idx ue.Index) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byUE[idx]
	return ok && c.established
}

// allocate creates the E1AP context of a UE with a fresh gNB-CU-CP UE E1AP
// ID.
func (e *E1AP) allocate(idx ue.Index) (ueContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.byUE[idx]; ok {
		if c.established {
			return ueContext{}, fmt.Errorf("%w: %s", ErrContextExists, idx)
		}
		return *c, nil
	}
	id, ok := e.ids.Next(func(id uint32) bool {
		_, used := e.byCUCP[id]
		return used
	})
	if !ok {
		return ueContext{}, ErrNoFreeID
	}
	c := &ueContext{idx: idx, cucpID: id}
	e.byUE[idx] = c
	e.byCUCP[id] = c
	return *c, nil
}

func (e *E1AP) lookup(idx ue.Index) (ueContext, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byUE[idx]
	if !ok {
		return ueContext{}, false
	}
	return *c, true
}

func (e *E1AP) establish(idx ue.Index, cuupID uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.byUE[idx]; ok {
		c.cuupID = cuupID
		c.established = true
	}
}

// RemoveUE drops the UE's E1AP context and aborts its outstanding request,
// if any. It does not signal the CU-UP.
func (e *E1AP) RemoveUE(idx ue.Index) bool {
	e.mu.Lock()
	c, ok := e.byUE[idx]
	if ok {
		delete(e.byUE, idx)
		delete(e.byCUCP, c.cucpID)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.txns.Abort(c.cucpID, transaction.ErrAborted)
	return true
}

// OnResponse delivers a response correlated by gNB-CU-CP UE E1AP ID, on the
// control executor.
func (e *E1AP) OnResponse(cucpID uint32, msg pdu.Message) {
	if !e.ctrl.Execute(func() { e.txns.Deliver(cucpID, msg) }) {
		e.log.Warn(context.Background(), "e1ap response dropped: control executor refused it",
			logging.Uint64("cu_cp_ue_e1ap_id", uint64(cucpID)),
			logging.String("message", msg.MessageType()),
		)
	}
}

// OnIndication handles a CU-UP initiated message on the control executor.
func (e *E1AP) OnIndication(msg pdu.Message) {
	if !e.ctrl.Execute(func() { e.handleIndication(msg) }) {
		e.log.Warn(context.Background(), "e1ap indication dropped: control executor refused it",
			logging.String("message", msg.MessageType()),
		)
	}
}

// HandleMessage routes a received message to OnResponse or OnIndication.
func (e *E1AP) HandleMessage(_ context.Context, msg pdu.Message) error {
	switch m := msg.(type) {
	case *e1msg.BearerContextSetupResponse:
		e.OnResponse(m.CUCPUEE1APID, m)
	case *e1msg.BearerContextSetupFailure:
		e.OnResponse(m.CUCPUEE1APID, m)
	case *e1msg.BearerContextModificationResponse:
		e.OnResponse(m.CUCPUEE1APID, m)
	case *e1msg.BearerContextModificationFailure:
		e.OnResponse(m.CUCPUEE1APID, m)
	case *e1msg.BearerContextReleaseComplete:
		e.OnResponse(m.CUCPUEE1APID, m)
	case *e1msg.BearerContextReleaseRequest:
		e.OnIndication(m)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.MessageType())
	}
	return nil
}

func (e *E1AP) handleIndication(msg pdu.Message) {
	req, ok := msg.(*e1msg.BearerContextReleaseRequest)
	if !ok {
		e.log.Warn(context.Background(), "unsupported e1ap indication", logging.String("message", msg.MessageType()))
		return
	}

	e.mu.Lock()
	c, found := e.byCUCP[req.CUCPUEE1APID]
	var idx ue.Index
	if found {
		idx = c.idx
	}
	e.mu.Unlock()
	if !found {
		e.log.Warn(context.Background(), "bearer context release request for unknown ue",
			logging.Uint64("cu_cp_ue_e1ap_id", uint64(req.CUCPUEE1APID)),
		)
		if e.misses != nil {
			e.misses.IncCorrelationMiss("e1ap")
		}
		return
	}

	conv := &converter{proc: "e1-bearer-context-release-request"}
	cause := conv.causeFromPeer("cause", req.Cause)
	if conv.err != nil {
		e.log.Warn(context.Background(), "malformed bearer context release request", logging.Err(conv.err))
		return
	}
	e.log.Info(context.Background(), "cu-up requested bearer context release",
		logging.String("ue", idx.String()),
		logging.String("cause", cause.String()),
	)
	if e.indications != nil {
		e.indications.OnBearerContextReleaseRequest(idx, cause)
	}
}
