// Package f1ap is the DU side of the F1 control interface: F1 setup towards
// the CU and the handling of CU-initiated messages.
package f1ap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/transaction"
)

// ErrUnexpectedMessage is returned by HandleMessage for messages the DU
// never receives.
var ErrUnexpectedMessage = errors.New("f1ap: unexpected message")

// Config holds F1AP settings. Durations are in ticks of the timer manager.
type Config struct {
	Setup procedure.RetryPolicy
	// ResponseTimeout guards every F1 Setup Request attempt.
	ResponseTimeout uint32
	// TickQuantum converts a CU-imposed TimeToWait into ticks.
	TickQuantum time.Duration
}

// IndicationNotifier is told about CU-initiated changes.
type IndicationNotifier interface {
	OnCellsActivated(cells []NRCGI)
	OnCellsDeactivated(cells []NRCGI)
}

// Dependencies are the collaborators of F1AP.
type Dependencies struct {
	// Notifier carries messages to the CU.
	Notifier pdu.Notifier
	// Timers creates the procedure timers; callbacks run on Ctrl.
	Timers *timers.Manager
	// Ctrl is the DU control executor. Responses and indications are
	// re-posted onto it.
	Ctrl        executor.Executor
	Indications IndicationNotifier
	Log         logging.Logger
	Metrics     procedure.Recorder
	Misses      transaction.MissRecorder
}

// F1AP is the DU's F1AP entity.
type F1AP struct {
	cfg         Config
	notifier    pdu.Notifier
	timers      *timers.Manager
	ctrl        executor.Executor
	indications IndicationNotifier
	log         logging.Logger
	metrics     procedure.Recorder

	txns *transaction.Manager[uint8]
	ids  *transaction.IDPool

	mu          sync.Mutex
	connected   bool
	cuName      string
	activeCells map[NRCGI]struct{}
}

// New wires an F1AP entity.
func New(cfg Config, deps Dependencies) (*F1AP, error) {
	if deps.Notifier == nil {
		return nil, fmt.Errorf("f1ap: notifier is nil")
	}
	if deps.Timers == nil {
		return nil, fmt.Errorf("f1ap: timer manager is nil")
	}
	if deps.Ctrl == nil {
		return nil, fmt.Errorf("f1ap: control executor is nil")
	}
	if cfg.TickQuantum <= 0 {
		cfg.TickQuantum = time.Millisecond
	}
	log := logging.OrNoop(deps.Log).With(logging.String("component", "f1ap"))
	return &F1AP{
		cfg:         cfg,
		notifier:    deps.Notifier,
		timers:      deps.Timers,
		ctrl:        deps.Ctrl,
		indications: deps.Indications,
		log:         log,
		metrics:     deps.Metrics,
		txns:        transaction.NewManager[uint8]("f1ap", log, deps.Misses),
		ids:         transaction.NewIDPool(256),
		activeCells: make(map[NRCGI]struct{}),
	}, nil
}

// Connected reports whether an F1 setup succeeded.
func (f *F1AP) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// CUName returns the name the CU announced, if any.
func (f *F1AP) CUName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cuName
}

// ActiveCells returns the number of cells the CU activated.
func (f *F1AP) ActiveCells() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.activeCells)
}

// OnResponse delivers a response correlated by transaction id. Delivery
// happens on the control executor.
func (f *F1AP) OnResponse(key uint8, msg pdu.Message) {
	if !f.ctrl.Execute(func() { f.txns.Deliver(key, msg) }) {
		f.log.Warn(context.Background(), "f1ap response dropped: control executor refused it",
			logging.Int("transaction_id", int(key)),
			logging.String("message", msg.MessageType()),
		)
	}
}

// OnIndication handles a CU-initiated message on the control executor.
func (f *F1AP) OnIndication(msg pdu.Message) {
	if !f.ctrl.Execute(func() { f.handleIndication(msg) }) {
		f.log.Warn(context.Background(), "f1ap indication dropped: control executor refused it",
			logging.String("message", msg.MessageType()),
		)
	}
}

// HandleMessage routes a received message to OnResponse or OnIndication.
func (f *F1AP) HandleMessage(_ context.Context, msg pdu.Message) error {
	switch m := msg.(type) {
	case *SetupResponse:
		f.OnResponse(m.TransactionID, m)
	case *SetupFailure:
		f.OnResponse(m.TransactionID, m)
	case *CUConfigurationUpdate:
		f.OnIndication(m)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.MessageType())
	}
	return nil
}

func (f *F1AP) handleIndication(msg pdu.Message) {
	upd, ok := msg.(*CUConfigurationUpdate)
	if !ok {
		f.log.Warn(context.Background(), "unsupported f1ap indication", logging.String("message", msg.MessageType()))
		return
	}

	f.mu.Lock()
	for _, c := range upd.CellsToActivate {
		f.activeCells[c] = struct{}{}
	}
	for _, c := range upd.CellsToDeactivate {
		delete(f.activeCells, c)
	}
	f.mu.Unlock()

	if f.indications != nil {
		if len(upd.CellsToActivate) > 0 {
			f.indications.OnCellsActivated(upd.CellsToActivate)
		}
		if len(upd.CellsToDeactivate) > 0 {
			f.indications.OnCellsDeactivated(upd.CellsToDeactivate)
		}
	}

	ack := &CUConfigurationUpdateAcknowledge{TransactionID: upd.TransactionID}
	if err := f.notifier.Send(context.Background(), ack); err != nil {
		f.log.Error(context.Background(), "failed to acknowledge gNB-CU configuration update", logging.Err(err))
	}
}

func (f *F1AP) markConnected(resp *SetupResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	if resp.CUName != nil {
		f.cuName = *resp.CUName
	}
	for _, c := range resp.CellsToActivate {
		f.activeCells[c] = struct{}{}
	}
}
