package cucp

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/scheduler"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []pdu.Message
}

func (n *fakeNotifier) Send(_ context.Context, msg pdu.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) last() pdu.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

func newCUCP(t *testing.T, depth int) (*CUCP, *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{}
	c, err := New(Config{MaxUEs: 4, QueueDepth: depth, E1AP: e1ap.Config{ResponseTimeout: 5}},
		Dependencies{E1Notifier: n, Ctrl: executor.Inline})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, n
}

func session(id e1ap.PDUSessionID) e1ap.PDUSessionToSetup {
	return e1ap.PDUSessionToSetup{
		ID:          id,
		Type:        "ipv4",
		SNSSAI:      e1ap.SNSSAI{SST: 1},
		NGULUPTNL:   e1ap.UPTransportLayerInfo{Address: "192.0.2.1", TEID: uint32(id)},
		SecurityInd: e1ap.SecurityIndication{Confidentiality: "preferred", Integrity: "not-needed"},
		DRBs: []e1ap.DRBToSetup{{
			ID:   e1ap.DRBID(id),
			SDAP: e1ap.SDAPConfig{HeaderUL: "absent", HeaderDL: "absent"},
			PDCP: e1ap.PDCPConfig{SNSizeUL: 12, SNSizeDL: 12, RLCMode: "rlc-um-bidirectional"},
			QoSFlows: []e1ap.QoSFlowItem{{
				ID: 1,
				Params: e1ap.QoSFlowLevelParams{
					Characteristics: e1ap.QoSCharacteristics{NonDynamic: &e1ap.NonDynamic5QI{FiveQI: 9}},
					AllocationRetention: e1ap.AllocationRetentionPriority{
						PriorityLevel:           15,
						PreemptionCapability:    "shall-not-trigger-pre-emption",
						PreemptionVulnerability: "pre-emptable",
					},
				},
			}},
		}},
	}
}

func setupRequest(idx ue.Index, ids ...e1ap.PDUSessionID) PDUSessionSetupRequest {
	req := PDUSessionSetupRequest{
		UEIndex:            idx,
		Security:           e1ap.SecurityInfo{Algorithm: e1ap.SecurityAlgorithm{Ciphering: "nea0"}, EncryptionKey: []byte{1}},
		UEDLAMBR:           1e8,
		ServingPLMN:        "310260",
		ActivityNotifLevel: "ue",
	}
	for _, id := range ids {
		req.Sessions = append(req.Sessions, session(id))
	}
	return req
}

func setupItem(id uint16) e1msg.PDUSessionResourceSetupItem {
	addr, _ := e1msg.AddressFromIP("192.0.2.9")
	return e1msg.PDUSessionResourceSetupItem{
		PDUSessionID: id,
		NGDLUPTNL:    e1msg.UPTNLInfo{TransportLayerAddress: addr, TEID: e1msg.TEIDFromUint(uint32(id))},
	}
}

const cuupID = 500

// answerSetup accepts the sessions in ok and rejects those in failed.
func answerSetup(t *testing.T, c *CUCP, n *fakeNotifier, ok []uint16, failed []uint16) {
	t.Helper()
	req, isSetup := n.last().(*e1msg.BearerContextSetupRequest)
	if !isSetup {
		t.Fatalf("last sent = %T, want setup request", n.last())
	}
	ngran := &e1msg.NGRANBearerContextSetupResponse{}
	for _, id := range ok {
		ngran.Setup = append(ngran.Setup, setupItem(id))
	}
	for _, id := range failed {
		ngran.Failed = append(ngran.Failed, e1msg.PDUSessionResourceFailedItem{PDUSessionID: id})
	}
	if err := c.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{
		CUCPUEE1APID: req.CUCPUEE1APID,
		CUUPUEE1APID: cuupID,
		NGRAN:        ngran,
	}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
}

func sessions(t *testing.T, c *CUCP, idx ue.Index) []e1ap.PDUSessionID {
	t.Helper()
	ids, err := c.Sessions(idx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestFirstSessionSetupCreatesBearerContext(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, err := c.AddUE()
	if err != nil {
		t.Fatalf("AddUE: %v", err)
	}
	task, err := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1, 2))
	if err != nil {
		t.Fatalf("SetupPDUSessions: %v", err)
	}
	answerSetup(t, c, n, []uint16{1}, []uint16{2})

	res, err := async.ResultAs[PDUSessionSetupResult](task)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if res.Outcome() != "partial" || len(res.Setup) != 1 || res.Failed[0].ID != 2 {
		t.Fatalf("result = %+v", res)
	}
	if got := sessions(t, c, idx); len(got) != 1 || got[0] != 1 {
		t.Fatalf("sessions = %v", got)
	}
	if !c.E1AP().HasBearerContext(idx) {
		t.Fatalf("no bearer context")
	}
}

func TestUnrequestedSessionIsNotRecorded(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	task, err := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	if err != nil {
		t.Fatalf("SetupPDUSessions: %v", err)
	}
	answerSetup(t, c, n, []uint16{1, 9}, []uint16{1})

	if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := sessions(t, c, idx); len(got) != 0 {
		t.Fatalf("sessions = %v, want none", got)
	}
}

func TestSessionsReadableWhileRoutinesUpdate(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := c.Sessions(idx); err != nil {
				t.Errorf("Sessions: %v", err)
				return
			}
		}
	}()

	c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	answerSetup(t, c, n, []uint16{1}, nil)
	for id := uint16(2); id < 6; id++ {
		task, err := c.SetupPDUSessions(context.Background(), setupRequest(idx, e1ap.PDUSessionID(id)))
		if err != nil {
			t.Fatalf("SetupPDUSessions(%d): %v", id, err)
		}
		mod := n.last().(*e1msg.BearerContextModificationRequest)
		c.HandleMessage(context.Background(), &e1msg.BearerContextModificationResponse{
			CUCPUEE1APID: mod.CUCPUEE1APID,
			CUUPUEE1APID: cuupID,
			NGRAN:        &e1msg.NGRANBearerContextModificationResponse{Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(id)}},
		})
		if _, err := task.Result(); err != nil {
			t.Fatalf("setup %d: %v", id, err)
		}
	}
	close(stop)
	<-done

	if got := sessions(t, c, idx); len(got) != 5 {
		t.Fatalf("sessions = %v", got)
	}
}

func TestLaterSessionsUseModification(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	if _, err := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1)); err != nil {
		t.Fatalf("SetupPDUSessions: %v", err)
	}
	answerSetup(t, c, n, []uint16{1}, nil)

	task, err := c.SetupPDUSessions(context.Background(), setupRequest(idx, 3))
	if err != nil {
		t.Fatalf("SetupPDUSessions: %v", err)
	}
	mod, ok := n.last().(*e1msg.BearerContextModificationRequest)
	if !ok || mod.NGRAN == nil || len(mod.NGRAN.ToSetup) != 1 || mod.NGRAN.ToSetup[0].PDUSessionID != 3 {
		t.Fatalf("last sent = %+v", n.last())
	}
	c.HandleMessage(context.Background(), &e1msg.BearerContextModificationResponse{
		CUCPUEE1APID: mod.CUCPUEE1APID,
		CUUPUEE1APID: cuupID,
		NGRAN:        &e1msg.NGRANBearerContextModificationResponse{Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(3)}},
	})
	res, err := async.ResultAs[PDUSessionSetupResult](task)
	if err != nil || res.Outcome() != "success" {
		t.Fatalf("result = %+v, %v", res, err)
	}
	if got := sessions(t, c, idx); len(got) != 2 || got[1] != 3 {
		t.Fatalf("sessions = %v", got)
	}
}

func TestRejectedSetupFailsEverySession(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	task, _ := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1, 2))
	req := n.last().(*e1msg.BearerContextSetupRequest)
	c.HandleMessage(context.Background(), &e1msg.BearerContextSetupFailure{
		CUCPUEE1APID: req.CUCPUEE1APID,
		Cause:        e1msg.Cause{Group: 3, Value: 2},
	})
	res, err := async.ResultAs[PDUSessionSetupResult](task)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if res.Outcome() != "rejected" || len(res.Failed) != 2 || res.Failed[1].Cause != (e1ap.Cause{Group: e1ap.CauseMisc, Value: 2}) {
		t.Fatalf("result = %+v", res)
	}
	if len(sessions(t, c, idx)) != 0 {
		t.Fatalf("sessions recorded after rejection")
	}
}

func TestDuplicateSessionIsInvalid(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	task, _ := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1, 1))
	if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if n.count() != 0 {
		t.Fatalf("request sent for duplicate sessions")
	}
}

func TestRoutinesOfOneUERunInOrder(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	ambr := uint64(42)
	mod, err := c.ModifyPDUSessions(context.Background(), e1ap.BearerContextModificationRequest{UEIndex: idx, UEDLAMBR: &ambr})
	if err != nil {
		t.Fatalf("ModifyPDUSessions: %v", err)
	}
	if n.count() != 1 || mod.State() != async.StatePending {
		t.Fatalf("modification started before setup finished: sent %d, state %s", n.count(), mod.State())
	}

	answerSetup(t, c, n, []uint16{1}, nil)
	sent, ok := n.last().(*e1msg.BearerContextModificationRequest)
	if !ok || *sent.UEDLAMBR != 42 {
		t.Fatalf("last sent = %T", n.last())
	}
}

func TestReleaseDropsPendingRoutines(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	ambr := uint64(1)
	mod, _ := c.ModifyPDUSessions(context.Background(), e1ap.BearerContextModificationRequest{UEIndex: idx, UEDLAMBR: &ambr})

	release, err := c.ReleaseUE(context.Background(), idx, e1ap.Cause{Group: e1ap.CauseRadioNetwork, Value: 1})
	if err != nil {
		t.Fatalf("ReleaseUE: %v", err)
	}
	if mod.State() != async.StateCancelled {
		t.Fatalf("pending modification state = %s", mod.State())
	}

	answerSetup(t, c, n, []uint16{1}, nil)
	cmd, ok := n.last().(*e1msg.BearerContextReleaseCommand)
	if !ok {
		t.Fatalf("last sent = %T, want release command", n.last())
	}
	c.HandleMessage(context.Background(), &e1msg.BearerContextReleaseComplete{CUCPUEE1APID: cmd.CUCPUEE1APID, CUUPUEE1APID: cuupID})
	released, err := async.ResultAs[bool](release)
	if err != nil || !released {
		t.Fatalf("release = %v, %v", released, err)
	}
	if c.NumUEs() != 0 || c.E1AP().NumUEs() != 0 {
		t.Fatalf("ue left behind: cucp %d, e1ap %d", c.NumUEs(), c.E1AP().NumUEs())
	}
}

func TestCUUPReleaseRequestReleasesUE(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	answerSetup(t, c, n, []uint16{1}, nil)
	cucpID := n.last().(*e1msg.BearerContextSetupRequest).CUCPUEE1APID

	c.HandleMessage(context.Background(), &e1msg.BearerContextReleaseRequest{
		CUCPUEE1APID: cucpID,
		CUUPUEE1APID: cuupID,
		Cause:        e1msg.Cause{Group: 0, Value: 7},
	})
	cmd, ok := n.last().(*e1msg.BearerContextReleaseCommand)
	if !ok || cmd.Cause.Value != 7 {
		t.Fatalf("last sent = %+v", n.last())
	}
	c.HandleMessage(context.Background(), &e1msg.BearerContextReleaseComplete{CUCPUEE1APID: cucpID, CUUPUEE1APID: cuupID})
	if c.NumUEs() != 0 {
		t.Fatalf("ue not released")
	}
}

func TestReleaseWithoutBearerContext(t *testing.T) {
	c, n := newCUCP(t, 0)
	idx, _ := c.AddUE()
	task, err := c.ReleaseUE(context.Background(), idx, e1ap.Cause{})
	if err != nil {
		t.Fatalf("ReleaseUE: %v", err)
	}
	if released, err := async.ResultAs[bool](task); err != nil || !released {
		t.Fatalf("release = %v, %v", released, err)
	}
	if n.count() != 0 {
		t.Fatalf("sent %d messages", n.count())
	}
}

func TestQueueFull(t *testing.T) {
	c, _ := newCUCP(t, 1)
	idx, _ := c.AddUE()
	c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	ambr := uint64(1)
	if _, err := c.ModifyPDUSessions(context.Background(), e1ap.BearerContextModificationRequest{UEIndex: idx, UEDLAMBR: &ambr}); err != nil {
		t.Fatalf("first queued routine: %v", err)
	}
	_, err := c.ModifyPDUSessions(context.Background(), e1ap.BearerContextModificationRequest{UEIndex: idx, UEDLAMBR: &ambr})
	if !errors.Is(err, scheduler.ErrQueueFull) {
		t.Fatalf("err = %v, want queue full", err)
	}
	if c.Scheduler().Pending(idx) != 1 {
		t.Fatalf("pending = %d", c.Scheduler().Pending(idx))
	}
}

func TestUnknownUE(t *testing.T) {
	c, _ := newCUCP(t, 0)
	if _, err := c.SetupPDUSessions(context.Background(), setupRequest(2, 1)); !errors.Is(err, ue.ErrUnknownUE) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.ReleaseUE(context.Background(), 2, e1ap.Cause{}); !errors.Is(err, ue.ErrUnknownUE) {
		t.Fatalf("err = %v", err)
	}
}

func TestTickDrivesE1Timeout(t *testing.T) {
	c, _ := newCUCP(t, 0)
	idx, _ := c.AddUE()
	task, _ := c.SetupPDUSessions(context.Background(), setupRequest(idx, 1))
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	if _, err := task.Result(); !errors.Is(err, procedure.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if c.E1AP().NumUEs() != 0 {
		t.Fatalf("e1ap context kept after timeout")
	}
}
