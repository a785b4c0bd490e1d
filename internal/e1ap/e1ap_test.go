package e1ap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
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

func (n *fakeNotifier) last() pdu.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	return n.sent[len(n.sent)-1]
}

type missCounter struct{ n int }

func (m *missCounter) IncCorrelationMiss(string) { m.n++ }

type releaseRequests struct {
	idx   []ue.Index
	cause []Cause
}

func (r *releaseRequests) OnBearerContextReleaseRequest(idx ue.Index, cause Cause) {
	r.idx = append(r.idx, idx)
	r.cause = append(r.cause, cause)
}

type fixture struct {
	e        *E1AP
	notifier *fakeNotifier
	timers   *timers.Manager
	misses   *missCounter
	releases *releaseRequests
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		notifier: &fakeNotifier{},
		timers:   timers.NewManager(),
		misses:   &missCounter{},
		releases: &releaseRequests{},
	}
	e, err := New(Config{ResponseTimeout: 20}, Dependencies{
		Notifier:    fx.notifier,
		Timers:      fx.timers,
		Ctrl:        executor.Inline,
		Indications: fx.releases,
		Misses:      fx.misses,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fx.e = e
	return fx
}

func (fx *fixture) tick(n int) {
	for i := 0; i < n; i++ {
		fx.timers.Tick()
	}
}

func (fx *fixture) lastSetupRequest(t *testing.T) *e1msg.BearerContextSetupRequest {
	t.Helper()
	req, ok := fx.notifier.last().(*e1msg.BearerContextSetupRequest)
	if !ok {
		t.Fatalf("last sent = %T, want setup request", fx.notifier.last())
	}
	return req
}

func pduSession(id PDUSessionID) PDUSessionToSetup {
	return PDUSessionToSetup{
		ID:        id,
		Type:      "ipv4",
		SNSSAI:    SNSSAI{SST: 1},
		NGULUPTNL: UPTransportLayerInfo{Address: "10.0.0.1", TEID: 0x100 + uint32(id)},
		SecurityInd: SecurityIndication{
			Confidentiality: "not-needed",
			Integrity:       "not-needed",
		},
		DRBs: []DRBToSetup{{
			ID:   1,
			SDAP: SDAPConfig{DefaultDRB: true, HeaderUL: "absent", HeaderDL: "absent"},
			PDCP: PDCPConfig{SNSizeUL: 18, SNSizeDL: 18, RLCMode: "rlc-am"},
			QoSFlows: []QoSFlowItem{{
				ID: 1,
				Params: QoSFlowLevelParams{
					Characteristics: QoSCharacteristics{NonDynamic: &NonDynamic5QI{FiveQI: 9}},
					AllocationRetention: AllocationRetentionPriority{
						PriorityLevel:           1,
						PreemptionCapability:    "shall-not-trigger-pre-emption",
						PreemptionVulnerability: "not-pre-emptable",
					},
				},
			}},
		}},
	}
}

func setupRequest(idx ue.Index, sessions ...PDUSessionID) BearerContextSetupRequest {
	req := BearerContextSetupRequest{
		UEIndex: idx,
		Security: SecurityInfo{
			Algorithm:     SecurityAlgorithm{Ciphering: "nea2"},
			EncryptionKey: make([]byte, 16),
		},
		UEDLAMBR:           1e9,
		ServingPLMN:        "00101",
		ActivityNotifLevel: "ue",
	}
	for _, id := range sessions {
		req.PDUSessions = append(req.PDUSessions, pduSession(id))
	}
	return req
}

func setupItem(id uint16) e1msg.PDUSessionResourceSetupItem {
	addr, _ := e1msg.AddressFromIP("10.0.0.2")
	return e1msg.PDUSessionResourceSetupItem{
		PDUSessionID: id,
		NGDLUPTNL:    e1msg.UPTNLInfo{TransportLayerAddress: addr, TEID: e1msg.TEIDFromUint(0x200)},
		DRBsSetup: []e1msg.DRBSetupItemNGRAN{{
			DRBID: 1,
			ULUPParams: []e1msg.UPParametersItem{{
				TNL: e1msg.UPTNLInfo{TransportLayerAddress: addr, TEID: e1msg.TEIDFromUint(0x300)},
			}},
			FlowsSetup: []uint8{1},
		}},
	}
}

// establish runs a setup for idx through to a successful response.
func (fx *fixture) establish(t *testing.T, idx ue.Index, cuupID uint32) uint32 {
	t.Helper()
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(idx, 1))
	task.Start()
	cucpID := fx.lastSetupRequest(t).CUCPUEE1APID
	if err := fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{
		CUCPUEE1APID: cucpID,
		CUUPUEE1APID: cuupID,
		NGRAN:        &e1msg.NGRANBearerContextSetupResponse{Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(1)}},
	}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, err := async.ResultAs[BearerContextSetupResponse](task); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return cucpID
}

func TestSetupPartialSuccess(t *testing.T) {
	fx := newFixture(t)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(3, 1, 2))
	task.Start()

	req := fx.lastSetupRequest(t)
	if got := req.ServingPLMN; got != (e1msg.PLMNIdentity{0x00, 0xf1, 0x10}) {
		t.Fatalf("serving plmn = % x", got[:])
	}
	if n := len(req.NGRAN.PDUSessionResources); n != 2 {
		t.Fatalf("pdu sessions = %d", n)
	}
	if task.State() != async.StateSuspended {
		t.Fatalf("state = %s before response", task.State())
	}

	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{
		CUCPUEE1APID: req.CUCPUEE1APID,
		CUUPUEE1APID: 77,
		NGRAN: &e1msg.NGRANBearerContextSetupResponse{
			Setup:  []e1msg.PDUSessionResourceSetupItem{setupItem(1)},
			Failed: []e1msg.PDUSessionResourceFailedItem{{PDUSessionID: 2, Cause: e1msg.Cause{Group: 0, Value: 5}}},
		},
	})

	resp, err := async.ResultAs[BearerContextSetupResponse](task)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !resp.Success || resp.Outcome() != "partial" {
		t.Fatalf("success = %v, outcome = %s", resp.Success, resp.Outcome())
	}
	if len(resp.PDUSessionsSetup) != 1 || resp.PDUSessionsSetup[0].ID != 1 {
		t.Fatalf("setup list = %+v", resp.PDUSessionsSetup)
	}
	s := resp.PDUSessionsSetup[0]
	if s.NGDLUPTNL.Address != "10.0.0.2" || s.NGDLUPTNL.TEID != 0x200 {
		t.Fatalf("ng dl tnl = %+v", s.NGDLUPTNL)
	}
	if len(s.DRBsSetup) != 1 || s.DRBsSetup[0].ULUPParams[0].TNL.TEID != 0x300 {
		t.Fatalf("drbs = %+v", s.DRBsSetup)
	}
	want := PDUSessionFailed{ID: 2, Cause: Cause{Group: CauseRadioNetwork, Value: 5}}
	if len(resp.PDUSessionsFailed) != 1 || resp.PDUSessionsFailed[0] != want {
		t.Fatalf("failed list = %+v", resp.PDUSessionsFailed)
	}
	if !fx.e.HasBearerContext(3) {
		t.Fatalf("bearer context not recorded")
	}
	if fx.timers.Armed() != 0 {
		t.Fatalf("%d timers still armed", fx.timers.Armed())
	}
}

func TestSetupFailureCarriesCauseAndDiagnostics(t *testing.T) {
	fx := newFixture(t)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 1))
	task.Start()

	code := uint8(8)
	trig := e1msg.Enumerated(0)
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupFailure{
		CUCPUEE1APID: fx.lastSetupRequest(t).CUCPUEE1APID,
		Cause:        e1msg.Cause{Group: 2, Value: 1},
		CriticalityDiagnostics: &e1msg.CriticalityDiagnostics{
			ProcedureCode:     &code,
			TriggeringMessage: &trig,
			IEs:               []e1msg.CriticalityDiagnosticsIEItem{{Criticality: 0, ID: 58, TypeOfError: 1}},
		},
	})

	resp, err := async.ResultAs[BearerContextSetupResponse](task)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if resp.Success || resp.Outcome() != "rejected" {
		t.Fatalf("success = %v", resp.Success)
	}
	if resp.Cause == nil || *resp.Cause != (Cause{Group: CauseProtocol, Value: 1}) {
		t.Fatalf("cause = %v", resp.Cause)
	}
	d := resp.CriticalityDiagnostics
	if d == nil || *d.ProcedureCode != 8 || *d.TriggeringMessage != "initiating-message" {
		t.Fatalf("diagnostics = %+v", d)
	}
	if len(d.IEs) != 1 || d.IEs[0] != (IEDiagnostic{Criticality: "reject", ID: 58, TypeOfError: "missing"}) {
		t.Fatalf("ie diagnostics = %+v", d.IEs)
	}
	if fx.e.NumUEs() != 0 {
		t.Fatalf("context kept after failure")
	}
}

func TestSetupResponseMustAnswerRequestedSessions(t *testing.T) {
	cases := map[string]*e1msg.NGRANBearerContextSetupResponse{
		"unrequested": {
			Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(1), setupItem(9)},
		},
		"setup and failed": {
			Setup:  []e1msg.PDUSessionResourceSetupItem{setupItem(1)},
			Failed: []e1msg.PDUSessionResourceFailedItem{{PDUSessionID: 1}},
		},
		"listed twice": {
			Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(1), setupItem(1)},
		},
	}
	for name, ngran := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 1))
			task.Start()
			fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{
				CUCPUEE1APID: fx.lastSetupRequest(t).CUCPUEE1APID,
				CUUPUEE1APID: 9,
				NGRAN:        ngran,
			})
			if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if fx.e.NumUEs() != 0 {
				t.Fatalf("context kept after invalid response")
			}
			if fx.misses.n != 0 {
				t.Fatalf("misses = %d", fx.misses.n)
			}
		})
	}
}

func TestSetupTimesOut(t *testing.T) {
	fx := newFixture(t)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 1))
	task.Start()
	cucpID := fx.lastSetupRequest(t).CUCPUEE1APID

	fx.tick(19)
	if task.State().Done() {
		t.Fatalf("finished before the timeout")
	}
	fx.tick(1)
	if _, err := task.Result(); !errors.Is(err, procedure.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if fx.e.NumUEs() != 0 {
		t.Fatalf("context kept after timeout")
	}

	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{CUCPUEE1APID: cucpID})
	if fx.misses.n != 1 {
		t.Fatalf("late response misses = %d", fx.misses.n)
	}
}

func TestSetupValidation(t *testing.T) {
	cases := map[string]func(*BearerContextSetupRequest){
		"plmn":        func(r *BearerContextSetupRequest) { r.ServingPLMN = "0010" },
		"ciphering":   func(r *BearerContextSetupRequest) { r.Security.Algorithm.Ciphering = "nea9" },
		"no sessions": func(r *BearerContextSetupRequest) { r.PDUSessions = nil },
		"no drbs":     func(r *BearerContextSetupRequest) { r.PDUSessions[0].DRBs = nil },
		"address":     func(r *BearerContextSetupRequest) { r.PDUSessions[0].NGULUPTNL.Address = "not-an-ip" },
		"both 5qi": func(r *BearerContextSetupRequest) {
			r.PDUSessions[0].DRBs[0].QoSFlows[0].Params.Characteristics.Dynamic = &Dynamic5QI{PriorityLevel: 1}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			req := setupRequest(1, 1)
			mutate(&req)
			task := fx.e.BearerContextSetup(context.Background(), req)
			task.Start()
			if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if fx.notifier.last() != nil {
				t.Fatalf("invalid request was sent")
			}
			if fx.e.NumUEs() != 0 {
				t.Fatalf("context kept after invalid request")
			}
		})
	}
}

func TestSetupRejectsMalformedResponse(t *testing.T) {
	fx := newFixture(t)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 1))
	task.Start()
	item := setupItem(1)
	item.DRBsSetup[0].DRBID = 0
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupResponse{
		CUCPUEE1APID: fx.lastSetupRequest(t).CUCPUEE1APID,
		NGRAN:        &e1msg.NGRANBearerContextSetupResponse{Setup: []e1msg.PDUSessionResourceSetupItem{item}},
	})
	var verr *procedure.ValidationError
	if _, err := task.Result(); !errors.As(err, &verr) || verr.Field != "drb_setup_list_ng_ran.drb_id" {
		t.Fatalf("err = %v", err)
	}
}

func TestSecondSetupForEstablishedUERejected(t *testing.T) {
	fx := newFixture(t)
	fx.establish(t, 1, 9)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 2))
	task.Start()
	if _, err := task.Result(); !errors.Is(err, ErrContextExists) {
		t.Fatalf("err = %v", err)
	}
}

func TestModificationTranslatesRequest(t *testing.T) {
	fx := newFixture(t)
	cucpID := fx.establish(t, 1, 9)

	ambr := uint64(5e8)
	discard := true
	req := BearerContextModificationRequest{
		UEIndex:             1,
		UEDLAMBR:            &ambr,
		DataDiscardRequired: &discard,
		PDUSessionsToSetup:  []PDUSessionToSetup{pduSession(2)},
		PDUSessionsToModify: []PDUSessionToModify{{
			ID:           1,
			DRBsToModify: []DRBToModify{{ID: 1, FlowsToRemove: []QoSFlowID{1}}},
			DRBsToRemove: []DRBID{2},
		}, {
			ID:     3,
			DLAMBR: &ambr,
		}},
		PDUSessionsToRemove: []PDUSessionID{4},
	}
	task := fx.e.BearerContextModification(context.Background(), req)
	task.Start()

	sent, ok := fx.notifier.last().(*e1msg.BearerContextModificationRequest)
	if !ok {
		t.Fatalf("last sent = %T", fx.notifier.last())
	}
	if sent.CUCPUEE1APID != cucpID || sent.CUUPUEE1APID != 9 {
		t.Fatalf("ids = %d/%d", sent.CUCPUEE1APID, sent.CUUPUEE1APID)
	}
	if sent.UEDLAMBR == nil || *sent.UEDLAMBR != ambr || sent.DataDiscardRequired == nil {
		t.Fatalf("ue level ies = %+v", sent)
	}
	if sent.NewULTNLInfoRequired != nil || sent.Security != nil {
		t.Fatalf("unrequested ies present")
	}
	ng := sent.NGRAN
	if ng == nil || len(ng.ToSetup) != 1 || ng.ToSetup[0].PDUSessionID != 2 {
		t.Fatalf("to setup = %+v", ng)
	}
	if len(ng.ToModify) != 2 || ng.ToModify[0].DRBsToRemove[0] != 2 || ng.ToModify[0].DRBsToModify[0].FlowsToRemove[0] != 1 {
		t.Fatalf("to modify = %+v", ng.ToModify)
	}
	if len(ng.ToRemove) != 1 || ng.ToRemove[0] != 4 {
		t.Fatalf("to remove = %v", ng.ToRemove)
	}

	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextModificationResponse{
		CUCPUEE1APID: cucpID,
		CUUPUEE1APID: 9,
		NGRAN: &e1msg.NGRANBearerContextModificationResponse{
			Setup:          []e1msg.PDUSessionResourceSetupItem{setupItem(2)},
			Modified:       []e1msg.PDUSessionResourceModifiedItem{{PDUSessionID: 1}},
			FailedToModify: []e1msg.PDUSessionResourceFailedItem{{PDUSessionID: 3, Cause: e1msg.Cause{Group: 3, Value: 0}}},
		},
	})
	resp, err := async.ResultAs[BearerContextModificationResponse](task)
	if err != nil {
		t.Fatalf("modification: %v", err)
	}
	if !resp.Success || resp.Outcome() != "partial" {
		t.Fatalf("outcome = %s", resp.Outcome())
	}
	if len(resp.PDUSessionsSetup) != 1 || len(resp.PDUSessionsModified) != 1 || len(resp.PDUSessionsFailedToModify) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestModificationResponseMustAnswerRequestedSessions(t *testing.T) {
	cases := map[string]*e1msg.NGRANBearerContextModificationResponse{
		"unrequested setup": {
			Setup: []e1msg.PDUSessionResourceSetupItem{setupItem(2), setupItem(5)},
		},
		"setup and failed": {
			Setup:  []e1msg.PDUSessionResourceSetupItem{setupItem(2)},
			Failed: []e1msg.PDUSessionResourceFailedItem{{PDUSessionID: 2}},
		},
		"modified a session only set up": {
			Modified: []e1msg.PDUSessionResourceModifiedItem{{PDUSessionID: 2}},
		},
		"modified and failed to modify": {
			Modified:       []e1msg.PDUSessionResourceModifiedItem{{PDUSessionID: 1}},
			FailedToModify: []e1msg.PDUSessionResourceFailedItem{{PDUSessionID: 1}},
		},
	}
	for name, ngran := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			cucpID := fx.establish(t, 1, 9)
			task := fx.e.BearerContextModification(context.Background(), BearerContextModificationRequest{
				UEIndex:             1,
				PDUSessionsToSetup:  []PDUSessionToSetup{pduSession(2)},
				PDUSessionsToModify: []PDUSessionToModify{{ID: 1, DRBsToRemove: []DRBID{1}}},
			})
			task.Start()
			fx.e.HandleMessage(context.Background(), &e1msg.BearerContextModificationResponse{
				CUCPUEE1APID: cucpID,
				CUUPUEE1APID: 9,
				NGRAN:        ngran,
			})
			if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestModificationFailure(t *testing.T) {
	fx := newFixture(t)
	cucpID := fx.establish(t, 1, 9)
	ambr := uint64(1)
	task := fx.e.BearerContextModification(context.Background(), BearerContextModificationRequest{UEIndex: 1, UEDLAMBR: &ambr})
	task.Start()
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextModificationFailure{
		CUCPUEE1APID: cucpID,
		CUUPUEE1APID: 9,
		Cause:        e1msg.Cause{Group: 1, Value: 0},
	})
	resp, err := async.ResultAs[BearerContextModificationResponse](task)
	if err != nil || resp.Success || resp.Cause.Group != CauseTransport {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}
	if !fx.e.HasBearerContext(1) {
		t.Fatalf("a rejected modification must keep the context")
	}
}

func TestModificationRequiresContext(t *testing.T) {
	fx := newFixture(t)
	ambr := uint64(1)
	task := fx.e.BearerContextModification(context.Background(), BearerContextModificationRequest{UEIndex: 4, UEDLAMBR: &ambr})
	task.Start()
	if _, err := task.Result(); !errors.Is(err, ue.ErrUnknownUE) {
		t.Fatalf("err = %v", err)
	}
}

func TestEmptyModificationIsInvalid(t *testing.T) {
	fx := newFixture(t)
	fx.establish(t, 1, 9)
	task := fx.e.BearerContextModification(context.Background(), BearerContextModificationRequest{UEIndex: 1})
	task.Start()
	if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestModificationWithWrongCUUPID(t *testing.T) {
	fx := newFixture(t)
	cucpID := fx.establish(t, 1, 9)
	ambr := uint64(1)
	task := fx.e.BearerContextModification(context.Background(), BearerContextModificationRequest{UEIndex: 1, UEDLAMBR: &ambr})
	task.Start()
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextModificationResponse{CUCPUEE1APID: cucpID, CUUPUEE1APID: 10})
	if _, err := task.Result(); !errors.Is(err, procedure.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestRelease(t *testing.T) {
	fx := newFixture(t)
	cucpID := fx.establish(t, 1, 9)
	task := fx.e.BearerContextRelease(context.Background(), 1, Cause{Group: CauseRadioNetwork, Value: 2})
	task.Start()

	cmd, ok := fx.notifier.last().(*e1msg.BearerContextReleaseCommand)
	if !ok || cmd.CUCPUEE1APID != cucpID || cmd.CUUPUEE1APID != 9 || cmd.Cause.Value != 2 {
		t.Fatalf("release command = %+v", fx.notifier.last())
	}
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextReleaseComplete{CUCPUEE1APID: cucpID, CUUPUEE1APID: 9})
	if _, err := task.Result(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if fx.e.NumUEs() != 0 {
		t.Fatalf("context kept after release")
	}
	if fx.misses.n != 0 {
		t.Fatalf("matched release counted %d correlation misses", fx.misses.n)
	}
}

func TestReleaseTimeoutStillDropsContext(t *testing.T) {
	fx := newFixture(t)
	fx.establish(t, 1, 9)
	task := fx.e.BearerContextRelease(context.Background(), 1, Cause{})
	task.Start()
	fx.tick(20)
	if _, err := task.Result(); !errors.Is(err, procedure.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if fx.e.NumUEs() != 0 {
		t.Fatalf("context kept after release timeout")
	}
}

func TestReleaseRequestIndication(t *testing.T) {
	fx := newFixture(t)
	cucpID := fx.establish(t, 5, 9)
	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextReleaseRequest{
		CUCPUEE1APID: cucpID,
		CUUPUEE1APID: 9,
		Cause:        e1msg.Cause{Group: 0, Value: 3},
	})
	if len(fx.releases.idx) != 1 || fx.releases.idx[0] != 5 || fx.releases.cause[0].Value != 3 {
		t.Fatalf("release requests = %+v", fx.releases)
	}

	fx.e.HandleMessage(context.Background(), &e1msg.BearerContextReleaseRequest{CUCPUEE1APID: cucpID + 1})
	if len(fx.releases.idx) != 1 || fx.misses.n != 1 {
		t.Fatalf("unknown ue: requests = %d, misses = %d", len(fx.releases.idx), fx.misses.n)
	}
}

func TestRemoveUEAbortsOutstandingRequest(t *testing.T) {
	fx := newFixture(t)
	task := fx.e.BearerContextSetup(context.Background(), setupRequest(1, 1))
	task.Start()
	if !fx.e.RemoveUE(1) {
		t.Fatalf("RemoveUE reported no context")
	}
	if _, err := task.Result(); err == nil {
		t.Fatalf("setup survived RemoveUE")
	}
	if fx.timers.Armed() != 0 {
		t.Fatalf("guard timer left armed")
	}
}

func TestHandleMessageRejectsRequests(t *testing.T) {
	fx := newFixture(t)
	err := fx.e.HandleMessage(context.Background(), &e1msg.BearerContextSetupRequest{})
	if !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	if _, err := New(Config{}, Dependencies{Timers: timers.NewManager(), Ctrl: executor.Inline}); err == nil {
		t.Fatalf("New accepted a nil notifier")
	}
}
