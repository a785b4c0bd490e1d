package cucp

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

const (
	sessionSetupRoutine = "cucp-pdu-session-setup"
	sessionModRoutine   = "cucp-pdu-session-modification"
	ueReleaseRoutine    = "cucp-ue-release"
)

// PDUSessionSetupRequest asks for new PDU sessions of a UE. The UE-level
// fields are only used when the UE has no bearer context yet.
type PDUSessionSetupRequest struct {
	UEIndex            ue.Index
	Security           e1ap.SecurityInfo
	UEDLAMBR           uint64
	ServingPLMN        string
	ActivityNotifLevel string
	Sessions           []e1ap.PDUSessionToSetup
}

// PDUSessionSetupResult lists the sessions the CU-UP accepted and those it
// did not.
type PDUSessionSetupResult struct {
	UEIndex ue.Index
	Setup   []e1ap.PDUSessionSetupItem
	Failed  []e1ap.PDUSessionFailed
}

func (r PDUSessionSetupResult) Outcome() string {
	switch {
	case len(r.Setup) == 0:
		return "rejected"
	case len(r.Failed) > 0:
		return "partial"
	default:
		return "success"
	}
}

// SetupPDUSessions schedules a PDU session setup on the UE's control loop. A
// UE without a bearer context gets one through a bearer context setup;
// otherwise the sessions are added with a bearer context modification. The
// returned task succeeds with a PDUSessionSetupResult whenever the CU-UP
// answered.
func (c *CUCP) SetupPDUSessions(ctx context.Context, req PDUSessionSetupRequest) (*async.Task, error) {
	ctx, run := procedure.Begin(ctx, sessionSetupRoutine, c.log, c.metrics,
		attribute.Int64("ue.index", int64(req.UEIndex)),
		attribute.Int("pdu_sessions", len(req.Sessions)),
	)
	t := run.Attach(async.NewWithContext(ctx, sessionSetupRoutine, func(async.Result) async.Next {
		if err := c.checkNewSessions(req.UEIndex, req.Sessions); err != nil {
			return async.Fail(err)
		}
		if c.e1.HasBearerContext(req.UEIndex) {
			mod := c.e1.BearerContextModification(ctx, e1ap.BearerContextModificationRequest{
				UEIndex:            req.UEIndex,
				PDUSessionsToSetup: req.Sessions,
			})
			return async.Await(mod, func(in async.Result) async.Next {
				resp, err := async.Value[e1ap.BearerContextModificationResponse](in)
				if err != nil {
					return async.Fail(err)
				}
				return c.sessionsSetUp(ctx, req, resp.Success, resp.Cause, resp.PDUSessionsSetup, resp.PDUSessionsFailed)
			})
		}
		setup := c.e1.BearerContextSetup(ctx, e1ap.BearerContextSetupRequest{
			UEIndex:            req.UEIndex,
			Security:           req.Security,
			UEDLAMBR:           req.UEDLAMBR,
			ServingPLMN:        req.ServingPLMN,
			ActivityNotifLevel: req.ActivityNotifLevel,
			PDUSessions:        req.Sessions,
		})
		return async.Await(setup, func(in async.Result) async.Next {
			resp, err := async.Value[e1ap.BearerContextSetupResponse](in)
			if err != nil {
				return async.Fail(err)
			}
			return c.sessionsSetUp(ctx, req, resp.Success, resp.Cause, resp.PDUSessionsSetup, resp.PDUSessionsFailed)
		})
	}))
	if err := c.schedule(req.UEIndex, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *CUCP) checkNewSessions(idx ue.Index, sessions []e1ap.PDUSessionToSetup) error {
	u, err := c.ues.Get(idx)
	if err != nil {
		return fmt.Errorf("%s: %w", sessionSetupRoutine, err)
	}
	if len(sessions) == 0 {
		return procedure.Invalid(sessionSetupRoutine, "pdu_sessions", "empty")
	}
	seen := make(map[e1ap.PDUSessionID]bool, len(sessions))
	for _, s := range sessions {
		if _, ok := u.Sessions[s.ID]; ok || seen[s.ID] {
			return procedure.Invalid(sessionSetupRoutine, "pdu_session_id", "pdu session %d already in use", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func (c *CUCP) sessionsSetUp(ctx context.Context, req PDUSessionSetupRequest, success bool, cause *e1ap.Cause,
	setup []e1ap.PDUSessionSetupItem, failed []e1ap.PDUSessionFailed) async.Next {
	res := PDUSessionSetupResult{UEIndex: req.UEIndex, Setup: setup, Failed: failed}
	if !success {
		res.Setup = nil
		res.Failed = nil
		var reason e1ap.Cause
		if cause != nil {
			reason = *cause
		}
		for _, s := range req.Sessions {
			res.Failed = append(res.Failed, e1ap.PDUSessionFailed{ID: s.ID, Cause: reason})
		}
	}
	ids := make([]e1ap.PDUSessionID, 0, len(res.Setup))
	for _, s := range res.Setup {
		ids = append(ids, s.ID)
	}
	c.updateSessions(req.UEIndex, ids, nil)
	c.log.Info(ctx, "pdu session setup finished",
		logging.String("ue", req.UEIndex.String()),
		logging.Int("setup", len(res.Setup)),
		logging.Int("failed", len(res.Failed)),
	)
	return async.Return(res)
}

// ModifyPDUSessions schedules a bearer context modification on the UE's
// control loop. The task succeeds with the e1ap response whenever the CU-UP
// answered.
func (c *CUCP) ModifyPDUSessions(ctx context.Context, req e1ap.BearerContextModificationRequest) (*async.Task, error) {
	ctx, run := procedure.Begin(ctx, sessionModRoutine, c.log, c.metrics,
		attribute.Int64("ue.index", int64(req.UEIndex)),
	)
	t := run.Attach(async.NewWithContext(ctx, sessionModRoutine, func(async.Result) async.Next {
		return async.Await(c.e1.BearerContextModification(ctx, req), func(in async.Result) async.Next {
			resp, err := async.Value[e1ap.BearerContextModificationResponse](in)
			if err != nil {
				return async.Fail(err)
			}
			if resp.Success {
				added := make([]e1ap.PDUSessionID, 0, len(resp.PDUSessionsSetup))
				for _, s := range resp.PDUSessionsSetup {
					added = append(added, s.ID)
				}
				c.updateSessions(req.UEIndex, added, req.PDUSessionsToRemove)
			}
			return async.Return(resp)
		})
	}))
	if err := c.schedule(req.UEIndex, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReleaseUE drops the UE's pending routines and schedules its release: the
// bearer context is released on the CU-UP, if there is one, and the UE is
// removed whatever the CU-UP answers.
func (c *CUCP) ReleaseUE(ctx context.Context, idx ue.Index, cause e1ap.Cause) (*async.Task, error) {
	if !c.ues.Contains(idx) {
		return nil, fmt.Errorf("cucp: %w: %s", ue.ErrUnknownUE, idx)
	}
	if n := c.sched.ClearPendingTasks(idx); n > 0 {
		c.log.Debug(ctx, "dropped pending ue routines before release",
			logging.String("ue", idx.String()),
			logging.Int("count", n),
		)
	}
	ctx, run := procedure.Begin(ctx, ueReleaseRoutine, c.log, c.metrics,
		attribute.Int64("ue.index", int64(idx)),
	)
	remove := func() async.Next {
		c.e1.RemoveUE(idx)
		if err := c.ues.Release(idx); err != nil {
			// released by an earlier routine
			return async.Return(false)
		}
		c.log.Info(ctx, "ue released", logging.String("ue", idx.String()), logging.String("cause", cause.String()))
		return async.Return(true)
	}
	t := run.Attach(async.NewWithContext(ctx, ueReleaseRoutine, func(async.Result) async.Next {
		if !c.e1.HasBearerContext(idx) {
			return remove()
		}
		return async.Await(c.e1.BearerContextRelease(ctx, idx, cause), func(in async.Result) async.Next {
			if in.Err != nil {
				c.log.Warn(ctx, "bearer context release failed, removing ue anyway",
					logging.String("ue", idx.String()),
					logging.Err(in.Err),
				)
			}
			return remove()
		})
	}))
	if err := c.schedule(idx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// OnBearerContextReleaseRequest implements e1ap.IndicationNotifier: a CU-UP
// request to release a bearer context releases the UE.
func (c *CUCP) OnBearerContextReleaseRequest(idx ue.Index, cause e1ap.Cause) {
	if _, err := c.ReleaseUE(context.Background(), idx, cause); err != nil {
		c.log.Warn(context.Background(), "cannot release ue on cu-up request",
			logging.String("ue", idx.String()),
			logging.Err(err),
		)
	}
}
