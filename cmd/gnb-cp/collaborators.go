package main

import (
	"context"

	"github.com/signalsfoundry/gnb-controlplane/internal/du"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/f1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/mac"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

// ackingScheduler stands in for the slot scheduler: it accepts every UE
// configuration on the next control loop turn.
type ackingScheduler struct {
	ctrl executor.Executor
	du   *du.DU
	log  logging.Logger
}

func (s *ackingScheduler) ConfigureUE(idx ue.Index, cell mac.CellIndex, crnti mac.RNTI) {
	if !s.ctrl.Execute(func() { s.du.MAC().HandleSchedUEConfigResponse(idx) }) {
		s.log.Warn(context.Background(), "scheduler config response dropped", logging.String("ue", idx.String()))
	}
}

// cellLogger logs cell activation changes requested by the CU.
type cellLogger struct {
	log logging.Logger
}

func (c cellLogger) OnCellsActivated(cells []f1ap.NRCGI) {
	for _, cell := range cells {
		c.log.Info(context.Background(), "cell activated",
			logging.String("plmn", cell.PLMN),
			logging.Uint64("nci", cell.NCI),
		)
	}
}

func (c cellLogger) OnCellsDeactivated(cells []f1ap.NRCGI) {
	for _, cell := range cells {
		c.log.Info(context.Background(), "cell deactivated",
			logging.String("plmn", cell.PLMN),
			logging.Uint64("nci", cell.NCI),
		)
	}
}
