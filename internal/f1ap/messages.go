package f1ap

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
)

// CauseGroup is the F1AP cause category.
type CauseGroup uint8

const (
	CauseRadioNetwork CauseGroup = iota
	CauseTransport
	CauseProtocol
	CauseMisc
)

func (g CauseGroup) String() string {
	switch g {
	case CauseRadioNetwork:
		return "radio_network"
	case CauseTransport:
		return "transport"
	case CauseProtocol:
		return "protocol"
	case CauseMisc:
		return "misc"
	default:
		return fmt.Sprintf("cause_group(%d)", uint8(g))
	}
}

// Cause is an F1AP cause.
type Cause struct {
	Group CauseGroup `json:"group"`
	Value uint8      `json:"value"`
}

func (c Cause) String() string { return fmt.Sprintf("%s/%d", c.Group, c.Value) }

// TimeToWait is the back-off a CU may impose on a rejected setup.
type TimeToWait uint8

const (
	TimeToWait1s TimeToWait = iota
	TimeToWait2s
	TimeToWait5s
	TimeToWait10s
	TimeToWait20s
	TimeToWait60s
)

// Duration returns the wait as a duration.
func (w TimeToWait) Duration() time.Duration {
	switch w {
	case TimeToWait1s:
		return time.Second
	case TimeToWait2s:
		return 2 * time.Second
	case TimeToWait5s:
		return 5 * time.Second
	case TimeToWait10s:
		return 10 * time.Second
	case TimeToWait20s:
		return 20 * time.Second
	default:
		return 60 * time.Second
	}
}

// NRCGI identifies an NR cell globally.
type NRCGI struct {
	PLMN string `json:"plmn"`
	NCI  uint64 `json:"nci"`
}

// ServedCell describes a cell served by the DU.
type ServedCell struct {
	NRCGI   NRCGI  `json:"nrcgi"`
	PCI     uint16 `json:"pci"`
	TAC     uint32 `json:"tac"`
	DLARFCN uint32 `json:"dl_arfcn"`
}

// CriticalityDiagnostics points at the part of a request the peer objected
// to.
type CriticalityDiagnostics struct {
	ProcedureCode *uint8  `json:"procedure_code,omitempty"`
	TransactionID *uint8  `json:"transaction_id,omitempty"`
	IEs           []IEErr `json:"ies,omitempty"`
}

// IEErr is one offending information element.
type IEErr struct {
	ID          uint16 `json:"id"`
	Criticality string `json:"criticality"`
	Kind        string `json:"kind"`
}

// SetupRequest is the F1 Setup Request sent by the DU.
type SetupRequest struct {
	TransactionID uint8        `json:"transaction_id"`
	DUID          uint64       `json:"du_id"`
	DUName        string       `json:"du_name,omitempty"`
	ServedCells   []ServedCell `json:"served_cells"`
	RRCVersion    uint8        `json:"rrc_version"`
}

// SetupResponse is the CU's acceptance.
type SetupResponse struct {
	TransactionID   uint8   `json:"transaction_id"`
	CUName          *string `json:"cu_name,omitempty"`
	CellsToActivate []NRCGI `json:"cells_to_activate,omitempty"`
	RRCVersion      uint8   `json:"rrc_version"`
}

// SetupFailure is the CU's rejection.
type SetupFailure struct {
	TransactionID          uint8                   `json:"transaction_id"`
	Cause                  Cause                   `json:"cause"`
	TimeToWait             *TimeToWait             `json:"time_to_wait,omitempty"`
	CriticalityDiagnostics *CriticalityDiagnostics `json:"criticality_diagnostics,omitempty"`
}

// CUConfigurationUpdate is sent by the CU on its own initiative, here to
// change the set of active cells.
type CUConfigurationUpdate struct {
	TransactionID     uint8   `json:"transaction_id"`
	CellsToActivate   []NRCGI `json:"cells_to_activate,omitempty"`
	CellsToDeactivate []NRCGI `json:"cells_to_deactivate,omitempty"`
}

// CUConfigurationUpdateAcknowledge answers a CUConfigurationUpdate.
type CUConfigurationUpdateAcknowledge struct {
	TransactionID uint8   `json:"transaction_id"`
	CellsFailed   []NRCGI `json:"cells_failed_to_activate,omitempty"`
}

func (*SetupRequest) MessageType() string                     { return "f1ap.F1SetupRequest" }
func (*SetupResponse) MessageType() string                    { return "f1ap.F1SetupResponse" }
func (*SetupFailure) MessageType() string                     { return "f1ap.F1SetupFailure" }
func (*CUConfigurationUpdate) MessageType() string            { return "f1ap.GNBCUConfigurationUpdate" }
func (*CUConfigurationUpdateAcknowledge) MessageType() string { return "f1ap.GNBCUConfigurationUpdateAcknowledge" }

// RegisterMessages adds the F1AP message types to r.
func RegisterMessages(r *pdu.Registry) {
	r.Register(
		func() pdu.Message { return &SetupRequest{} },
		func() pdu.Message { return &SetupResponse{} },
		func() pdu.Message { return &SetupFailure{} },
		func() pdu.Message { return &CUConfigurationUpdate{} },
		func() pdu.Message { return &CUConfigurationUpdateAcknowledge{} },
	)
}
