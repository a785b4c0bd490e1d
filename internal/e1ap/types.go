package e1ap

import (
	"fmt"

	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

// The types in this file are the CU-CP's own view of the E1 bearer context
// procedures. Enumerated values are carried as their E1AP names, optional
// fields as pointers or nil slices. The peer representation lives in
// messages.go.

type (
	PDUSessionID uint16
	DRBID        uint8
	QoSFlowID    uint8
)

// CauseGroup is the E1AP cause category.
type CauseGroup uint8

const (
	CauseRadioNetwork CauseGroup = iota
	CauseTransport
	CauseProtocol
	CauseMisc
)

var causeGroupNames = [...]string{"radio_network", "transport", "protocol", "misc"}

func (g CauseGroup) String() string {
	if int(g) < len(causeGroupNames) {
		return causeGroupNames[g]
	}
	return fmt.Sprintf("cause_group(%d)", uint8(g))
}

// Cause is an E1AP cause.
type Cause struct {
	Group CauseGroup
	Value uint8
}

func (c Cause) String() string { return fmt.Sprintf("%s/%d", c.Group, c.Value) }

// UPTransportLayerInfo is a GTP-U tunnel endpoint.
type UPTransportLayerInfo struct {
	// Address is the transport layer address in textual IP form.
	Address string
	TEID    uint32
}

type SNSSAI struct {
	SST uint8
	SD  *uint32
}

type SecurityAlgorithm struct {
	// Ciphering is one of "nea0" to "nea3".
	Ciphering string
	// Integrity is one of "nia0" to "nia3".
	Integrity *string
}

type SecurityInfo struct {
	Algorithm     SecurityAlgorithm
	EncryptionKey []byte
	IntegrityKey  []byte
}

type SecurityIndication struct {
	// Confidentiality and Integrity are "required", "preferred" or
	// "not-needed".
	Confidentiality string
	Integrity       string
	// MaxIPDataRate is "bitrate64kbs" or "max-UErate".
	MaxIPDataRate *string
}

type SDAPConfig struct {
	DefaultDRB bool
	// HeaderUL and HeaderDL are "present" or "absent".
	HeaderUL string
	HeaderDL string
}

type PDCPConfig struct {
	// SNSizeUL and SNSizeDL are 12 or 18.
	SNSizeUL uint8
	SNSizeDL uint8
	// RLCMode is one of "rlc-tm", "rlc-am", "rlc-um-bidirectional",
	// "rlc-um-unidirectional-ul", "rlc-um-unidirectional-dl".
	RLCMode string
	// DiscardTimerMs and TReorderingMs are in milliseconds.
	DiscardTimerMs *uint16
	TReorderingMs  *uint16
}

type CellGroupInfo struct {
	CellGroupID uint8
	// ULConfig is "no-data", "shared" or "only".
	ULConfig *string
	// DLTxStop is "stop" or "resume".
	DLTxStop *string
	// RATType is "e-UTRA" or "nR".
	RATType *string
}

type PacketErrorRate struct {
	Scalar   uint8 `json:"scalar"`
	Exponent uint8 `json:"exponent"`
}

type NonDynamic5QI struct {
	FiveQI             uint8
	PriorityLevel      *uint8
	AveragingWindow    *uint16
	MaxDataBurstVolume *uint32
}

type Dynamic5QI struct {
	PriorityLevel      uint8
	PacketDelayBudget  uint16
	PacketErrorRate    PacketErrorRate
	FiveQI             *uint8
	DelayCritical      *string
	AveragingWindow    *uint16
	MaxDataBurstVolume *uint32
}

// QoSCharacteristics holds exactly one of NonDynamic or Dynamic.
type QoSCharacteristics struct {
	NonDynamic *NonDynamic5QI
	Dynamic    *Dynamic5QI
}

type AllocationRetentionPriority struct {
	PriorityLevel uint8
	// PreemptionCapability is "shall-not-trigger-pre-emption" or
	// "may-trigger-pre-emption".
	PreemptionCapability string
	// PreemptionVulnerability is "not-pre-emptable" or "pre-emptable".
	PreemptionVulnerability string
}

type GBRQoSFlowInfo struct {
	MaxFlowBitRateDL        uint64  `json:"max_flow_bit_rate_dl"`
	MaxFlowBitRateUL        uint64  `json:"max_flow_bit_rate_ul"`
	GuaranteedFlowBitRateDL uint64  `json:"guaranteed_flow_bit_rate_dl"`
	GuaranteedFlowBitRateUL uint64  `json:"guaranteed_flow_bit_rate_ul"`
	MaxPacketLossRateDL     *uint16 `json:"max_packet_loss_rate_dl,omitempty"`
	MaxPacketLossRateUL     *uint16 `json:"max_packet_loss_rate_ul,omitempty"`
}

type QoSFlowLevelParams struct {
	Characteristics     QoSCharacteristics
	AllocationRetention AllocationRetentionPriority
	GBR                 *GBRQoSFlowInfo
	// ReflectiveQoSAttribute is "subject-to".
	ReflectiveQoSAttribute *string
	// AdditionalQoSInfo is "more-likely".
	AdditionalQoSInfo     *string
	PagingPolicyIndicator *uint8
	// ReflectiveQoSIndicator is "enabled".
	ReflectiveQoSIndicator *string
}

type QoSFlowItem struct {
	ID     QoSFlowID
	Params QoSFlowLevelParams
	// MapIndicator is "ul" or "dl".
	MapIndicator *string
}

type QoSFlowMapItem struct {
	ID           QoSFlowID
	MapIndicator *string
}

type DataForwardingRequest struct {
	// Request is "uL", "dL" or "both".
	Request           string
	FlowsOnFwdTunnels []QoSFlowMapItem
}

type PDCPCount struct {
	SN  uint32 `json:"pdcp_sn"`
	HFN uint32 `json:"hfn"`
}

type PDCPSNStatusInfo struct {
	UL PDCPCount
	// ReceiveStatus is the receive bitmap of PDCP SDUs, most significant
	// bit first.
	ReceiveStatus []byte
	DL            PDCPCount
}

type DRBToSetup struct {
	ID              DRBID
	SDAP            SDAPConfig
	PDCP            PDCPConfig
	CellGroups      []CellGroupInfo
	QoSFlows        []QoSFlowItem
	DataForwarding  *DataForwardingRequest
	InactivityTimer *uint16
	PDCPSNStatus    *PDCPSNStatusInfo
}

type PDUSessionToSetup struct {
	ID PDUSessionID
	// Type is one of "ipv4", "ipv6", "ipv4v6", "ethernet", "unstructured".
	Type              string
	SNSSAI            SNSSAI
	NGULUPTNL         UPTransportLayerInfo
	SecurityInd       SecurityIndication
	DRBs              []DRBToSetup
	DLAMBR            *uint64
	DataForwarding    *DataForwardingRequest
	InactivityTimer   *uint16
	ExistingNGDLUPTNL *UPTransportLayerInfo
	NetworkInstance   *uint16
}

// BearerContextSetupRequest asks the CU-UP to create a UE's bearer context.
type BearerContextSetupRequest struct {
	UEIndex  ue.Index
	Security SecurityInfo
	UEDLAMBR uint64
	// ServingPLMN is the MCC followed by the MNC, as digits.
	ServingPLMN string
	// ActivityNotifLevel is "drb", "pdu-session" or "ue".
	ActivityNotifLevel   string
	PDUSessions          []PDUSessionToSetup
	UEDLMaxIntegrityRate *uint64
	UEInactivityTimer    *uint16
	// BearerContextStatusChange is "suspend" or "resume".
	BearerContextStatusChange *string
	RANUEID                   *uint64
	DUID                      *uint64
}

type DRBToModify struct {
	ID              DRBID
	SDAP            *SDAPConfig
	PDCP            *PDCPConfig
	CellGroups      []CellGroupInfo
	FlowsToSetup    []QoSFlowItem
	FlowsToRemove   []QoSFlowID
	InactivityTimer *uint16
	PDCPSNStatus    *PDCPSNStatusInfo
}

type PDUSessionToModify struct {
	ID              PDUSessionID
	SecurityInd     *SecurityIndication
	DLAMBR          *uint64
	NGULUPTNL       *UPTransportLayerInfo
	DataForwarding  *DataForwardingRequest
	InactivityTimer *uint16
	NetworkInstance *uint16
	DRBsToSetup     []DRBToSetup
	DRBsToModify    []DRBToModify
	DRBsToRemove    []DRBID
}

// BearerContextModificationRequest changes an existing bearer context.
// Every part is optional; at least one must be present.
type BearerContextModificationRequest struct {
	UEIndex                   ue.Index
	Security                  *SecurityInfo
	UEDLAMBR                  *uint64
	UEDLMaxIntegrityRate      *uint64
	BearerContextStatusChange *string
	NewULTNLInfoRequired      *bool
	UEInactivityTimer         *uint16
	DataDiscardRequired       *bool
	PDUSessionsToSetup        []PDUSessionToSetup
	PDUSessionsToModify       []PDUSessionToModify
	PDUSessionsToRemove       []PDUSessionID
}

func (r *BearerContextModificationRequest) empty() bool {
	return r.Security == nil && r.UEDLAMBR == nil && r.UEDLMaxIntegrityRate == nil &&
		r.BearerContextStatusChange == nil && r.NewULTNLInfoRequired == nil &&
		r.UEInactivityTimer == nil && r.DataDiscardRequired == nil &&
		len(r.PDUSessionsToSetup) == 0 && len(r.PDUSessionsToModify) == 0 && len(r.PDUSessionsToRemove) == 0
}

type UPParamsItem struct {
	TNL         UPTransportLayerInfo
	CellGroupID uint8
}

type QoSFlowFailed struct {
	ID    QoSFlowID
	Cause Cause
}

type DataForwardingResponse struct {
	UL *UPTransportLayerInfo
	DL *UPTransportLayerInfo
}

type DRBSetupItem struct {
	ID             DRBID
	ULUPParams     []UPParamsItem
	FlowsSetup     []QoSFlowID
	FlowsFailed    []QoSFlowFailed
	DataForwarding *DataForwardingResponse
}

type DRBModifiedItem struct {
	ID           DRBID
	ULUPParams   []UPParamsItem
	FlowsSetup   []QoSFlowID
	FlowsFailed  []QoSFlowFailed
	PDCPSNStatus *PDCPSNStatusInfo
}

type DRBFailed struct {
	ID    DRBID
	Cause Cause
}

type SecurityResult struct {
	// Confidentiality and Integrity are "performed" or "not-performed".
	Confidentiality string
	Integrity       string
}

type PDUSessionSetupItem struct {
	ID              PDUSessionID
	NGDLUPTNL       UPTransportLayerInfo
	DRBsSetup       []DRBSetupItem
	DRBsFailed      []DRBFailed
	SecurityResult  *SecurityResult
	DataForwarding  *DataForwardingResponse
	NGDLUPUnchanged *bool
}

type PDUSessionModifiedItem struct {
	ID                 PDUSessionID
	NGDLUPTNL          *UPTransportLayerInfo
	DRBsSetup          []DRBSetupItem
	DRBsFailed         []DRBFailed
	DRBsModified       []DRBModifiedItem
	DRBsFailedToModify []DRBFailed
	SecurityResult     *SecurityResult
	DataForwarding     *DataForwardingResponse
}

type PDUSessionFailed struct {
	ID    PDUSessionID
	Cause Cause
}

type IEDiagnostic struct {
	// Criticality is "reject", "ignore" or "notify".
	Criticality string
	ID          uint16
	// TypeOfError is "not-understood" or "missing".
	TypeOfError string
}

type CriticalityDiagnostics struct {
	ProcedureCode *uint8
	// TriggeringMessage is "initiating-message", "successful-outcome" or
	// "unsuccessful-outcome".
	TriggeringMessage    *string
	ProcedureCriticality *string
	TransactionID        *uint8
	IEs                  []IEDiagnostic
}

// BearerContextSetupResponse is the outcome of a bearer context setup. When
// Success is false the CU-UP rejected the whole request and Cause is set;
// otherwise each PDU session is in exactly one of the two lists.
type BearerContextSetupResponse struct {
	UEIndex                ue.Index
	Success                bool
	PDUSessionsSetup       []PDUSessionSetupItem
	PDUSessionsFailed      []PDUSessionFailed
	Cause                  *Cause
	CriticalityDiagnostics *CriticalityDiagnostics
}

func (r BearerContextSetupResponse) Outcome() string {
	return outcome(r.Success, len(r.PDUSessionsFailed) > 0)
}

// BearerContextModificationResponse is the outcome of a bearer context
// modification, with the same success semantics as a setup.
type BearerContextModificationResponse struct {
	UEIndex                   ue.Index
	Success                   bool
	PDUSessionsSetup          []PDUSessionSetupItem
	PDUSessionsFailed         []PDUSessionFailed
	PDUSessionsModified       []PDUSessionModifiedItem
	PDUSessionsFailedToModify []PDUSessionFailed
	Cause                     *Cause
	CriticalityDiagnostics    *CriticalityDiagnostics
}

func (r BearerContextModificationResponse) Outcome() string {
	return outcome(r.Success, len(r.PDUSessionsFailed)+len(r.PDUSessionsFailedToModify) > 0)
}

func outcome(success, someFailed bool) string {
	switch {
	case !success:
		return "rejected"
	case someFailed:
		return "partial"
	default:
		return "success"
	}
}
