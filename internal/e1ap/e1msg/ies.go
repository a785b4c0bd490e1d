// Package e1msg holds the E1AP messages and information elements exchanged
// with the CU-UP, in the shape the protocol defines them: enumerations by
// index, bit and octet strings, the 3-octet PLMN identity and 4-octet GTP
// TEIDs.
package e1msg

// Enumerated is the index of an ENUMERATED value.
type Enumerated uint8

// Enum lists the values of an ENUMERATED type in index order.
type Enum []string

// Index returns the index of name.
func (e Enum) Index(name string) (Enumerated, bool) {
	for i, n := range e {
		if n == name {
			return Enumerated(i), true
		}
	}
	return 0, false
}

// Name returns the value at index v.
func (e Enum) Name(v Enumerated) (string, bool) {
	if int(v) >= len(e) {
		return "", false
	}
	return e[v], true
}

var (
	CipheringAlgorithm        = Enum{"nea0", "nea1", "nea2", "nea3"}
	IntegrityAlgorithm        = Enum{"nia0", "nia1", "nia2", "nia3"}
	ProtectionIndication      = Enum{"required", "preferred", "not-needed"}
	MaxIPRate                 = Enum{"bitrate64kbs", "max-UErate"}
	PDUSessionType            = Enum{"ipv4", "ipv6", "ipv4v6", "ethernet", "unstructured"}
	SDAPHeader                = Enum{"present", "absent"}
	DefaultDRB                = Enum{"true", "false"}
	PDCPSNSize                = Enum{"s-12", "s-18"}
	RLCMode                   = Enum{"rlc-tm", "rlc-am", "rlc-um-bidirectional", "rlc-um-unidirectional-ul", "rlc-um-unidirectional-dl"}
	ULConfiguration           = Enum{"no-data", "shared", "only"}
	DLTxStop                  = Enum{"stop", "resume"}
	RATType                   = Enum{"e-UTRA", "nR"}
	DelayCritical             = Enum{"delay-critical", "non-delay-critical"}
	PreemptionCapability      = Enum{"shall-not-trigger-pre-emption", "may-trigger-pre-emption"}
	PreemptionVulnerability   = Enum{"not-pre-emptable", "pre-emptable"}
	ReflectiveQoSAttribute    = Enum{"subject-to"}
	AdditionalQoSInfo         = Enum{"more-likely"}
	ReflectiveQoSIndicator    = Enum{"enabled"}
	QoSFlowMappingIndication  = Enum{"ul", "dl"}
	DataForwardingRequest     = Enum{"uL", "dL", "both"}
	ActivityNotificationLevel = Enum{"drb", "pdu-session", "ue"}
	BearerContextStatusChange = Enum{"suspend", "resume"}
	NewULTNLInfoRequired      = Enum{"required"}
	DataDiscardRequired       = Enum{"required"}
	ProtectionResult          = Enum{"performed", "not-performed"}
	NGDLUPUnchanged           = Enum{"true"}
	Criticality               = Enum{"reject", "ignore", "notify"}
	TypeOfError               = Enum{"not-understood", "missing"}
	TriggeringMessage         = Enum{"initiating-message", "successful-outcome", "unsuccessful-outcome"}
)

// BitString is a BIT STRING of Len bits, most significant bit first.
type BitString struct {
	Bytes []byte `json:"bytes"`
	Len   uint16 `json:"len"`
}

// PLMNIdentity is the BCD-encoded PLMN identity: MCC digit 2 and 1 in the
// first octet, MNC digit 3 (or filler) and MCC digit 3 in the second, MNC
// digit 2 and 1 in the third.
type PLMNIdentity [3]byte

// GTPTEID is a GTP tunnel endpoint identifier.
type GTPTEID [4]byte

type UPTNLInfo struct {
	TransportLayerAddress BitString `json:"transport_layer_address"`
	TEID                  GTPTEID   `json:"gtp_teid"`
}

// Cause is the CHOICE of cause group with the value inside that group.
type Cause struct {
	Group Enumerated `json:"group"`
	Value uint8      `json:"value"`
}

type SNSSAI struct {
	SST []byte `json:"sst"`
	SD  []byte `json:"sd,omitempty"`
}

type SecurityAlgorithm struct {
	Ciphering Enumerated  `json:"ciphering_algorithm"`
	Integrity *Enumerated `json:"integrity_protection_algorithm,omitempty"`
}

type SecurityInformation struct {
	Algorithm     SecurityAlgorithm `json:"security_algorithm"`
	EncryptionKey []byte            `json:"encryption_key"`
	IntegrityKey  []byte            `json:"integrity_protection_key,omitempty"`
}

type SecurityIndication struct {
	Confidentiality Enumerated  `json:"confidentiality_protection_indication"`
	Integrity       Enumerated  `json:"integrity_protection_indication"`
	MaxIPRate       *Enumerated `json:"maximum_ip_datarate,omitempty"`
}

type SDAPConfiguration struct {
	DefaultDRB Enumerated `json:"default_drb"`
	HeaderUL   Enumerated `json:"sdap_header_ul"`
	HeaderDL   Enumerated `json:"sdap_header_dl"`
}

type PDCPConfiguration struct {
	SNSizeUL     Enumerated `json:"pdcp_sn_size_ul"`
	SNSizeDL     Enumerated `json:"pdcp_sn_size_dl"`
	RLCMode      Enumerated `json:"rlc_mode"`
	DiscardTimer *uint16    `json:"discard_timer,omitempty"`
	TReordering  *uint16    `json:"t_reordering_timer,omitempty"`
}

type CellGroupInformationItem struct {
	CellGroupID uint8       `json:"cell_group_id"`
	ULConfig    *Enumerated `json:"ul_configuration,omitempty"`
	DLTxStop    *Enumerated `json:"dl_tx_stop,omitempty"`
	RATType     *Enumerated `json:"rat_type,omitempty"`
}

type PacketErrorRate struct {
	Scalar   uint8 `json:"per_scalar"`
	Exponent uint8 `json:"per_exponent"`
}

type NonDynamic5QIDescriptor struct {
	FiveQI             uint8   `json:"five_qi"`
	PriorityLevel      *uint8  `json:"qos_priority_level,omitempty"`
	AveragingWindow    *uint16 `json:"averaging_window,omitempty"`
	MaxDataBurstVolume *uint32 `json:"max_data_burst_volume,omitempty"`
}

type Dynamic5QIDescriptor struct {
	PriorityLevel      uint8           `json:"qos_priority_level"`
	PacketDelayBudget  uint16          `json:"packet_delay_budget"`
	PacketErrorRate    PacketErrorRate `json:"packet_error_rate"`
	FiveQI             *uint8          `json:"five_qi,omitempty"`
	DelayCritical      *Enumerated     `json:"delay_critical,omitempty"`
	AveragingWindow    *uint16         `json:"averaging_window,omitempty"`
	MaxDataBurstVolume *uint32         `json:"max_data_burst_volume,omitempty"`
}

// QoSCharacteristics is a CHOICE: exactly one member is set.
type QoSCharacteristics struct {
	NonDynamic *NonDynamic5QIDescriptor `json:"non_dynamic_5qi,omitempty"`
	Dynamic    *Dynamic5QIDescriptor    `json:"dynamic_5qi,omitempty"`
}

type NGRANAllocationRetentionPriority struct {
	PriorityLevel           uint8      `json:"priority_level"`
	PreemptionCapability    Enumerated `json:"pre_emption_capability"`
	PreemptionVulnerability Enumerated `json:"pre_emption_vulnerability"`
}

type GBRQoSFlowInformation struct {
	MaxFlowBitRateDL        uint64  `json:"max_flow_bit_rate_downlink"`
	MaxFlowBitRateUL        uint64  `json:"max_flow_bit_rate_uplink"`
	GuaranteedFlowBitRateDL uint64  `json:"guaranteed_flow_bit_rate_downlink"`
	GuaranteedFlowBitRateUL uint64  `json:"guaranteed_flow_bit_rate_uplink"`
	MaxPacketLossRateDL     *uint16 `json:"max_packet_loss_rate_downlink,omitempty"`
	MaxPacketLossRateUL     *uint16 `json:"max_packet_loss_rate_uplink,omitempty"`
}

type QoSFlowLevelQoSParameters struct {
	Characteristics        QoSCharacteristics               `json:"qos_characteristics"`
	AllocationRetention    NGRANAllocationRetentionPriority `json:"ngran_allocation_retention_priority"`
	GBR                    *GBRQoSFlowInformation           `json:"gbr_qos_flow_information,omitempty"`
	ReflectiveQoSAttribute *Enumerated                      `json:"reflective_qos_attribute,omitempty"`
	AdditionalQoSInfo      *Enumerated                      `json:"additional_qos_information,omitempty"`
	PagingPolicyIndicator  *uint8                           `json:"paging_policy_indicator,omitempty"`
	ReflectiveQoSIndicator *Enumerated                      `json:"reflective_qos_indicator,omitempty"`
}

type QoSFlowQoSParameterItem struct {
	QoSFlowID    uint8                     `json:"qos_flow_identifier"`
	Params       QoSFlowLevelQoSParameters `json:"qos_flow_level_qos_parameters"`
	MapIndicator *Enumerated               `json:"qos_flow_mapping_indication,omitempty"`
}

type QoSFlowMapItem struct {
	QoSFlowID    uint8       `json:"qos_flow_identifier"`
	MapIndicator *Enumerated `json:"qos_flow_mapping_indication,omitempty"`
}

type DataForwardingInformationRequest struct {
	Request           Enumerated       `json:"data_forwarding_request"`
	FlowsOnFwdTunnels []QoSFlowMapItem `json:"qos_flows_forwarded_on_fwd_tunnels,omitempty"`
}

type PDCPCount struct {
	SN  uint32 `json:"pdcp_sn"`
	HFN uint32 `json:"hfn"`
}

type PDCPStatusTransferUL struct {
	Count         PDCPCount  `json:"count_value"`
	ReceiveStatus *BitString `json:"receive_status_of_pdcp_sdu,omitempty"`
}

type PDCPSNStatusInformation struct {
	UL PDCPStatusTransferUL `json:"pdcp_status_transfer_ul"`
	DL PDCPCount            `json:"pdcp_status_transfer_dl"`
}

type DRBToSetupItemNGRAN struct {
	DRBID           uint8                             `json:"drb_id"`
	SDAP            SDAPConfiguration                 `json:"sdap_configuration"`
	PDCP            PDCPConfiguration                 `json:"pdcp_configuration"`
	CellGroups      []CellGroupInformationItem        `json:"cell_group_information"`
	QoSFlows        []QoSFlowQoSParameterItem         `json:"qos_flow_information_to_be_setup"`
	DataForwarding  *DataForwardingInformationRequest `json:"drb_data_forwarding_information_request,omitempty"`
	InactivityTimer *uint16                           `json:"drb_inactivity_timer,omitempty"`
	PDCPSNStatus    *PDCPSNStatusInformation          `json:"pdcp_sn_status_information,omitempty"`
}

type DRBToModifyItemNGRAN struct {
	DRBID           uint8                      `json:"drb_id"`
	SDAP            *SDAPConfiguration         `json:"sdap_configuration,omitempty"`
	PDCP            *PDCPConfiguration         `json:"pdcp_configuration,omitempty"`
	CellGroups      []CellGroupInformationItem `json:"cell_group_information,omitempty"`
	FlowsToSetup    []QoSFlowQoSParameterItem  `json:"flow_mapping_information,omitempty"`
	FlowsToRemove   []uint8                    `json:"qos_flows_to_remove,omitempty"`
	InactivityTimer *uint16                    `json:"drb_inactivity_timer,omitempty"`
	PDCPSNStatus    *PDCPSNStatusInformation   `json:"pdcp_sn_status_information,omitempty"`
}

type PDUSessionResourceToSetupItem struct {
	PDUSessionID      uint16                            `json:"pdu_session_id"`
	Type              Enumerated                        `json:"pdu_session_type"`
	SNSSAI            SNSSAI                            `json:"snssai"`
	SecurityInd       SecurityIndication                `json:"security_indication"`
	DLAMBR            *uint64                           `json:"pdu_session_resource_dl_ambr,omitempty"`
	NGULUPTNL         UPTNLInfo                         `json:"ng_ul_up_tnl_information"`
	DataForwarding    *DataForwardingInformationRequest `json:"pdu_session_data_forwarding_information_request,omitempty"`
	InactivityTimer   *uint16                           `json:"pdu_session_inactivity_timer,omitempty"`
	ExistingNGDLUPTNL *UPTNLInfo                        `json:"existing_allocated_ng_dl_up_tnl_info,omitempty"`
	NetworkInstance   *uint16                           `json:"network_instance,omitempty"`
	DRBs              []DRBToSetupItemNGRAN             `json:"drb_to_setup_list_ng_ran"`
}

type PDUSessionResourceToModifyItem struct {
	PDUSessionID    uint16                            `json:"pdu_session_id"`
	SecurityInd     *SecurityIndication               `json:"security_indication,omitempty"`
	DLAMBR          *uint64                           `json:"pdu_session_resource_dl_ambr,omitempty"`
	NGULUPTNL       *UPTNLInfo                        `json:"ng_ul_up_tnl_information,omitempty"`
	DataForwarding  *DataForwardingInformationRequest `json:"pdu_session_data_forwarding_information_request,omitempty"`
	InactivityTimer *uint16                           `json:"pdu_session_inactivity_timer,omitempty"`
	NetworkInstance *uint16                           `json:"network_instance,omitempty"`
	DRBsToSetup     []DRBToSetupItemNGRAN             `json:"drb_to_setup_list_ng_ran,omitempty"`
	DRBsToModify    []DRBToModifyItemNGRAN            `json:"drb_to_modify_list_ng_ran,omitempty"`
	DRBsToRemove    []uint8                           `json:"drb_to_remove_list_ng_ran,omitempty"`
}

type UPParametersItem struct {
	TNL         UPTNLInfo `json:"up_tnl_information"`
	CellGroupID uint8     `json:"cell_group_id"`
}

type QoSFlowFailedItem struct {
	QoSFlowID uint8 `json:"qos_flow_identifier"`
	Cause     Cause `json:"cause"`
}

type DataForwardingInformation struct {
	UL *UPTNLInfo `json:"ul_data_forwarding,omitempty"`
	DL *UPTNLInfo `json:"dl_data_forwarding,omitempty"`
}

type DRBSetupItemNGRAN struct {
	DRBID          uint8                      `json:"drb_id"`
	DataForwarding *DataForwardingInformation `json:"drb_data_forwarding_information_response,omitempty"`
	ULUPParams     []UPParametersItem         `json:"ul_up_transport_parameters"`
	FlowsSetup     []uint8                    `json:"flow_setup_list"`
	FlowsFailed    []QoSFlowFailedItem        `json:"flow_failed_list,omitempty"`
}

type DRBModifiedItemNGRAN struct {
	DRBID        uint8                    `json:"drb_id"`
	ULUPParams   []UPParametersItem       `json:"ul_up_transport_parameters,omitempty"`
	PDCPSNStatus *PDCPSNStatusInformation `json:"pdcp_sn_status_information,omitempty"`
	FlowsSetup   []uint8                  `json:"flow_setup_list,omitempty"`
	FlowsFailed  []QoSFlowFailedItem      `json:"flow_failed_list,omitempty"`
}

type DRBFailedItemNGRAN struct {
	DRBID uint8 `json:"drb_id"`
	Cause Cause `json:"cause"`
}

type SecurityResult struct {
	Integrity       Enumerated `json:"integrity_protection_result"`
	Confidentiality Enumerated `json:"confidentiality_protection_result"`
}

type PDUSessionResourceSetupItem struct {
	PDUSessionID    uint16                     `json:"pdu_session_id"`
	SecurityResult  *SecurityResult            `json:"security_result,omitempty"`
	NGDLUPTNL       UPTNLInfo                  `json:"ng_dl_up_tnl_information"`
	DataForwarding  *DataForwardingInformation `json:"pdu_session_data_forwarding_information_response,omitempty"`
	NGDLUPUnchanged *Enumerated                `json:"ng_dl_up_unchanged,omitempty"`
	DRBsSetup       []DRBSetupItemNGRAN        `json:"drb_setup_list_ng_ran"`
	DRBsFailed      []DRBFailedItemNGRAN       `json:"drb_failed_list_ng_ran,omitempty"`
}

type PDUSessionResourceModifiedItem struct {
	PDUSessionID       uint16                     `json:"pdu_session_id"`
	NGDLUPTNL          *UPTNLInfo                 `json:"ng_dl_up_tnl_information,omitempty"`
	SecurityResult     *SecurityResult            `json:"security_result,omitempty"`
	DataForwarding     *DataForwardingInformation `json:"pdu_session_data_forwarding_information_response,omitempty"`
	DRBsSetup          []DRBSetupItemNGRAN        `json:"drb_setup_list_ng_ran,omitempty"`
	DRBsFailed         []DRBFailedItemNGRAN       `json:"drb_failed_list_ng_ran,omitempty"`
	DRBsModified       []DRBModifiedItemNGRAN     `json:"drb_modified_list_ng_ran,omitempty"`
	DRBsFailedToModify []DRBFailedItemNGRAN       `json:"drb_failed_to_modify_list_ng_ran,omitempty"`
}

type PDUSessionResourceFailedItem struct {
	PDUSessionID uint16 `json:"pdu_session_id"`
	Cause        Cause  `json:"cause"`
}

type CriticalityDiagnosticsIEItem struct {
	Criticality Enumerated `json:"ie_criticality"`
	ID          uint16     `json:"ie_id"`
	TypeOfError Enumerated `json:"type_of_error"`
}

type CriticalityDiagnostics struct {
	ProcedureCode        *uint8                         `json:"procedure_code,omitempty"`
	TriggeringMessage    *Enumerated                    `json:"triggering_message,omitempty"`
	ProcedureCriticality *Enumerated                    `json:"procedure_criticality,omitempty"`
	TransactionID        *uint8                         `json:"transaction_id,omitempty"`
	IEs                  []CriticalityDiagnosticsIEItem `json:"ies_criticality_diagnostics,omitempty"`
}
