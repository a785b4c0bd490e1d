package e1ap

import (
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
)

const (
	maxDRBID        = 32
	maxQoSFlowID    = 63
	maxPDUSessionID = 255
)

// converter translates between the CU-CP types and the E1AP messages. The
// first problem found sticks; later calls become no-ops returning zero
// values.
type converter struct {
	proc string
	err  error
}

func (c *converter) fail(field, format string, args ...any) {
	if c.err == nil {
		c.err = procedure.Invalid(c.proc, field, format, args...)
	}
}

func (c *converter) enum(t e1msg.Enum, field, name string) e1msg.Enumerated {
	v, ok := t.Index(name)
	if !ok {
		c.fail(field, "unknown value %q", name)
	}
	return v
}

func (c *converter) optEnum(t e1msg.Enum, field string, name *string) *e1msg.Enumerated {
	if name == nil {
		return nil
	}
	v := c.enum(t, field, *name)
	return &v
}

func (c *converter) name(t e1msg.Enum, field string, v e1msg.Enumerated) string {
	n, ok := t.Name(v)
	if !ok {
		c.fail(field, "enumerated value %d out of range", v)
	}
	return n
}

func (c *converter) optName(t e1msg.Enum, field string, v *e1msg.Enumerated) *string {
	if v == nil {
		return nil
	}
	n := c.name(t, field, *v)
	return &n
}

func (c *converter) drbID(field string, id uint8) DRBID {
	if id < 1 || id > maxDRBID {
		c.fail(field, "drb id %d out of range", id)
	}
	return DRBID(id)
}

func (c *converter) qosFlowID(field string, id uint8) QoSFlowID {
	if id > maxQoSFlowID {
		c.fail(field, "qos flow id %d out of range", id)
	}
	return QoSFlowID(id)
}

func (c *converter) pduSessionID(field string, id uint16) PDUSessionID {
	if id > maxPDUSessionID {
		c.fail(field, "pdu session id %d out of range", id)
	}
	return PDUSessionID(id)
}

// Causes and diagnostics.

func (c *converter) causeToPeer(field string, cause Cause) e1msg.Cause {
	if int(cause.Group) >= len(causeGroupNames) {
		c.fail(field, "cause group %d out of range", cause.Group)
	}
	return e1msg.Cause{Group: e1msg.Enumerated(cause.Group), Value: cause.Value}
}

func (c *converter) causeFromPeer(field string, cause e1msg.Cause) Cause {
	if int(cause.Group) >= len(causeGroupNames) {
		c.fail(field, "cause group %d out of range", cause.Group)
	}
	return Cause{Group: CauseGroup(cause.Group), Value: cause.Value}
}

func (c *converter) critDiagFromPeer(d *e1msg.CriticalityDiagnostics) *CriticalityDiagnostics {
	if d == nil {
		return nil
	}
	out := &CriticalityDiagnostics{
		ProcedureCode:        d.ProcedureCode,
		TriggeringMessage:    c.optName(e1msg.TriggeringMessage, "criticality_diagnostics.triggering_message", d.TriggeringMessage),
		ProcedureCriticality: c.optName(e1msg.Criticality, "criticality_diagnostics.procedure_criticality", d.ProcedureCriticality),
		TransactionID:        d.TransactionID,
	}
	for _, ie := range d.IEs {
		out.IEs = append(out.IEs, IEDiagnostic{
			Criticality: c.name(e1msg.Criticality, "criticality_diagnostics.ie_criticality", ie.Criticality),
			ID:          ie.ID,
			TypeOfError: c.name(e1msg.TypeOfError, "criticality_diagnostics.type_of_error", ie.TypeOfError),
		})
	}
	return out
}

// Transport.

func (c *converter) tnlToPeer(field string, in UPTransportLayerInfo) e1msg.UPTNLInfo {
	addr, err := e1msg.AddressFromIP(in.Address)
	if err != nil {
		c.fail(field, "%v", err)
	}
	return e1msg.UPTNLInfo{TransportLayerAddress: addr, TEID: e1msg.TEIDFromUint(in.TEID)}
}

func (c *converter) optTNLToPeer(field string, in *UPTransportLayerInfo) *e1msg.UPTNLInfo {
	if in == nil {
		return nil
	}
	out := c.tnlToPeer(field, *in)
	return &out
}

func (c *converter) tnlFromPeer(field string, in e1msg.UPTNLInfo) UPTransportLayerInfo {
	addr, err := in.TransportLayerAddress.IP()
	if err != nil {
		c.fail(field, "%v", err)
	}
	return UPTransportLayerInfo{Address: addr, TEID: in.TEID.Uint()}
}

func (c *converter) optTNLFromPeer(field string, in *e1msg.UPTNLInfo) *UPTransportLayerInfo {
	if in == nil {
		return nil
	}
	out := c.tnlFromPeer(field, *in)
	return &out
}

// Request side.

func (c *converter) securityInfo(in SecurityInfo) e1msg.SecurityInformation {
	if len(in.EncryptionKey) == 0 {
		c.fail("security_information.encryption_key", "missing")
	}
	return e1msg.SecurityInformation{
		Algorithm: e1msg.SecurityAlgorithm{
			Ciphering: c.enum(e1msg.CipheringAlgorithm, "security_information.ciphering_algorithm", in.Algorithm.Ciphering),
			Integrity: c.optEnum(e1msg.IntegrityAlgorithm, "security_information.integrity_protection_algorithm", in.Algorithm.Integrity),
		},
		EncryptionKey: in.EncryptionKey,
		IntegrityKey:  in.IntegrityKey,
	}
}

func (c *converter) snssai(in SNSSAI) e1msg.SNSSAI {
	out := e1msg.SNSSAI{SST: []byte{in.SST}}
	if in.SD != nil {
		if *in.SD > 0xffffff {
			c.fail("snssai.sd", "%#x does not fit in 3 octets", *in.SD)
		}
		sd := *in.SD
		out.SD = []byte{byte(sd >> 16), byte(sd >> 8), byte(sd)}
	}
	return out
}

func (c *converter) securityIndication(in SecurityIndication) e1msg.SecurityIndication {
	return e1msg.SecurityIndication{
		Confidentiality: c.enum(e1msg.ProtectionIndication, "security_indication.confidentiality", in.Confidentiality),
		Integrity:       c.enum(e1msg.ProtectionIndication, "security_indication.integrity", in.Integrity),
		MaxIPRate:       c.optEnum(e1msg.MaxIPRate, "security_indication.maximum_ip_datarate", in.MaxIPDataRate),
	}
}

func (c *converter) sdapConfig(in SDAPConfig) e1msg.SDAPConfiguration {
	def := "false"
	if in.DefaultDRB {
		def = "true"
	}
	return e1msg.SDAPConfiguration{
		DefaultDRB: c.enum(e1msg.DefaultDRB, "sdap_configuration.default_drb", def),
		HeaderUL:   c.enum(e1msg.SDAPHeader, "sdap_configuration.sdap_header_ul", in.HeaderUL),
		HeaderDL:   c.enum(e1msg.SDAPHeader, "sdap_configuration.sdap_header_dl", in.HeaderDL),
	}
}

func (c *converter) snSize(field string, bits uint8) e1msg.Enumerated {
	switch bits {
	case 12:
		return 0
	case 18:
		return 1
	default:
		c.fail(field, "pdcp sn size %d", bits)
		return 0
	}
}

func (c *converter) pdcpConfig(in PDCPConfig) e1msg.PDCPConfiguration {
	return e1msg.PDCPConfiguration{
		SNSizeUL:     c.snSize("pdcp_configuration.pdcp_sn_size_ul", in.SNSizeUL),
		SNSizeDL:     c.snSize("pdcp_configuration.pdcp_sn_size_dl", in.SNSizeDL),
		RLCMode:      c.enum(e1msg.RLCMode, "pdcp_configuration.rlc_mode", in.RLCMode),
		DiscardTimer: in.DiscardTimerMs,
		TReordering:  in.TReorderingMs,
	}
}

func (c *converter) cellGroups(in []CellGroupInfo) []e1msg.CellGroupInformationItem {
	out := make([]e1msg.CellGroupInformationItem, 0, len(in))
	for _, cg := range in {
		out = append(out, e1msg.CellGroupInformationItem{
			CellGroupID: cg.CellGroupID,
			ULConfig:    c.optEnum(e1msg.ULConfiguration, "cell_group_information.ul_configuration", cg.ULConfig),
			DLTxStop:    c.optEnum(e1msg.DLTxStop, "cell_group_information.dl_tx_stop", cg.DLTxStop),
			RATType:     c.optEnum(e1msg.RATType, "cell_group_information.rat_type", cg.RATType),
		})
	}
	return out
}

func (c *converter) qosCharacteristics(in QoSCharacteristics) e1msg.QoSCharacteristics {
	switch {
	case in.Dynamic != nil && in.NonDynamic != nil:
		c.fail("qos_characteristics", "both dynamic and non-dynamic 5QI set")
	case in.Dynamic != nil:
		d := in.Dynamic
		return e1msg.QoSCharacteristics{Dynamic: &e1msg.Dynamic5QIDescriptor{
			PriorityLevel:      d.PriorityLevel,
			PacketDelayBudget:  d.PacketDelayBudget,
			PacketErrorRate:    e1msg.PacketErrorRate(d.PacketErrorRate),
			FiveQI:             d.FiveQI,
			DelayCritical:      c.optEnum(e1msg.DelayCritical, "dynamic_5qi.delay_critical", d.DelayCritical),
			AveragingWindow:    d.AveragingWindow,
			MaxDataBurstVolume: d.MaxDataBurstVolume,
		}}
	case in.NonDynamic != nil:
		nd := in.NonDynamic
		return e1msg.QoSCharacteristics{NonDynamic: &e1msg.NonDynamic5QIDescriptor{
			FiveQI:             nd.FiveQI,
			PriorityLevel:      nd.PriorityLevel,
			AveragingWindow:    nd.AveragingWindow,
			MaxDataBurstVolume: nd.MaxDataBurstVolume,
		}}
	default:
		c.fail("qos_characteristics", "missing")
	}
	return e1msg.QoSCharacteristics{}
}

func (c *converter) qosFlows(in []QoSFlowItem) []e1msg.QoSFlowQoSParameterItem {
	out := make([]e1msg.QoSFlowQoSParameterItem, 0, len(in))
	for _, f := range in {
		p := f.Params
		item := e1msg.QoSFlowQoSParameterItem{
			QoSFlowID: uint8(c.qosFlowID("qos_flow_identifier", uint8(f.ID))),
			Params: e1msg.QoSFlowLevelQoSParameters{
				Characteristics: c.qosCharacteristics(p.Characteristics),
				AllocationRetention: e1msg.NGRANAllocationRetentionPriority{
					PriorityLevel:           p.AllocationRetention.PriorityLevel,
					PreemptionCapability:    c.enum(e1msg.PreemptionCapability, "ngran_allocation_retention_priority.pre_emption_capability", p.AllocationRetention.PreemptionCapability),
					PreemptionVulnerability: c.enum(e1msg.PreemptionVulnerability, "ngran_allocation_retention_priority.pre_emption_vulnerability", p.AllocationRetention.PreemptionVulnerability),
				},
				ReflectiveQoSAttribute: c.optEnum(e1msg.ReflectiveQoSAttribute, "reflective_qos_attribute", p.ReflectiveQoSAttribute),
				AdditionalQoSInfo:      c.optEnum(e1msg.AdditionalQoSInfo, "additional_qos_information", p.AdditionalQoSInfo),
				PagingPolicyIndicator:  p.PagingPolicyIndicator,
				ReflectiveQoSIndicator: c.optEnum(e1msg.ReflectiveQoSIndicator, "reflective_qos_indicator", p.ReflectiveQoSIndicator),
			},
			MapIndicator: c.optEnum(e1msg.QoSFlowMappingIndication, "qos_flow_mapping_indication", f.MapIndicator),
		}
		if p.GBR != nil {
			gbr := e1msg.GBRQoSFlowInformation(*p.GBR)
			item.Params.GBR = &gbr
		}
		out = append(out, item)
	}
	return out
}

func (c *converter) dataForwardingRequest(in *DataForwardingRequest) *e1msg.DataForwardingInformationRequest {
	if in == nil {
		return nil
	}
	out := &e1msg.DataForwardingInformationRequest{
		Request: c.enum(e1msg.DataForwardingRequest, "data_forwarding_request", in.Request),
	}
	for _, m := range in.FlowsOnFwdTunnels {
		out.FlowsOnFwdTunnels = append(out.FlowsOnFwdTunnels, e1msg.QoSFlowMapItem{
			QoSFlowID:    uint8(c.qosFlowID("qos_flows_forwarded_on_fwd_tunnels", uint8(m.ID))),
			MapIndicator: c.optEnum(e1msg.QoSFlowMappingIndication, "qos_flow_mapping_indication", m.MapIndicator),
		})
	}
	return out
}

func (c *converter) snStatusToPeer(in *PDCPSNStatusInfo) *e1msg.PDCPSNStatusInformation {
	if in == nil {
		return nil
	}
	out := &e1msg.PDCPSNStatusInformation{
		UL: e1msg.PDCPStatusTransferUL{Count: e1msg.PDCPCount(in.UL)},
		DL: e1msg.PDCPCount(in.DL),
	}
	if in.ReceiveStatus != nil {
		out.UL.ReceiveStatus = &e1msg.BitString{Bytes: in.ReceiveStatus, Len: uint16(len(in.ReceiveStatus) * 8)}
	}
	return out
}

func (c *converter) snStatusFromPeer(in *e1msg.PDCPSNStatusInformation) *PDCPSNStatusInfo {
	if in == nil {
		return nil
	}
	out := &PDCPSNStatusInfo{UL: PDCPCount(in.UL.Count), DL: PDCPCount(in.DL)}
	if rs := in.UL.ReceiveStatus; rs != nil {
		if len(rs.Bytes) != (int(rs.Len)+7)/8 {
			c.fail("receive_status_of_pdcp_sdu", "%d bits in %d bytes", rs.Len, len(rs.Bytes))
		}
		out.ReceiveStatus = rs.Bytes
	}
	return out
}

func (c *converter) drbsToSetup(in []DRBToSetup) []e1msg.DRBToSetupItemNGRAN {
	out := make([]e1msg.DRBToSetupItemNGRAN, 0, len(in))
	for _, d := range in {
		out = append(out, e1msg.DRBToSetupItemNGRAN{
			DRBID:           uint8(c.drbID("drb_to_setup.drb_id", uint8(d.ID))),
			SDAP:            c.sdapConfig(d.SDAP),
			PDCP:            c.pdcpConfig(d.PDCP),
			CellGroups:      c.cellGroups(d.CellGroups),
			QoSFlows:        c.qosFlows(d.QoSFlows),
			DataForwarding:  c.dataForwardingRequest(d.DataForwarding),
			InactivityTimer: d.InactivityTimer,
			PDCPSNStatus:    c.snStatusToPeer(d.PDCPSNStatus),
		})
	}
	return out
}

func (c *converter) pduSessionsToSetup(in []PDUSessionToSetup) []e1msg.PDUSessionResourceToSetupItem {
	out := make([]e1msg.PDUSessionResourceToSetupItem, 0, len(in))
	for _, s := range in {
		if len(s.DRBs) == 0 {
			c.fail("pdu_session_resource_to_setup.drb_to_setup_list_ng_ran", "pdu session %d has no drb", s.ID)
		}
		out = append(out, e1msg.PDUSessionResourceToSetupItem{
			PDUSessionID:      uint16(c.pduSessionID("pdu_session_resource_to_setup.pdu_session_id", uint16(s.ID))),
			Type:              c.enum(e1msg.PDUSessionType, "pdu_session_type", s.Type),
			SNSSAI:            c.snssai(s.SNSSAI),
			SecurityInd:       c.securityIndication(s.SecurityInd),
			DLAMBR:            s.DLAMBR,
			NGULUPTNL:         c.tnlToPeer("ng_ul_up_tnl_information", s.NGULUPTNL),
			DataForwarding:    c.dataForwardingRequest(s.DataForwarding),
			InactivityTimer:   s.InactivityTimer,
			ExistingNGDLUPTNL: c.optTNLToPeer("existing_allocated_ng_dl_up_tnl_info", s.ExistingNGDLUPTNL),
			NetworkInstance:   s.NetworkInstance,
			DRBs:              c.drbsToSetup(s.DRBs),
		})
	}
	return out
}

func (c *converter) drbsToModify(in []DRBToModify) []e1msg.DRBToModifyItemNGRAN {
	var out []e1msg.DRBToModifyItemNGRAN
	for _, d := range in {
		item := e1msg.DRBToModifyItemNGRAN{
			DRBID:           uint8(c.drbID("drb_to_modify.drb_id", uint8(d.ID))),
			InactivityTimer: d.InactivityTimer,
			PDCPSNStatus:    c.snStatusToPeer(d.PDCPSNStatus),
		}
		if d.SDAP != nil {
			sdap := c.sdapConfig(*d.SDAP)
			item.SDAP = &sdap
		}
		if d.PDCP != nil {
			pdcp := c.pdcpConfig(*d.PDCP)
			item.PDCP = &pdcp
		}
		if len(d.CellGroups) > 0 {
			item.CellGroups = c.cellGroups(d.CellGroups)
		}
		if len(d.FlowsToSetup) > 0 {
			item.FlowsToSetup = c.qosFlows(d.FlowsToSetup)
		}
		for _, id := range d.FlowsToRemove {
			item.FlowsToRemove = append(item.FlowsToRemove, uint8(c.qosFlowID("qos_flows_to_remove", uint8(id))))
		}
		out = append(out, item)
	}
	return out
}

func (c *converter) pduSessionsToModify(in []PDUSessionToModify) []e1msg.PDUSessionResourceToModifyItem {
	var out []e1msg.PDUSessionResourceToModifyItem
	for _, s := range in {
		item := e1msg.PDUSessionResourceToModifyItem{
			PDUSessionID:    uint16(c.pduSessionID("pdu_session_resource_to_modify.pdu_session_id", uint16(s.ID))),
			DLAMBR:          s.DLAMBR,
			NGULUPTNL:       c.optTNLToPeer("ng_ul_up_tnl_information", s.NGULUPTNL),
			DataForwarding:  c.dataForwardingRequest(s.DataForwarding),
			InactivityTimer: s.InactivityTimer,
			NetworkInstance: s.NetworkInstance,
			DRBsToModify:    c.drbsToModify(s.DRBsToModify),
		}
		if s.SecurityInd != nil {
			ind := c.securityIndication(*s.SecurityInd)
			item.SecurityInd = &ind
		}
		if len(s.DRBsToSetup) > 0 {
			item.DRBsToSetup = c.drbsToSetup(s.DRBsToSetup)
		}
		for _, id := range s.DRBsToRemove {
			item.DRBsToRemove = append(item.DRBsToRemove, uint8(c.drbID("drb_to_remove.drb_id", uint8(id))))
		}
		out = append(out, item)
	}
	return out
}

// Response side.

func (c *converter) upParams(in []e1msg.UPParametersItem) []UPParamsItem {
	var out []UPParamsItem
	for _, p := range in {
		out = append(out, UPParamsItem{
			TNL:         c.tnlFromPeer("ul_up_transport_parameters.up_tnl_information", p.TNL),
			CellGroupID: p.CellGroupID,
		})
	}
	return out
}

func (c *converter) flowsSetup(in []uint8) []QoSFlowID {
	var out []QoSFlowID
	for _, id := range in {
		out = append(out, c.qosFlowID("flow_setup_list", id))
	}
	return out
}

func (c *converter) flowsFailed(in []e1msg.QoSFlowFailedItem) []QoSFlowFailed {
	var out []QoSFlowFailed
	for _, f := range in {
		out = append(out, QoSFlowFailed{
			ID:    c.qosFlowID("flow_failed_list", f.QoSFlowID),
			Cause: c.causeFromPeer("flow_failed_list.cause", f.Cause),
		})
	}
	return out
}

func (c *converter) dataForwardingResponse(in *e1msg.DataForwardingInformation) *DataForwardingResponse {
	if in == nil {
		return nil
	}
	return &DataForwardingResponse{
		UL: c.optTNLFromPeer("ul_data_forwarding", in.UL),
		DL: c.optTNLFromPeer("dl_data_forwarding", in.DL),
	}
}

func (c *converter) securityResult(in *e1msg.SecurityResult) *SecurityResult {
	if in == nil {
		return nil
	}
	return &SecurityResult{
		Confidentiality: c.name(e1msg.ProtectionResult, "security_result.confidentiality_protection_result", in.Confidentiality),
		Integrity:       c.name(e1msg.ProtectionResult, "security_result.integrity_protection_result", in.Integrity),
	}
}

func (c *converter) drbsSetup(in []e1msg.DRBSetupItemNGRAN) []DRBSetupItem {
	var out []DRBSetupItem
	for _, d := range in {
		out = append(out, DRBSetupItem{
			ID:             c.drbID("drb_setup_list_ng_ran.drb_id", d.DRBID),
			ULUPParams:     c.upParams(d.ULUPParams),
			FlowsSetup:     c.flowsSetup(d.FlowsSetup),
			FlowsFailed:    c.flowsFailed(d.FlowsFailed),
			DataForwarding: c.dataForwardingResponse(d.DataForwarding),
		})
	}
	return out
}

func (c *converter) drbsFailed(field string, in []e1msg.DRBFailedItemNGRAN) []DRBFailed {
	var out []DRBFailed
	for _, d := range in {
		out = append(out, DRBFailed{
			ID:    c.drbID(field+".drb_id", d.DRBID),
			Cause: c.causeFromPeer(field+".cause", d.Cause),
		})
	}
	return out
}

func (c *converter) drbsModified(in []e1msg.DRBModifiedItemNGRAN) []DRBModifiedItem {
	var out []DRBModifiedItem
	for _, d := range in {
		out = append(out, DRBModifiedItem{
			ID:           c.drbID("drb_modified_list_ng_ran.drb_id", d.DRBID),
			ULUPParams:   c.upParams(d.ULUPParams),
			FlowsSetup:   c.flowsSetup(d.FlowsSetup),
			FlowsFailed:  c.flowsFailed(d.FlowsFailed),
			PDCPSNStatus: c.snStatusFromPeer(d.PDCPSNStatus),
		})
	}
	return out
}

func (c *converter) pduSessionsSetup(in []e1msg.PDUSessionResourceSetupItem) []PDUSessionSetupItem {
	var out []PDUSessionSetupItem
	for _, s := range in {
		item := PDUSessionSetupItem{
			ID:             c.pduSessionID("pdu_session_resource_setup_list.pdu_session_id", s.PDUSessionID),
			NGDLUPTNL:      c.tnlFromPeer("ng_dl_up_tnl_information", s.NGDLUPTNL),
			DRBsSetup:      c.drbsSetup(s.DRBsSetup),
			DRBsFailed:     c.drbsFailed("drb_failed_list_ng_ran", s.DRBsFailed),
			SecurityResult: c.securityResult(s.SecurityResult),
			DataForwarding: c.dataForwardingResponse(s.DataForwarding),
		}
		if s.NGDLUPUnchanged != nil {
			c.name(e1msg.NGDLUPUnchanged, "ng_dl_up_unchanged", *s.NGDLUPUnchanged)
			unchanged := true
			item.NGDLUPUnchanged = &unchanged
		}
		out = append(out, item)
	}
	return out
}

func (c *converter) pduSessionsModified(in []e1msg.PDUSessionResourceModifiedItem) []PDUSessionModifiedItem {
	var out []PDUSessionModifiedItem
	for _, s := range in {
		out = append(out, PDUSessionModifiedItem{
			ID:                 c.pduSessionID("pdu_session_resource_modified_list.pdu_session_id", s.PDUSessionID),
			NGDLUPTNL:          c.optTNLFromPeer("ng_dl_up_tnl_information", s.NGDLUPTNL),
			DRBsSetup:          c.drbsSetup(s.DRBsSetup),
			DRBsFailed:         c.drbsFailed("drb_failed_list_ng_ran", s.DRBsFailed),
			DRBsModified:       c.drbsModified(s.DRBsModified),
			DRBsFailedToModify: c.drbsFailed("drb_failed_to_modify_list_ng_ran", s.DRBsFailedToModify),
			SecurityResult:     c.securityResult(s.SecurityResult),
			DataForwarding:     c.dataForwardingResponse(s.DataForwarding),
		})
	}
	return out
}

func (c *converter) pduSessionsFailed(field string, in []e1msg.PDUSessionResourceFailedItem) []PDUSessionFailed {
	var out []PDUSessionFailed
	for _, f := range in {
		out = append(out, PDUSessionFailed{
			ID:    c.pduSessionID(field+".pdu_session_id", f.PDUSessionID),
			Cause: c.causeFromPeer(field+".cause", f.Cause),
		})
	}
	return out
}

// Messages.

func toSetupRequest(cucpID uint32, in *BearerContextSetupRequest) (*e1msg.BearerContextSetupRequest, error) {
	c := &converter{proc: setupProcedureName}
	plmn, err := e1msg.ParsePLMN(in.ServingPLMN)
	if err != nil {
		c.fail("serving_plmn", "%v", err)
	}
	if len(in.PDUSessions) == 0 {
		c.fail("pdu_session_resource_to_setup_list", "empty")
	}
	out := &e1msg.BearerContextSetupRequest{
		CUCPUEE1APID:              cucpID,
		Security:                  c.securityInfo(in.Security),
		UEDLAMBR:                  in.UEDLAMBR,
		UEDLMaxIntegrityRate:      in.UEDLMaxIntegrityRate,
		ServingPLMN:               plmn,
		ActivityNotifLevel:        c.enum(e1msg.ActivityNotificationLevel, "activity_notification_level", in.ActivityNotifLevel),
		UEInactivityTimer:         in.UEInactivityTimer,
		BearerContextStatusChange: c.optEnum(e1msg.BearerContextStatusChange, "bearer_context_status_change", in.BearerContextStatusChange),
		NGRAN:                     e1msg.NGRANBearerContextSetupRequest{PDUSessionResources: c.pduSessionsToSetup(in.PDUSessions)},
		DUID:                      in.DUID,
	}
	if in.RANUEID != nil {
		out.RANUEID = e1msg.BitStringFromUint(*in.RANUEID, 64).Bytes
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

func fromSetupResponse(in *e1msg.BearerContextSetupResponse, requested []PDUSessionToSetup, out *BearerContextSetupResponse) error {
	c := &converter{proc: setupProcedureName}
	if in.NGRAN == nil {
		c.fail("ng_ran_bearer_context_setup_response", "missing")
		return c.err
	}
	out.Success = true
	out.PDUSessionsSetup = c.pduSessionsSetup(in.NGRAN.Setup)
	out.PDUSessionsFailed = c.pduSessionsFailed("pdu_session_resource_failed_list", in.NGRAN.Failed)
	if len(out.PDUSessionsSetup)+len(out.PDUSessionsFailed) == 0 {
		c.fail("pdu_session_resource_setup_list", "no pdu session in response")
	}
	answered := c.answeredSessions(setupIDs(requested))
	for _, s := range out.PDUSessionsSetup {
		answered("pdu_session_resource_setup_list", s.ID)
	}
	for _, f := range out.PDUSessionsFailed {
		answered("pdu_session_resource_failed_list", f.ID)
	}
	return c.err
}

func fromSetupFailure(in *e1msg.BearerContextSetupFailure, out *BearerContextSetupResponse) error {
	c := &converter{proc: setupProcedureName}
	cause := c.causeFromPeer("cause", in.Cause)
	out.Success = false
	out.Cause = &cause
	out.CriticalityDiagnostics = c.critDiagFromPeer(in.CriticalityDiagnostics)
	return c.err
}

func toModificationRequest(cucpID, cuupID uint32, in *BearerContextModificationRequest) (*e1msg.BearerContextModificationRequest, error) {
	c := &converter{proc: modificationProcedureName}
	if in.empty() {
		c.fail("", "request modifies nothing")
	}
	out := &e1msg.BearerContextModificationRequest{
		CUCPUEE1APID:              cucpID,
		CUUPUEE1APID:              cuupID,
		UEDLAMBR:                  in.UEDLAMBR,
		UEDLMaxIntegrityRate:      in.UEDLMaxIntegrityRate,
		BearerContextStatusChange: c.optEnum(e1msg.BearerContextStatusChange, "bearer_context_status_change", in.BearerContextStatusChange),
		UEInactivityTimer:         in.UEInactivityTimer,
	}
	if in.Security != nil {
		sec := c.securityInfo(*in.Security)
		out.Security = &sec
	}
	if in.NewULTNLInfoRequired != nil && *in.NewULTNLInfoRequired {
		v := c.enum(e1msg.NewULTNLInfoRequired, "new_ul_tnl_information_required", "required")
		out.NewULTNLInfoRequired = &v
	}
	if in.DataDiscardRequired != nil && *in.DataDiscardRequired {
		v := c.enum(e1msg.DataDiscardRequired, "data_discard_required", "required")
		out.DataDiscardRequired = &v
	}
	if len(in.PDUSessionsToSetup)+len(in.PDUSessionsToModify)+len(in.PDUSessionsToRemove) > 0 {
		ngran := &e1msg.NGRANBearerContextModificationRequest{
			ToModify: c.pduSessionsToModify(in.PDUSessionsToModify),
		}
		if len(in.PDUSessionsToSetup) > 0 {
			ngran.ToSetup = c.pduSessionsToSetup(in.PDUSessionsToSetup)
		}
		for _, id := range in.PDUSessionsToRemove {
			ngran.ToRemove = append(ngran.ToRemove, uint16(c.pduSessionID("pdu_session_resource_to_remove_list", uint16(id))))
		}
		out.NGRAN = ngran
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

func fromModificationResponse(in *e1msg.BearerContextModificationResponse, req *BearerContextModificationRequest, out *BearerContextModificationResponse) error {
	c := &converter{proc: modificationProcedureName}
	out.Success = true
	if in.NGRAN == nil {
		return nil
	}
	out.PDUSessionsSetup = c.pduSessionsSetup(in.NGRAN.Setup)
	out.PDUSessionsFailed = c.pduSessionsFailed("pdu_session_resource_failed_mod_list", in.NGRAN.Failed)
	out.PDUSessionsModified = c.pduSessionsModified(in.NGRAN.Modified)
	out.PDUSessionsFailedToModify = c.pduSessionsFailed("pdu_session_resource_failed_to_modify_list", in.NGRAN.FailedToModify)

	setup := c.answeredSessions(setupIDs(req.PDUSessionsToSetup))
	for _, s := range out.PDUSessionsSetup {
		setup("pdu_session_resource_setup_mod_list", s.ID)
	}
	for _, f := range out.PDUSessionsFailed {
		setup("pdu_session_resource_failed_mod_list", f.ID)
	}
	toModify := make([]PDUSessionID, 0, len(req.PDUSessionsToModify))
	for _, m := range req.PDUSessionsToModify {
		toModify = append(toModify, m.ID)
	}
	modified := c.answeredSessions(toModify)
	for _, m := range out.PDUSessionsModified {
		modified("pdu_session_resource_modified_list", m.ID)
	}
	for _, f := range out.PDUSessionsFailedToModify {
		modified("pdu_session_resource_failed_to_modify_list", f.ID)
	}
	return c.err
}

func setupIDs(in []PDUSessionToSetup) []PDUSessionID {
	out := make([]PDUSessionID, 0, len(in))
	for _, s := range in {
		out = append(out, s.ID)
	}
	return out
}

// answeredSessions returns a check that fails the conversion when a response
// item names a session outside requested, or one already answered.
func (c *converter) answeredSessions(requested []PDUSessionID) func(field string, id PDUSessionID) {
	want := make(map[PDUSessionID]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	seen := make(map[PDUSessionID]bool, len(requested))
	return func(field string, id PDUSessionID) {
		switch {
		case !want[id]:
			c.fail(field, "pdu session %d was not requested", id)
		case seen[id]:
			c.fail(field, "pdu session %d answered more than once", id)
		}
		seen[id] = true
	}
}

func fromModificationFailure(in *e1msg.BearerContextModificationFailure, out *BearerContextModificationResponse) error {
	c := &converter{proc: modificationProcedureName}
	cause := c.causeFromPeer("cause", in.Cause)
	out.Success = false
	out.Cause = &cause
	out.CriticalityDiagnostics = c.critDiagFromPeer(in.CriticalityDiagnostics)
	return c.err
}
