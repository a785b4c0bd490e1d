package e1msg

import "github.com/signalsfoundry/gnb-controlplane/internal/pdu"

// NGRANBearerContextSetupRequest is the NG-RAN branch of the System Bearer
// Context Setup Request.
type NGRANBearerContextSetupRequest struct {
	PDUSessionResources []PDUSessionResourceToSetupItem `json:"pdu_session_resource_to_setup_list"`
}

type BearerContextSetupRequest struct {
	CUCPUEE1APID              uint32                         `json:"gnb_cu_cp_ue_e1ap_id"`
	Security                  SecurityInformation            `json:"security_information"`
	UEDLAMBR                  uint64                         `json:"ue_dl_aggregate_maximum_bit_rate"`
	UEDLMaxIntegrityRate      *uint64                        `json:"ue_dl_maximum_integrity_protected_data_rate,omitempty"`
	ServingPLMN               PLMNIdentity                   `json:"serving_plmn"`
	ActivityNotifLevel        Enumerated                     `json:"activity_notification_level"`
	UEInactivityTimer         *uint16                        `json:"ue_inactivity_timer,omitempty"`
	BearerContextStatusChange *Enumerated                    `json:"bearer_context_status_change,omitempty"`
	NGRAN                     NGRANBearerContextSetupRequest `json:"ng_ran_bearer_context_setup_request"`
	RANUEID                   []byte                         `json:"ran_ue_id,omitempty"`
	DUID                      *uint64                        `json:"gnb_du_id,omitempty"`
}

type NGRANBearerContextSetupResponse struct {
	Setup  []PDUSessionResourceSetupItem  `json:"pdu_session_resource_setup_list"`
	Failed []PDUSessionResourceFailedItem `json:"pdu_session_resource_failed_list,omitempty"`
}

type BearerContextSetupResponse struct {
	CUCPUEE1APID uint32                           `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID uint32                           `json:"gnb_cu_up_ue_e1ap_id"`
	NGRAN        *NGRANBearerContextSetupResponse `json:"ng_ran_bearer_context_setup_response,omitempty"`
}

type BearerContextSetupFailure struct {
	CUCPUEE1APID           uint32                  `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID           *uint32                 `json:"gnb_cu_up_ue_e1ap_id,omitempty"`
	Cause                  Cause                   `json:"cause"`
	CriticalityDiagnostics *CriticalityDiagnostics `json:"criticality_diagnostics,omitempty"`
}

type NGRANBearerContextModificationRequest struct {
	ToSetup  []PDUSessionResourceToSetupItem  `json:"pdu_session_resource_to_setup_mod_list,omitempty"`
	ToModify []PDUSessionResourceToModifyItem `json:"pdu_session_resource_to_modify_list,omitempty"`
	ToRemove []uint16                         `json:"pdu_session_resource_to_remove_list,omitempty"`
}

type BearerContextModificationRequest struct {
	CUCPUEE1APID              uint32                                 `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID              uint32                                 `json:"gnb_cu_up_ue_e1ap_id"`
	Security                  *SecurityInformation                   `json:"security_information,omitempty"`
	UEDLAMBR                  *uint64                                `json:"ue_dl_aggregate_maximum_bit_rate,omitempty"`
	UEDLMaxIntegrityRate      *uint64                                `json:"ue_dl_maximum_integrity_protected_data_rate,omitempty"`
	BearerContextStatusChange *Enumerated                            `json:"bearer_context_status_change,omitempty"`
	NewULTNLInfoRequired      *Enumerated                            `json:"new_ul_tnl_information_required,omitempty"`
	UEInactivityTimer         *uint16                                `json:"ue_inactivity_timer,omitempty"`
	DataDiscardRequired       *Enumerated                            `json:"data_discard_required,omitempty"`
	NGRAN                     *NGRANBearerContextModificationRequest `json:"ng_ran_bearer_context_modification_request,omitempty"`
}

type NGRANBearerContextModificationResponse struct {
	Setup          []PDUSessionResourceSetupItem    `json:"pdu_session_resource_setup_mod_list,omitempty"`
	Failed         []PDUSessionResourceFailedItem   `json:"pdu_session_resource_failed_mod_list,omitempty"`
	Modified       []PDUSessionResourceModifiedItem `json:"pdu_session_resource_modified_list,omitempty"`
	FailedToModify []PDUSessionResourceFailedItem   `json:"pdu_session_resource_failed_to_modify_list,omitempty"`
}

type BearerContextModificationResponse struct {
	CUCPUEE1APID uint32                                  `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID uint32                                  `json:"gnb_cu_up_ue_e1ap_id"`
	NGRAN        *NGRANBearerContextModificationResponse `json:"ng_ran_bearer_context_modification_response,omitempty"`
}

type BearerContextModificationFailure struct {
	CUCPUEE1APID           uint32                  `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID           uint32                  `json:"gnb_cu_up_ue_e1ap_id"`
	Cause                  Cause                   `json:"cause"`
	CriticalityDiagnostics *CriticalityDiagnostics `json:"criticality_diagnostics,omitempty"`
}

// BearerContextReleaseRequest is sent by the CU-UP when it wants a bearer
// context released.
type BearerContextReleaseRequest struct {
	CUCPUEE1APID uint32 `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID uint32 `json:"gnb_cu_up_ue_e1ap_id"`
	Cause        Cause  `json:"cause"`
}

type BearerContextReleaseCommand struct {
	CUCPUEE1APID uint32 `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID uint32 `json:"gnb_cu_up_ue_e1ap_id"`
	Cause        Cause  `json:"cause"`
}

type BearerContextReleaseComplete struct {
	CUCPUEE1APID uint32 `json:"gnb_cu_cp_ue_e1ap_id"`
	CUUPUEE1APID uint32 `json:"gnb_cu_up_ue_e1ap_id"`
}

func (*BearerContextSetupRequest) MessageType() string   { return "e1ap.BearerContextSetupRequest" }
func (*BearerContextSetupResponse) MessageType() string  { return "e1ap.BearerContextSetupResponse" }
func (*BearerContextSetupFailure) MessageType() string   { return "e1ap.BearerContextSetupFailure" }
func (*BearerContextReleaseRequest) MessageType() string { return "e1ap.BearerContextReleaseRequest" }
func (*BearerContextReleaseCommand) MessageType() string { return "e1ap.BearerContextReleaseCommand" }
func (*BearerContextReleaseComplete) MessageType() string {
	return "e1ap.BearerContextReleaseComplete"
}
func (*BearerContextModificationRequest) MessageType() string {
	return "e1ap.BearerContextModificationRequest"
}
func (*BearerContextModificationResponse) MessageType() string {
	return "e1ap.BearerContextModificationResponse"
}
func (*BearerContextModificationFailure) MessageType() string {
	return "e1ap.BearerContextModificationFailure"
}

// Register adds the E1AP message types to r.
func Register(r *pdu.Registry) {
	r.Register(
		func() pdu.Message { return &BearerContextSetupRequest{} },
		func() pdu.Message { return &BearerContextSetupResponse{} },
		func() pdu.Message { return &BearerContextSetupFailure{} },
		func() pdu.Message { return &BearerContextModificationRequest{} },
		func() pdu.Message { return &BearerContextModificationResponse{} },
		func() pdu.Message { return &BearerContextModificationFailure{} },
		func() pdu.Message { return &BearerContextReleaseRequest{} },
		func() pdu.Message { return &BearerContextReleaseCommand{} },
		func() pdu.Message { return &BearerContextReleaseComplete{} },
	)
}
