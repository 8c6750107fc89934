package handler

import (
	"encoding/json"
	"log"
)

// AdmissionEnvelope is the wire shape of messages on the admissions topic.
// Action selects the workflow; the remaining fields feed it.
type AdmissionEnvelope struct {
	Action     string             `json:"action"`
	HospitalID string             `json:"hospitalId"`
	PatientID  string             `json:"patientId,omitempty"`
	Patient    *AdmitRequest      `json:"patient,omitempty"`
	Update     *ReevaluateRequest `json:"update,omitempty"`
}

// RouteAdmissionMessage dispatches one admissions-topic message. Malformed or
// failing messages are logged and dropped; the consumer never stops over one
// bad payload.
func (bp *BedProcessor) RouteAdmissionMessage(msgValue []byte) {
	var envelope AdmissionEnvelope
	if err := json.Unmarshal(msgValue, &envelope); err != nil {
		log.Printf("Error unmarshalling admission message: %v. Raw message: %s", err, string(msgValue))
		return
	}
	if envelope.HospitalID == "" {
		log.Printf("Admission message without hospitalId, ignoring. Message: %s", string(msgValue))
		return
	}

	switch envelope.Action {
	case "ingresar":
		if envelope.Patient == nil {
			log.Printf("Admission message 'ingresar' without patient payload, ignoring")
			return
		}
		if _, err := bp.AdmitPatient(envelope.HospitalID, *envelope.Patient); err != nil {
			log.Printf("Error admitting patient: %v", err)
		}
	case "reevaluar":
		if envelope.PatientID == "" || envelope.Update == nil {
			log.Printf("Admission message 'reevaluar' missing patientId or update, ignoring")
			return
		}
		if _, err := bp.ReevaluatePatient(envelope.HospitalID, envelope.PatientID, *envelope.Update); err != nil {
			log.Printf("Error reevaluating patient %s: %v", envelope.PatientID, err)
		}
	case "lista_espera":
		if envelope.PatientID == "" {
			log.Printf("Admission message 'lista_espera' without patientId, ignoring")
			return
		}
		if err := bp.AddToWaitlist(envelope.HospitalID, envelope.PatientID); err != nil {
			log.Printf("Error waitlisting patient %s: %v", envelope.PatientID, err)
		}
	case "asignacion_batch":
		if _, err := bp.BatchAssignBeds(envelope.HospitalID); err != nil {
			log.Printf("Error batch-assigning beds for hospital %s: %v", envelope.HospitalID, err)
		}
	default:
		log.Printf("Unknown action '%s' on admissions topic, ignoring", envelope.Action)
	}
}
