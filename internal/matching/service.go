// Package matching selects compatible beds for patients: it derives the ward
// service a patient needs, runs the bed filter pipeline, and keeps the
// shared-room sex/occupancy bookkeeping consistent.
package matching

import (
	"bed-manager/internal/models"
	"bed-manager/internal/scoring"
)

// RequiredService derives the ward service the patient needs. The second
// return is false when the patient is a discharge candidate: no service, the
// caller must start the discharge flow instead of a bed search.
//
// Checks run in strict order; the first match wins.
func RequiredService(p *models.Patient) (models.Service, bool) {
	// Social or cardiac hold cases never discharge.
	if p.SocioSanitary || p.CardiacHold {
		if models.HasUCIRequirement(p.Requirements) {
			return models.ServiceUCI, true
		}
		if models.HasUTIRequirement(p.Requirements) {
			return models.ServiceUTI, true
		}
		return models.ServiceMedicine, true
	}

	if len(p.Requirements) == 0 {
		return "", false
	}
	if onlyNonHospitalization(p.Requirements) {
		return "", false
	}

	if models.HasUCIRequirement(p.Requirements) {
		return models.ServiceUCI, true
	}
	if models.HasUTIRequirement(p.Requirements) {
		return models.ServiceUTI, true
	}

	// Individual-room isolation without UCI/UTI criteria goes to the
	// isolation ward.
	if scoring.RequiresIndividualRoom(p.Isolation) {
		return models.ServiceIsolation, true
	}
	if p.Isolation == models.IsolationSpecial {
		return models.ServiceIsolation, true
	}

	switch p.Illness {
	case models.IllnessSurgical:
		return models.ServiceSurgery, true
	case models.IllnessGynecological, models.IllnessObstetric:
		return models.ServiceGynecology, true
	default:
		return models.ServiceMedicine, true
	}
}

// RequiresDischarge reports whether the patient has nothing that justifies a
// bed. Hold cases are never discharged.
func RequiresDischarge(p *models.Patient) bool {
	if p.SocioSanitary || p.CardiacHold {
		return false
	}
	if len(p.Requirements) == 0 {
		return true
	}
	return onlyNonHospitalization(p.Requirements)
}

// RequiresBedChange reports whether the patient's current bed no longer
// matches their clinical needs.
func RequiresBedChange(p *models.Patient, current *models.Bed) bool {
	if current == nil {
		return false
	}

	if scoring.RequiresIndividualRoom(p.Isolation) {
		if !current.IsIndividual {
			return true
		}
		switch current.Service {
		case models.ServiceUCI:
			return !models.HasUCIRequirement(p.Requirements)
		case models.ServiceUTI:
			return !models.HasUTIRequirement(p.Requirements)
		case models.ServiceIsolation:
			// An isolation bed stops being right once acuity criteria appear.
			return models.HasUCIRequirement(p.Requirements) || models.HasUTIRequirement(p.Requirements)
		}
	}

	required, ok := RequiredService(p)
	if !ok {
		return false
	}

	if current.Service == models.ServiceMedicalSurgical {
		switch required {
		case models.ServiceMedicine, models.ServiceSurgery, models.ServiceMedicalSurgical:
			return false
		}
		return true
	}
	return required != current.Service
}

func onlyNonHospitalization(requirements []string) bool {
	for _, req := range requirements {
		if !models.IsNonHospitalization(req) {
			return false
		}
	}
	return true
}
