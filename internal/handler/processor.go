// Package handler implements the bed-management workflows: admission,
// reevaluation, waitlisting, transfer confirmation and discharge. Commands
// arrive over Kafka (admissions) and MQTT (bed operations).
package handler

import (
	"fmt"
	"log"
	"strings"
	"time"

	"bed-manager/internal/assigner"
	"bed-manager/internal/matching"
	"bed-manager/internal/models"
	"bed-manager/internal/queue"
	"bed-manager/internal/scoring"

	"github.com/google/uuid"
)

// Store is the persistence surface the workflows need.
type Store interface {
	GetHospital(id string) (*models.Hospital, error)
	ListHospitals() ([]*models.Hospital, error)
	ListPatients(hospitalID string) ([]*models.Patient, error)
	GetPatient(id string) (*models.Patient, error)
	SavePatient(p *models.Patient) error
	GetBed(id string) (*models.Bed, error)
	ListBeds(hospitalID string) ([]*models.Bed, error)
	SaveBed(b *models.Bed) error
	SaveAssignment(p *models.Patient, beds []*models.Bed) error
	WithHospitalLock(hospitalID string, fn func() error) error
}

type Notifier interface {
	Notify(hospitalID, event string, details map[string]interface{})
}

type BedProcessor struct {
	store    Store
	queues   *queue.Registry
	notifier Notifier
}

func NewBedProcessor(store Store, queues *queue.Registry, notifier Notifier) *BedProcessor {
	return &BedProcessor{store: store, queues: queues, notifier: notifier}
}

// RestoreQueues rebuilds every hospital's priority queue from persisted
// patient state. Called once at startup.
func (bp *BedProcessor) RestoreQueues() error {
	hospitals, err := bp.store.ListHospitals()
	if err != nil {
		return err
	}
	total := 0
	for _, h := range hospitals {
		count, err := bp.queues.Reconcile(h.ID, bp.store)
		if err != nil {
			return err
		}
		total += count
	}
	log.Printf("Service restored. %d patients re-queued across %d hospitals.", total, len(hospitals))
	return nil
}

type AdmitRequest struct {
	Name          string                 `json:"name"`
	RUN           string                 `json:"run"`
	Sex           models.Sex             `json:"sex"`
	Age           int                    `json:"age"`
	Illness       models.Illness         `json:"illness"`
	Isolation     models.Isolation       `json:"isolation"`
	Category      models.PatientCategory `json:"category"`
	Pregnant      bool                   `json:"pregnant"`
	SocioSanitary bool                   `json:"socioSanitary"`
	CardiacHold   bool                   `json:"cardiacHold"`
	Requirements  []string               `json:"requirements"`
	Diagnosis     string                 `json:"diagnosis"`
	Notes         string                 `json:"notes"`
}

type AdmitResult struct {
	Patient *models.Patient
	Bed     *models.Bed // nil when the patient went to the waitlist
}

// AdmitPatient registers a new patient and tries to reserve a bed right away.
// When no compatible bed is free the patient lands on the priority queue and
// the assignment loop takes over.
func (bp *BedProcessor) AdmitPatient(hospitalID string, req AdmitRequest) (*AdmitResult, error) {
	hospital, err := bp.store.GetHospital(hospitalID)
	if err != nil {
		return nil, err
	}
	if hospital == nil {
		return nil, fmt.Errorf("hospital %s not found", hospitalID)
	}

	p := &models.Patient{
		ID:            newPatientID(),
		HospitalID:    hospitalID,
		Name:          req.Name,
		RUN:           req.RUN,
		Sex:           req.Sex,
		Age:           req.Age,
		Illness:       req.Illness,
		Isolation:     req.Isolation,
		Category:      req.Category,
		Pregnant:      req.Pregnant,
		SocioSanitary: req.SocioSanitary,
		CardiacHold:   req.CardiacHold,
		Requirements:  req.Requirements,
		Diagnosis:     req.Diagnosis,
		Notes:         req.Notes,
		AdmittedAt:    time.Now().UTC(),
		Waiting:       true,
	}
	if p.Isolation == "" {
		p.Isolation = models.IsolationNone
	}
	if p.Category == "" {
		p.Category = models.CategoryEmergency
	}
	p.AgeCategory = models.AgeCategoryFor(p.Age)
	p.Elderly = p.AgeCategory == models.AgeElderly
	p.UpdateComplexity()

	var reserved *models.Bed
	err = bp.store.WithHospitalLock(hospitalID, func() error {
		if err := bp.store.SavePatient(p); err != nil {
			return err
		}

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}

		bed := matching.FindBed(p, freeBeds(allBeds), allBeds)
		if bed == nil {
			log.Printf("No compatible free bed for %s, queuing", p.ID)
			return bp.enqueue(p)
		}

		changed := []*models.Bed{bed}
		changed = append(changed, matching.ClaimRoom(bed, p, allBeds)...)
		bed.Status = models.BedPendingTransfer
		bed.PatientID = p.ID
		p.DestinationBedID = bed.ID

		if err := bp.store.SaveAssignment(p, changed); err != nil {
			return err
		}
		reserved = bed
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"patientId":   p.ID,
		"patientName": p.Name,
		"complexity":  string(p.RequiredComplexity),
	}
	if reserved != nil {
		details["bedId"] = reserved.ID
	}
	bp.notifier.Notify(hospitalID, "paciente_ingresado", details)

	log.Printf("Patient admitted: %s (%s), complexity %s (%d points)",
		p.Name, p.ID, p.RequiredComplexity, p.ComplexityPoints)
	return &AdmitResult{Patient: p, Bed: reserved}, nil
}

type ReevaluateRequest struct {
	Illness       *models.Illness   `json:"illness,omitempty"`
	Isolation     *models.Isolation `json:"isolation,omitempty"`
	Requirements  []string          `json:"requirements"`
	SocioSanitary *bool             `json:"socioSanitary,omitempty"`
	CardiacHold   *bool             `json:"cardiacHold,omitempty"`
	Diagnosis     *string           `json:"diagnosis,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
}

type ReevaluateResult struct {
	Patient           *models.Patient
	RequiresDischarge bool
	RequiresBedChange bool
	BedChangeReason   string
}

// ReevaluatePatient applies updated clinical data and decides what follows:
// a suggested discharge, a flagged bed change, or nothing. It never queues
// the patient by itself; that is an explicit step (AddToWaitlist).
func (bp *BedProcessor) ReevaluatePatient(hospitalID, patientID string, req ReevaluateRequest) (*ReevaluateResult, error) {
	result := &ReevaluateResult{}

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		p, err := bp.loadPatient(hospitalID, patientID)
		if err != nil {
			return err
		}
		result.Patient = p

		if req.Illness != nil {
			p.Illness = *req.Illness
		}
		if req.Isolation != nil {
			p.Isolation = *req.Isolation
		}
		p.Requirements = req.Requirements
		if req.SocioSanitary != nil {
			p.SocioSanitary = *req.SocioSanitary
		}
		if req.CardiacHold != nil {
			p.CardiacHold = *req.CardiacHold
		}
		if req.Diagnosis != nil {
			p.Diagnosis = *req.Diagnosis
		}
		if req.Notes != nil {
			p.Notes = *req.Notes
		}
		p.UpdateComplexity()

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}
		var changed []*models.Bed

		// The old priority no longer applies; drop the queue entry.
		q := bp.queues.Queue(hospitalID)
		if q.IsActive(p.ID) {
			q.Remove(p.ID)
			p.InWaitlist = false
			log.Printf("Patient %s removed from queue for reevaluation", p.ID)
		}

		// Cancel any reserved destination bed from an earlier evaluation.
		changed = append(changed, bp.releaseDestination(p, allBeds)...)

		// An origin bed frozen mid-transfer goes back to plain occupied.
		if p.BedID != "" {
			if origin := findBed(allBeds, p.BedID); origin != nil && origin.Status == models.BedTransferOut {
				origin.Status = models.BedOccupied
				changed = append(changed, origin)
			}
		}

		current := findBed(allBeds, p.BedID)

		if matching.RequiresDischarge(p) {
			if current != nil && current.Status == models.BedOccupied {
				current.Status = models.BedDischargeSugg
				changed = append(changed, current)
			}
			result.RequiresDischarge = true
			return bp.store.SaveAssignment(p, changed)
		}

		if current != nil && matching.RequiresBedChange(p, current) {
			required, _ := matching.RequiredService(p)
			reason := fmt.Sprintf("requerimientos actualizados, servicio requerido: %s", required)

			p.NeedsNewBed = false
			p.NeedsBedSearch = true
			p.BedChangeReason = reason
			current.Status = models.BedNeedsNewBed
			changed = append(changed, current)

			result.RequiresBedChange = true
			result.BedChangeReason = reason

			if err := bp.store.SaveAssignment(p, changed); err != nil {
				return err
			}
			bp.notifier.Notify(hospitalID, "paciente_requiere_cambio_cama", map[string]interface{}{
				"patientId":   p.ID,
				"patientName": p.Name,
				"bedId":       current.ID,
				"reason":      reason,
			})
			return nil
		}

		p.NeedsNewBed = false
		p.NeedsBedSearch = false
		p.BedChangeReason = ""
		return bp.store.SaveAssignment(p, changed)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddToWaitlist puts an already-registered patient on the priority queue,
// cleaning up any half-finished assignment state first.
func (bp *BedProcessor) AddToWaitlist(hospitalID, patientID string) error {
	var p *models.Patient

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		var err error
		p, err = bp.loadPatient(hospitalID, patientID)
		if err != nil {
			return err
		}

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}
		changed := bp.releaseDestination(p, allBeds)

		if p.BedID != "" {
			if current := findBed(allBeds, p.BedID); current != nil {
				switch current.Status {
				case models.BedNeedsNewBed, models.BedTransferOut:
					current.Status = models.BedOccupied
					changed = append(changed, current)
				}
			}
		}

		p.NeedsNewBed = false
		p.NeedsBedSearch = false
		p.Waiting = true
		if p.BedID != "" {
			p.Category = models.CategoryHospitalized
		} else {
			p.Category = models.CategoryEmergency
		}

		q := bp.queues.Queue(hospitalID)
		if q.IsActive(p.ID) {
			log.Printf("Patient %s already queued, refreshing priority", p.ID)
			q.Update(p)
		} else {
			q.Add(p)
		}
		return bp.store.SaveAssignment(p, changed)
	})
	if err != nil {
		return err
	}

	bp.notifier.Notify(hospitalID, "paciente_agregado_lista_espera", map[string]interface{}{
		"patientId":   p.ID,
		"patientName": p.Name,
	})
	return nil
}

// BatchAssignBeds runs one bulk assignment pass for the hospital: every
// patient waiting without a destination is matched against the free beds in a
// single prioritized batch. Returns every pair, bedless patients included.
func (bp *BedProcessor) BatchAssignBeds(hospitalID string) ([]assigner.Assignment, error) {
	var results []assigner.Assignment
	var placed []assigner.Assignment

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		patients, err := bp.store.ListPatients(hospitalID)
		if err != nil {
			return err
		}
		var waiting []*models.Patient
		for _, p := range patients {
			if p.DestinationBedID != "" || p.DischargeConfirmed {
				continue
			}
			if p.InWaitlist || p.Waiting || p.NeedsNewBed {
				waiting = append(waiting, p)
			}
		}
		if len(waiting) == 0 {
			return nil
		}

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}

		q := bp.queues.Queue(hospitalID)
		for _, a := range assigner.BatchAssign(waiting, freeBeds(allBeds), allBeds) {
			// Earlier reservations in this pass may have filled the room;
			// re-run the pipeline against the bed before committing.
			if a.Bed != nil && matching.FindBed(a.Patient, []*models.Bed{a.Bed}, allBeds) == nil {
				a.Bed = nil
			}
			results = append(results, a)
			if a.Bed == nil {
				continue
			}
			p, bed := a.Patient, a.Bed

			changed := []*models.Bed{bed}
			changed = append(changed, matching.ClaimRoom(bed, p, allBeds)...)
			bed.Status = models.BedPendingTransfer
			bed.PatientID = p.ID

			if origin := findBed(allBeds, p.BedID); origin != nil && origin.Status == models.BedOccupied {
				origin.Status = models.BedTransferOut
				changed = append(changed, origin)
			}

			p.DestinationBedID = bed.ID
			p.InWaitlist = false
			p.Waiting = true
			p.Category = models.CategoryPendingTransfer

			if err := bp.store.SaveAssignment(p, changed); err != nil {
				return err
			}
			q.Remove(p.ID)
			placed = append(placed, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range placed {
		bp.notifier.Notify(hospitalID, "asignacion_automatica", map[string]interface{}{
			"patientId":   a.Patient.ID,
			"patientName": a.Patient.Name,
			"bedId":       a.Bed.ID,
		})
	}
	if len(results) > 0 {
		log.Printf("Batch assignment placed %d of %d patients in %s", len(placed), len(results), hospitalID)
	}
	return results, nil
}

// PatientPriority returns the patient's score breakdown and queue position
// (0 when not queued).
func (bp *BedProcessor) PatientPriority(hospitalID, patientID string) (*scoring.Breakdown, int, error) {
	p, err := bp.loadPatient(hospitalID, patientID)
	if err != nil {
		return nil, 0, err
	}

	breakdown := scoring.Explain(p)
	position := 0
	for _, info := range bp.queues.Queue(hospitalID).Snapshot() {
		if info.PatientID == patientID {
			position = info.Position
			break
		}
	}
	return &breakdown, position, nil
}

// QueueSnapshot exposes the current queue order for inspection.
func (bp *BedProcessor) QueueSnapshot(hospitalID string) []queue.EntryInfo {
	return bp.queues.Queue(hospitalID).Snapshot()
}

// SyncQueue rebuilds the hospital's queue from persisted patient state.
func (bp *BedProcessor) SyncQueue(hospitalID string) (int, error) {
	return bp.queues.Reconcile(hospitalID, bp.store)
}

// releaseDestination frees a destination bed still reserved for the patient,
// returning the touched beds. The reservation counted toward shared-room
// occupancy, so the room is released as well.
func (bp *BedProcessor) releaseDestination(p *models.Patient, allBeds []*models.Bed) []*models.Bed {
	if p.DestinationBedID == "" {
		return nil
	}
	var changed []*models.Bed
	if dest := findBed(allBeds, p.DestinationBedID); dest != nil && dest.Status == models.BedPendingTransfer {
		changed = append(changed, matching.ReleaseRoom(dest, allBeds)...)
		dest.Status = models.BedFree
		dest.PatientID = ""
		changed = append(changed, dest)
		log.Printf("Released previously reserved bed %s", dest.ID)
	}
	p.DestinationBedID = ""
	return changed
}

func (bp *BedProcessor) enqueue(p *models.Patient) error {
	bp.queues.Queue(p.HospitalID).Add(p)
	return bp.store.SavePatient(p)
}

func (bp *BedProcessor) loadPatient(hospitalID, patientID string) (*models.Patient, error) {
	p, err := bp.store.GetPatient(patientID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("patient %s not found", patientID)
	}
	if p.HospitalID != hospitalID {
		return nil, fmt.Errorf("patient %s does not belong to hospital %s", patientID, hospitalID)
	}
	return p, nil
}

func newPatientID() string {
	return "PAC-" + strings.ToUpper(uuid.New().String()[:8])
}

func freeBeds(beds []*models.Bed) []*models.Bed {
	var out []*models.Bed
	for _, bed := range beds {
		if bed.Status == models.BedFree {
			out = append(out, bed)
		}
	}
	return out
}

func findBed(beds []*models.Bed, id string) *models.Bed {
	if id == "" {
		return nil
	}
	for _, bed := range beds {
		if bed.ID == id {
			return bed
		}
	}
	return nil
}
