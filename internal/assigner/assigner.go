// Package assigner runs the automatic bed assignment: a background loop that
// drains each hospital's priority queue against the currently free beds, and
// a one-shot batch variant for bulk assignment.
package assigner

import (
	"context"
	"log"
	"time"

	"bed-manager/internal/matching"
	"bed-manager/internal/models"
	"bed-manager/internal/queue"
)

// Store is the persistence port the assigner mutates patient and bed state
// through. WithHospitalLock is the per-hospital serialization point: every
// mutation of one hospital's beds, patients and queue runs inside it.
type Store interface {
	ListHospitals() ([]*models.Hospital, error)
	ListBeds(hospitalID string) ([]*models.Bed, error)
	GetPatient(id string) (*models.Patient, error)
	GetBed(id string) (*models.Bed, error)
	SavePatient(p *models.Patient) error
	// SaveAssignment persists the patient and every mutated bed atomically.
	SaveAssignment(p *models.Patient, beds []*models.Bed) error
	WithHospitalLock(hospitalID string, fn func() error) error
}

// Notifier receives fire-and-forget change events. Failures are the
// notifier's problem; they never fail an assignment.
type Notifier interface {
	Notify(hospitalID, event string, details map[string]interface{})
}

const (
	DefaultInterval   = 5 * time.Second
	DefaultMaxPerTick = 5
	retryBackoff      = 5 * time.Second
)

type AutoAssigner struct {
	store      Store
	queues     *queue.Registry
	notifier   Notifier
	interval   time.Duration
	maxPerTick int
}

func NewAutoAssigner(store Store, queues *queue.Registry, notifier Notifier, interval time.Duration, maxPerTick int) *AutoAssigner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxPerTick <= 0 {
		maxPerTick = DefaultMaxPerTick
	}
	return &AutoAssigner{
		store:      store,
		queues:     queues,
		notifier:   notifier,
		interval:   interval,
		maxPerTick: maxPerTick,
	}
}

// Run drives the assignment loop until ctx is cancelled. A failure listing
// hospitals backs off and retries; a failure inside one hospital never stops
// the others.
func (a *AutoAssigner) Run(ctx context.Context) {
	log.Println("Automatic assignment loop started")
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Automatic assignment loop stopping.")
			return
		case <-ticker.C:
		}

		hospitals, err := a.store.ListHospitals()
		if err != nil {
			log.Printf("ERROR listing hospitals, retrying in %s: %v", retryBackoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		for _, hospital := range hospitals {
			select {
			case <-ctx.Done():
				return
			default:
			}
			a.ProcessHospital(hospital.ID)
		}
	}
}

// ProcessHospital performs up to maxPerTick assignments for one hospital.
// Exported so request handlers can trigger an immediate drain after enqueuing.
func (a *AutoAssigner) ProcessHospital(hospitalID string) {
	q := a.queues.Queue(hospitalID)
	if q.IsEmpty() {
		return
	}

	err := a.store.WithHospitalLock(hospitalID, func() error {
		allBeds, err := a.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}
		if countFree(allBeds) == 0 {
			return nil
		}

		// Snapshot, not a draining iterator: entries found stale below are
		// removed from the queue as they are encountered.
		assigned := 0
		for _, entry := range q.Snapshot() {
			if assigned >= a.maxPerTick {
				log.Printf("Assignment cap reached for %s this tick (%d)", hospitalID, a.maxPerTick)
				break
			}

			// Recompute availability: earlier assignments in this tick have
			// consumed beds.
			free := freeBeds(allBeds)
			if len(free) == 0 {
				break
			}

			p, err := a.store.GetPatient(entry.PatientID)
			if err != nil {
				log.Printf("ERROR loading patient %s: %v", entry.PatientID, err)
				continue
			}
			if p == nil {
				q.Remove(entry.PatientID)
				continue
			}
			if p.DestinationBedID != "" || !p.InWaitlist {
				q.Remove(entry.PatientID)
				continue
			}

			bed := matching.FindBed(p, free, allBeds)
			if bed == nil {
				continue
			}

			ok, err := a.assign(p, bed, allBeds, hospitalID)
			if err != nil {
				log.Printf("ERROR assigning bed %s to patient %s: %v", bed.ID, p.ID, err)
				continue
			}
			if ok {
				q.Remove(p.ID)
				assigned++
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR processing queue for hospital %s: %v", hospitalID, err)
	}
}

// assign reserves the bed for the patient. Returns (false, nil) when the bed
// turned out to be unavailable, (true, nil) on success or when the bed was
// already reserved for this same patient.
func (a *AutoAssigner) assign(p *models.Patient, bed *models.Bed, allBeds []*models.Bed, hospitalID string) (bool, error) {
	switch bed.Status {
	case models.BedFree:
	case models.BedPendingTransfer:
		if bed.PatientID == p.ID {
			return true, nil // already reserved for this patient
		}
		log.Printf("Bed %s already reserved for another patient", bed.ID)
		return false, nil
	default:
		log.Printf("Bed %s not available (status: %s)", bed.ID, bed.Status)
		return false, nil
	}

	changed := []*models.Bed{bed}
	changed = append(changed, matching.ClaimRoom(bed, p, allBeds)...)

	originBedID := p.BedID
	if originBedID != "" {
		origin := findBed(allBeds, originBedID)
		if origin == nil {
			loaded, err := a.store.GetBed(originBedID)
			if err != nil {
				return false, err
			}
			origin = loaded
		}
		if origin != nil {
			origin.Status = models.BedTransferOut
			changed = append(changed, origin)
		}
	}

	bed.Status = models.BedPendingTransfer
	bed.PatientID = p.ID

	p.DestinationBedID = bed.ID
	p.InWaitlist = false
	p.Waiting = true // still waiting for the physical move
	p.Category = models.CategoryPendingTransfer

	if err := a.store.SaveAssignment(p, changed); err != nil {
		return false, err
	}

	details := map[string]interface{}{
		"patientId":   p.ID,
		"patientName": p.Name,
		"bedId":       bed.ID,
	}
	if originBedID != "" {
		details["originBedId"] = originBedID
	}
	a.notifier.Notify(hospitalID, "asignacion_automatica", details)

	log.Printf("Assigned: patient %s -> bed %s (%s)", p.ID, bed.ID, hospitalID)
	return true, nil
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

func countFree(beds []*models.Bed) int {
	n := 0
	for _, bed := range beds {
		if bed.Status == models.BedFree {
			n++
		}
	}
	return n
}

func findBed(beds []*models.Bed, id string) *models.Bed {
	for _, bed := range beds {
		if bed.ID == id {
			return bed
		}
	}
	return nil
}
