package queue

import (
	"log"
	"sync"

	"bed-manager/internal/models"
)

// WaitlistSource is the persistence port the registry needs to rebuild a
// queue from stored patient state.
type WaitlistSource interface {
	ListPatients(hospitalID string) ([]*models.Patient, error)
	SavePatient(p *models.Patient) error
}

// Registry maps hospital ids to their priority queues. It is constructed by
// the composition root and injected wherever queues are needed; there is no
// package-level instance.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*HospitalQueue
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*HospitalQueue)}
}

// Queue returns the hospital's queue, creating it on first use.
func (r *Registry) Queue(hospitalID string) *HospitalQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[hospitalID]
	if !ok {
		q = NewHospitalQueue(hospitalID)
		r.queues[hospitalID] = q
		log.Printf("Priority queue created for hospital %s", hospitalID)
	}
	return q
}

// Reconcile rebuilds one hospital's queue from the patient store. Used at
// startup and for crash recovery. Returns the number of queued patients.
func (r *Registry) Reconcile(hospitalID string, src WaitlistSource) (int, error) {
	q := r.Queue(hospitalID)
	q.Clear()

	patients, err := src.ListPatients(hospitalID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range patients {
		if !needsQueue(p) {
			continue
		}
		q.Add(p)
		if err := src.SavePatient(p); err != nil {
			log.Printf("Failed to persist queued state for patient %s: %v", p.ID, err)
		}
		count++
	}
	log.Printf("Queue reconciled for %s: %d patients", hospitalID, count)
	return count, nil
}

// ClearAll empties every queue.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		q.Clear()
	}
}

// needsQueue mirrors the waitlist predicate used across the service: an
// explicit waitlist flag, or a generally waiting / rehoming patient that has
// no destination bed reserved yet.
func needsQueue(p *models.Patient) bool {
	if p.InWaitlist {
		return true
	}
	if p.DestinationBedID != "" {
		return false
	}
	return p.Waiting || p.NeedsNewBed
}
