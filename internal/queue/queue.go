// Package queue holds the per-hospital priority queues of patients waiting
// for a bed. Each queue is a max-heap ordered by priority score with a FIFO
// tie-break, plus a membership set that makes removals O(1): removed patients
// are only deactivated, their heap entries are skipped lazily on peek/pop.
package queue

import (
	"log"
	"sort"
	"sync"
	"time"

	"bed-manager/internal/models"
	"bed-manager/internal/scoring"
)

type entry struct {
	score      float64
	enqueuedAt time.Time
	seq        uint64
	patientID  string
}

// EntryInfo is one row of an ordered queue snapshot.
type EntryInfo struct {
	PatientID  string    `json:"patientId"`
	Score      float64   `json:"score"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Position   int       `json:"position"`
}

// HospitalQueue is the priority queue for a single hospital. Safe for
// concurrent use.
type HospitalQueue struct {
	hospitalID string

	mu     sync.Mutex
	heap   []entry
	active map[string]bool
	seq    uint64
	now    func() time.Time
}

func NewHospitalQueue(hospitalID string) *HospitalQueue {
	return &HospitalQueue{
		hospitalID: hospitalID,
		active:     make(map[string]bool),
		now:        time.Now,
	}
}

// Add enqueues the patient and returns the computed priority score. Adding a
// patient that is already queued is a no-op returning 0.
func (q *HospitalQueue) Add(p *models.Patient) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active[p.ID] {
		log.Printf("Patient %s already queued in %s, skipping add", p.ID, q.hospitalID)
		return 0
	}
	return q.addLocked(p)
}

// Update re-scores a queued patient by removing and re-adding it. If the
// patient is not queued it is simply added.
func (q *HospitalQueue) Update(p *models.Patient) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, p.ID) // stale heap entry skipped on future peek/pop
	return q.addLocked(p)
}

func (q *HospitalQueue) addLocked(p *models.Patient) float64 {
	score := scoring.Score(p)
	e := entry{
		score:      score,
		enqueuedAt: q.now(),
		seq:        q.seq,
		patientID:  p.ID,
	}
	q.seq++
	q.heap = append(q.heap, e)
	q.siftUp(len(q.heap) - 1)
	q.active[p.ID] = true

	p.InWaitlist = true
	p.PriorityScore = score
	return score
}

// Peek returns the highest-priority active patient id without removing it,
// discarding stale heap entries along the way.
func (q *HospitalQueue) Peek() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) > 0 {
		top := q.heap[0]
		if q.active[top.patientID] {
			return top.patientID, true
		}
		q.popLocked()
	}
	return "", false
}

// Pop removes and returns the highest-priority active patient id.
func (q *HospitalQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) > 0 {
		top := q.popLocked()
		if q.active[top.patientID] {
			delete(q.active, top.patientID)
			return top.patientID, true
		}
	}
	return "", false
}

// Remove deactivates the patient. The heap entry stays behind and is skipped
// lazily.
func (q *HospitalQueue) Remove(patientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.active[patientID] {
		log.Printf("Patient %s not queued in %s", patientID, q.hospitalID)
		return false
	}
	delete(q.active, patientID)
	return true
}

func (q *HospitalQueue) IsActive(patientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active[patientID]
}

func (q *HospitalQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Size reflects the number of active patients, not the physical heap length.
func (q *HospitalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Snapshot returns the active entries sorted by priority. The heap's physical
// order is only guaranteed at the root, so this sorts a filtered copy.
func (q *HospitalQueue) Snapshot() []EntryInfo {
	q.mu.Lock()
	valid := make([]entry, 0, len(q.active))
	for _, e := range q.heap {
		if q.active[e.patientID] {
			valid = append(valid, e)
		}
	}
	q.mu.Unlock()

	sort.Slice(valid, func(i, j int) bool {
		return entryBefore(valid[i], valid[j])
	})

	out := make([]EntryInfo, len(valid))
	for i, e := range valid {
		out[i] = EntryInfo{
			PatientID:  e.patientID,
			Score:      e.score,
			EnqueuedAt: e.enqueuedAt,
			Position:   i + 1,
		}
	}
	return out
}

// Clear resets heap, membership set and the FIFO counter.
func (q *HospitalQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
	q.active = make(map[string]bool)
	q.seq = 0
}

// entryBefore orders by score descending, then enqueue time, then insertion
// sequence, giving a stable FIFO among equal scores.
func entryBefore(a, b entry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if !a.enqueuedAt.Equal(b.enqueuedAt) {
		return a.enqueuedAt.Before(b.enqueuedAt)
	}
	return a.seq < b.seq
}

func (q *HospitalQueue) less(i, j int) bool {
	return entryBefore(q.heap[i], q.heap[j])
}

func (q *HospitalQueue) popLocked() entry {
	top := q.heap[0]
	last := len(q.heap) - 1
	q.heap[0] = q.heap[last]
	q.heap = q.heap[:last]
	if len(q.heap) > 0 {
		q.siftDown(0)
	}
	return top
}

func (q *HospitalQueue) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if !q.less(idx, parent) {
			break
		}
		q.heap[idx], q.heap[parent] = q.heap[parent], q.heap[idx]
		idx = parent
	}
}

func (q *HospitalQueue) siftDown(idx int) {
	n := len(q.heap)
	for {
		best := idx
		left := 2*idx + 1
		right := 2*idx + 2
		if left < n && q.less(left, best) {
			best = left
		}
		if right < n && q.less(right, best) {
			best = right
		}
		if best == idx {
			return
		}
		q.heap[idx], q.heap[best] = q.heap[best], q.heap[idx]
		idx = best
	}
}
