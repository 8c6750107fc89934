package assigner

import (
	"sort"

	"bed-manager/internal/matching"
	"bed-manager/internal/models"
)

// longWaitMinutes is the wait beyond which nobody jumps the line anymore:
// once someone has waited this long, elderly patients lose their fast lane.
const longWaitMinutes = 720

// An Assignment pairs a patient with the bed chosen for them. Bed is nil when
// no compatible bed remained.
type Assignment struct {
	Patient *models.Patient
	Bed     *models.Bed
}

// PrioritizePatients orders a batch for assignment: pregnant patients first
// (longest wait leading), then elderly patients (by clinical severity, then
// wait) unless someone in the batch has already waited past the long-wait
// cutoff, then everyone else by severity and wait.
func PrioritizePatients(patients []*models.Patient) []*models.Patient {
	anyLongWait := false
	for _, p := range patients {
		if p.WaitingMinutes > longWaitMinutes {
			anyLongWait = true
			break
		}
	}

	group := func(p *models.Patient) int {
		if p.Pregnant {
			return 0
		}
		if p.Elderly && !anyLongWait {
			return 1
		}
		return 2
	}

	out := make([]*models.Patient, len(patients))
	copy(out, patients)
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := group(out[i]), group(out[j])
		if gi != gj {
			return gi < gj
		}
		if gi == 0 {
			return out[i].WaitingMinutes > out[j].WaitingMinutes
		}
		if out[i].ComplexityPoints != out[j].ComplexityPoints {
			return out[i].ComplexityPoints > out[j].ComplexityPoints
		}
		return out[i].WaitingMinutes > out[j].WaitingMinutes
	})
	return out
}

// BatchAssign matches an ordered-by-priority batch of patients against the
// free bed pool, consuming beds as they are taken. State is not mutated; the
// caller applies the returned pairs.
func BatchAssign(patients []*models.Patient, free, allBeds []*models.Bed) []Assignment {
	pool := make([]*models.Bed, 0, len(free))
	for _, bed := range free {
		if bed.Status == models.BedFree {
			pool = append(pool, bed)
		}
	}

	assignments := make([]Assignment, 0, len(patients))
	for _, p := range PrioritizePatients(patients) {
		bed := matching.FindBed(p, pool, allBeds)
		assignments = append(assignments, Assignment{Patient: p, Bed: bed})
		if bed == nil {
			continue
		}
		for i, candidate := range pool {
			if candidate.ID == bed.ID {
				pool = append(pool[:i], pool[i+1:]...)
				break
			}
		}
	}
	return assignments
}
