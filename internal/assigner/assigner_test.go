package assigner

import (
	"fmt"
	"testing"

	"bed-manager/internal/models"
	"bed-manager/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	hospitals []*models.Hospital
	patients  map[string]*models.Patient
	beds      []*models.Bed
	saves     int
}

func (s *fakeStore) ListHospitals() ([]*models.Hospital, error) { return s.hospitals, nil }

func (s *fakeStore) ListBeds(hospitalID string) ([]*models.Bed, error) {
	var out []*models.Bed
	for _, bed := range s.beds {
		if bed.HospitalID == hospitalID {
			out = append(out, bed)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPatient(id string) (*models.Patient, error) { return s.patients[id], nil }

func (s *fakeStore) GetBed(id string) (*models.Bed, error) {
	for _, bed := range s.beds {
		if bed.ID == id {
			return bed, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SavePatient(p *models.Patient) error { return nil }

func (s *fakeStore) SaveAssignment(p *models.Patient, beds []*models.Bed) error {
	s.saves++
	return nil
}

func (s *fakeStore) WithHospitalLock(hospitalID string, fn func() error) error { return fn() }

func (s *fakeStore) ListPatients(hospitalID string) ([]*models.Patient, error) {
	var out []*models.Patient
	for _, p := range s.patients {
		if p.HospitalID == hospitalID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(hospitalID, event string, details map[string]interface{}) {
	n.events = append(n.events, event)
}

func setupAssigner(t *testing.T) (*AutoAssigner, *fakeStore, *fakeNotifier, *queue.Registry) {
	t.Helper()
	store := &fakeStore{
		hospitals: []*models.Hospital{{ID: "HOSP-1", Name: "Hospital Central"}},
		patients:  make(map[string]*models.Patient),
	}
	notifier := &fakeNotifier{}
	queues := queue.NewRegistry()
	a := NewAutoAssigner(store, queues, notifier, 0, 0)
	return a, store, notifier, queues
}

func queuedPatient(id string, waitMinutes int) *models.Patient {
	p := waitingPatient(id, waitMinutes)
	p.Waiting = true
	return p
}

func TestProcessHospitalAssignsHighestPriority(t *testing.T) {
	a, store, notifier, queues := setupAssigner(t)

	urgent := queuedPatient("PAC-URGENT", 600)
	urgent.RequiredComplexity = models.ComplexityHigh
	calm := queuedPatient("PAC-CALM", 10)
	store.patients[urgent.ID] = urgent
	store.patients[calm.ID] = calm
	store.beds = []*models.Bed{medicineBed("CAMA-1", 1)}

	q := queues.Queue("HOSP-1")
	q.Add(calm)
	q.Add(urgent)

	a.ProcessHospital("HOSP-1")

	bed := store.beds[0]
	assert.Equal(t, models.BedPendingTransfer, bed.Status)
	assert.Equal(t, "PAC-URGENT", bed.PatientID)
	assert.Equal(t, "CAMA-1", urgent.DestinationBedID)
	assert.False(t, urgent.InWaitlist)
	assert.True(t, urgent.Waiting)
	assert.Equal(t, models.CategoryPendingTransfer, urgent.Category)
	assert.False(t, q.IsActive("PAC-URGENT"))
	assert.True(t, q.IsActive("PAC-CALM")) // no bed left for them
	assert.Equal(t, []string{"asignacion_automatica"}, notifier.events)
	assert.Equal(t, 1, store.saves)
}

func TestProcessHospitalHonorsPerTickCap(t *testing.T) {
	a, store, _, queues := setupAssigner(t)
	a.maxPerTick = 2

	q := queues.Queue("HOSP-1")
	for i := 1; i <= 4; i++ {
		p := queuedPatient(fmt.Sprintf("PAC-%d", i), 10*i)
		store.patients[p.ID] = p
		store.beds = append(store.beds, medicineBed(fmt.Sprintf("CAMA-%d", i), i))
		q.Add(p)
	}

	a.ProcessHospital("HOSP-1")

	assigned := 0
	for _, bed := range store.beds {
		if bed.Status == models.BedPendingTransfer {
			assigned++
		}
	}
	assert.Equal(t, 2, assigned)
	assert.Equal(t, 2, q.Size())
}

func TestProcessHospitalPrunesStaleEntries(t *testing.T) {
	a, store, notifier, queues := setupAssigner(t)

	gone := queuedPatient("PAC-GONE", 10)
	settled := queuedPatient("PAC-SETTLED", 10)
	settled.DestinationBedID = "CAMA-OTHER"
	left := queuedPatient("PAC-LEFT", 10)

	store.patients[settled.ID] = settled
	store.patients[left.ID] = left
	store.beds = []*models.Bed{medicineBed("CAMA-1", 1)}

	q := queues.Queue("HOSP-1")
	q.Add(gone)
	q.Add(settled)
	q.Add(left)
	left.InWaitlist = false // resolved outside the queue

	a.ProcessHospital("HOSP-1")

	assert.False(t, q.IsActive("PAC-GONE"))
	assert.False(t, q.IsActive("PAC-SETTLED"))
	assert.False(t, q.IsActive("PAC-LEFT"))
	assert.Equal(t, models.BedFree, store.beds[0].Status)
	assert.Empty(t, notifier.events)
}

func TestAssignIsIdempotentForSamePatient(t *testing.T) {
	a, store, _, queues := setupAssigner(t)

	p := queuedPatient("PAC-1", 10)
	store.patients[p.ID] = p
	bed := medicineBed("CAMA-1", 1)
	store.beds = []*models.Bed{bed}

	q := queues.Queue("HOSP-1")
	q.Add(p)

	allBeds, _ := store.ListBeds("HOSP-1")
	ok, err := a.assign(p, bed, allBeds, "HOSP-1")
	require.NoError(t, err)
	require.True(t, ok)
	saves := store.saves

	// Same bed, same patient: already-succeeded, no second write.
	ok, err = a.assign(p, bed, allBeds, "HOSP-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saves, store.saves)
}

func TestAssignRefusesBedReservedForAnother(t *testing.T) {
	a, store, _, _ := setupAssigner(t)

	p := queuedPatient("PAC-1", 10)
	bed := medicineBed("CAMA-1", 1)
	bed.Status = models.BedPendingTransfer
	bed.PatientID = "PAC-OTHER"
	store.beds = []*models.Bed{bed}

	ok, err := a.assign(p, bed, store.beds, "HOSP-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "PAC-OTHER", bed.PatientID)
}

func TestAssignMarksOriginBedInTransfer(t *testing.T) {
	a, store, _, _ := setupAssigner(t)

	p := queuedPatient("PAC-1", 10)
	p.BedID = "CAMA-OLD"
	origin := medicineBed("CAMA-OLD", 1)
	origin.Status = models.BedOccupied
	origin.PatientID = p.ID
	dest := medicineBed("CAMA-NEW", 2)
	store.beds = []*models.Bed{origin, dest}

	ok, err := a.assign(p, dest, store.beds, "HOSP-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, models.BedTransferOut, origin.Status)
	assert.Equal(t, models.BedPendingTransfer, dest.Status)
	assert.Equal(t, "CAMA-NEW", p.DestinationBedID)
}
