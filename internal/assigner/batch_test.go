package assigner

import (
	"testing"

	"bed-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitingPatient(id string, waitMinutes int) *models.Patient {
	return &models.Patient{
		ID:                 id,
		HospitalID:         "HOSP-1",
		Sex:                models.SexFemale,
		Illness:            models.IllnessMedical,
		Isolation:          models.IsolationNone,
		Requirements:       []string{"tratamiento_endovenoso"},
		RequiredComplexity: models.ComplexityLow,
		WaitingMinutes:     waitMinutes,
	}
}

func medicineBed(id string, number int) *models.Bed {
	return &models.Bed{
		ID:         id,
		HospitalID: "HOSP-1",
		Service:    models.ServiceMedicine,
		Room:       id,
		Number:     number,
		Complexity: models.ComplexityLow,
		Status:     models.BedFree,
	}
}

func TestPregnantAlwaysRanksFirst(t *testing.T) {
	pregnant := waitingPatient("PAC-PREG", 10)
	pregnant.Pregnant = true

	elderly := waitingPatient("PAC-ELD", 1000) // past the long-wait cutoff
	elderly.Elderly = true
	elderly.ComplexityPoints = 5

	ordered := PrioritizePatients([]*models.Patient{elderly, pregnant})
	require.Len(t, ordered, 2)
	assert.Equal(t, "PAC-PREG", ordered[0].ID)
	assert.Equal(t, "PAC-ELD", ordered[1].ID)
}

func TestElderlyFastLaneOnlyWithoutLongWaits(t *testing.T) {
	elderly := waitingPatient("PAC-ELD", 100)
	elderly.Elderly = true

	sicker := waitingPatient("PAC-SICK", 200)
	sicker.ComplexityPoints = 6

	// Nobody past the cutoff: elderly jump ahead.
	ordered := PrioritizePatients([]*models.Patient{sicker, elderly})
	assert.Equal(t, "PAC-ELD", ordered[0].ID)

	// A long-waiting patient in the batch disables the fast lane; severity
	// decides instead.
	sicker.WaitingMinutes = 800
	ordered = PrioritizePatients([]*models.Patient{sicker, elderly})
	assert.Equal(t, "PAC-SICK", ordered[0].ID)
}

func TestOrderingWithinGroupBySeverityThenWait(t *testing.T) {
	a := waitingPatient("PAC-A", 300)
	a.ComplexityPoints = 3
	b := waitingPatient("PAC-B", 100)
	b.ComplexityPoints = 3
	c := waitingPatient("PAC-C", 50)
	c.ComplexityPoints = 5

	ordered := PrioritizePatients([]*models.Patient{b, a, c})
	require.Len(t, ordered, 3)
	assert.Equal(t, "PAC-C", ordered[0].ID) // highest severity
	assert.Equal(t, "PAC-A", ordered[1].ID) // then longer wait
	assert.Equal(t, "PAC-B", ordered[2].ID)
}

func TestBatchAssignConsumesBeds(t *testing.T) {
	p1 := waitingPatient("PAC-1", 100)
	p2 := waitingPatient("PAC-2", 50)
	p3 := waitingPatient("PAC-3", 10)

	beds := []*models.Bed{medicineBed("CAMA-1", 1), medicineBed("CAMA-2", 2)}
	assignments := BatchAssign([]*models.Patient{p1, p2, p3}, beds, beds)

	require.Len(t, assignments, 3)

	byPatient := make(map[string]*models.Bed)
	for _, a := range assignments {
		byPatient[a.Patient.ID] = a.Bed
	}
	require.NotNil(t, byPatient["PAC-1"])
	require.NotNil(t, byPatient["PAC-2"])
	assert.Nil(t, byPatient["PAC-3"]) // reported back, not dropped

	// No bed handed out twice.
	assert.NotEqual(t, byPatient["PAC-1"].ID, byPatient["PAC-2"].ID)
}

func TestBatchAssignSkipsIncompatiblePatients(t *testing.T) {
	discharge := waitingPatient("PAC-1", 100)
	discharge.Requirements = nil

	beds := []*models.Bed{medicineBed("CAMA-1", 1)}
	assignments := BatchAssign([]*models.Patient{discharge}, beds, beds)

	require.Len(t, assignments, 1)
	assert.Nil(t, assignments[0].Bed)
}
