package matching

import (
	"testing"

	"bed-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomOfThree(t *testing.T) []*models.Bed {
	t.Helper()
	return []*models.Bed{
		sharedBed("CAMA-1", "201", 1, models.BedFree),
		sharedBed("CAMA-2", "201", 2, models.BedFree),
		sharedBed("CAMA-3", "201", 3, models.BedFree),
	}
}

func assertRoomState(t *testing.T, beds []*models.Bed, sex models.Sex, count int) {
	t.Helper()
	for _, bed := range beds {
		assert.Equal(t, sex, bed.RoomSex, "bed %s", bed.ID)
		assert.Equal(t, count, bed.PatientsInRoom, "bed %s", bed.ID)
	}
}

func TestFirstOccupantSetsRoomSex(t *testing.T) {
	beds := roomOfThree(t)
	p := medicinePatient(models.SexMale)

	touched := ClaimRoom(beds[0], p, beds)
	require.Len(t, touched, 3)
	beds[0].Status = models.BedPendingTransfer

	assertRoomState(t, beds, models.SexMale, 1)
}

func TestSecondOccupantOnlyBumpsCounter(t *testing.T) {
	beds := roomOfThree(t)
	ClaimRoom(beds[0], medicinePatient(models.SexMale), beds)
	beds[0].Status = models.BedOccupied

	ClaimRoom(beds[1], medicinePatient(models.SexMale), beds)
	beds[1].Status = models.BedPendingTransfer

	assertRoomState(t, beds, models.SexMale, 2)
}

func TestReleaseClearsSexWhenRoomEmpties(t *testing.T) {
	beds := roomOfThree(t)
	ClaimRoom(beds[0], medicinePatient(models.SexFemale), beds)
	beds[0].Status = models.BedOccupied
	ClaimRoom(beds[1], medicinePatient(models.SexFemale), beds)
	beds[1].Status = models.BedOccupied

	beds[1].Status = models.BedFree
	ReleaseRoom(beds[1], beds)
	assertRoomState(t, beds, models.SexFemale, 1)

	beds[0].Status = models.BedFree
	ReleaseRoom(beds[0], beds)
	assertRoomState(t, beds, "", 0)
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	beds := roomOfThree(t)
	ReleaseRoom(beds[0], beds)
	assertRoomState(t, beds, "", 0)
}

func TestNonSharedRoomsAreUntouched(t *testing.T) {
	bed := singleBed("CAMA-1", 1, models.ServiceMedicine)
	assert.Nil(t, ClaimRoom(bed, medicinePatient(models.SexMale), []*models.Bed{bed}))
	assert.Nil(t, ReleaseRoom(bed, []*models.Bed{bed}))
	assert.Equal(t, models.Sex(""), bed.RoomSex)
}

func TestClaimReleaseSequenceKeepsInvariant(t *testing.T) {
	beds := roomOfThree(t)

	// claim, claim, release, claim, release, release
	ClaimRoom(beds[0], medicinePatient(models.SexMale), beds)
	beds[0].Status = models.BedOccupied
	ClaimRoom(beds[1], medicinePatient(models.SexMale), beds)
	beds[1].Status = models.BedOccupied

	beds[0].Status = models.BedFree
	ReleaseRoom(beds[0], beds)
	assertRoomState(t, beds, models.SexMale, 1)

	ClaimRoom(beds[2], medicinePatient(models.SexMale), beds)
	beds[2].Status = models.BedOccupied
	assertRoomState(t, beds, models.SexMale, 2)

	beds[1].Status = models.BedFree
	ReleaseRoom(beds[1], beds)
	beds[2].Status = models.BedFree
	ReleaseRoom(beds[2], beds)
	assertRoomState(t, beds, "", 0)
}
