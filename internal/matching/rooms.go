package matching

import "bed-manager/internal/models"

// Shared-room bookkeeping. RoomSex and PatientsInRoom are duplicated on every
// bed row of a room, so every mutation fans out to all sibling beds. Claim
// and Release must run inside the same critical section as the bed status
// change that triggered them, and their results must be persisted together.

// ClaimRoom records a new occupant in the bed's room. The first occupant
// fixes the room's sex; later occupants only bump the counter. Returns the
// sibling beds whose rows were touched (nil for non-shared rooms).
func ClaimRoom(bed *models.Bed, p *models.Patient, allBeds []*models.Bed) []*models.Bed {
	if !bed.IsSharedRoom {
		return nil
	}

	siblings := roomBeds(allBeds, bed)

	others := 0
	for _, other := range siblings {
		if other.ID != bed.ID && other.HasOccupant() {
			others++
		}
	}

	if others == 0 {
		for _, other := range siblings {
			other.RoomSex = p.Sex
			other.PatientsInRoom = 1
		}
	} else {
		for _, other := range siblings {
			other.PatientsInRoom = others + 1
		}
	}
	return siblings
}

// ReleaseRoom removes one occupant from the bed's room, clearing the room sex
// once the room empties. Returns the touched sibling beds.
func ReleaseRoom(bed *models.Bed, allBeds []*models.Bed) []*models.Bed {
	if !bed.IsSharedRoom {
		return nil
	}

	siblings := roomBeds(allBeds, bed)
	for _, other := range siblings {
		if other.PatientsInRoom > 0 {
			other.PatientsInRoom--
		}
		if other.PatientsInRoom == 0 {
			other.RoomSex = ""
		}
	}
	return siblings
}
