package matching

import (
	"log"
	"sort"

	"bed-manager/internal/models"
	"bed-manager/internal/scoring"
)

// FindBed runs the full filter pipeline and returns the best compatible free
// bed, or nil when none fits. It never mutates bed or patient state.
//
// Stages: sex/room discard, service match, isolation filter, ranking, and a
// final shared-room re-check against the live bed snapshot.
func FindBed(p *models.Patient, freeBeds, allBeds []*models.Bed) *models.Bed {
	for _, bed := range candidates(p, freeBeds, allBeds, 1) {
		return bed
	}
	return nil
}

// FindCandidates returns up to limit beds passing every stage, best first.
// Used for presenting alternatives rather than auto-assigning.
func FindCandidates(p *models.Patient, freeBeds, allBeds []*models.Bed, limit int) []*models.Bed {
	return candidates(p, freeBeds, allBeds, limit)
}

func candidates(p *models.Patient, freeBeds, allBeds []*models.Bed, limit int) []*models.Bed {
	if len(freeBeds) == 0 || limit <= 0 {
		return nil
	}

	beds := filterSexCompatible(p, freeBeds, allBeds)
	if len(beds) == 0 {
		return nil
	}

	required, ok := RequiredService(p)
	if !ok {
		return nil
	}

	beds = filterByService(beds, required)
	if len(beds) == 0 {
		return nil
	}

	beds = filterByIsolation(beds, p)
	if len(beds) == 0 {
		return nil
	}

	rankBeds(beds, p, required)

	// Re-check shared-room constraints against the full current snapshot;
	// stages above may have worked off data that has since shifted.
	var out []*models.Bed
	for _, bed := range beds {
		if CanShareRoom(bed, p, roomBeds(allBeds, bed)) {
			out = append(out, bed)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// filterSexCompatible drops free beds in shared rooms already holding a
// patient of the opposite sex. Room occupancy is derived from the whole bed
// set, not just the free subset.
func filterSexCompatible(p *models.Patient, freeBeds, allBeds []*models.Bed) []*models.Bed {
	type roomInfo struct {
		patients    int
		oppositeSex bool
	}

	rooms := make(map[string]*roomInfo)
	for _, bed := range allBeds {
		key := bed.HospitalID + ":" + bed.Room
		info, ok := rooms[key]
		if !ok {
			info = &roomInfo{}
			rooms[key] = info
		}
		if bed.HasOccupant() {
			info.patients++
			if bed.RoomSex != "" && bed.RoomSex != p.Sex {
				info.oppositeSex = true
			}
		}
	}

	var out []*models.Bed
	for _, bed := range freeBeds {
		if !bed.IsSharedRoom {
			out = append(out, bed)
			continue
		}
		info := rooms[bed.HospitalID+":"+bed.Room]
		if info == nil || info.patients == 0 {
			out = append(out, bed)
			continue
		}
		if info.oppositeSex {
			continue
		}
		out = append(out, bed)
	}
	return out
}

// filterByService keeps beds of the required service. Medicine and surgery
// patients may also land on shared medical-surgical beds.
func filterByService(beds []*models.Bed, required models.Service) []*models.Bed {
	widened := required == models.ServiceMedicine || required == models.ServiceSurgery

	var out []*models.Bed
	for _, bed := range beds {
		if bed.Service == required {
			out = append(out, bed)
			continue
		}
		if widened && bed.Service == models.ServiceMedicalSurgical {
			out = append(out, bed)
		}
	}
	return out
}

func filterByIsolation(beds []*models.Bed, p *models.Patient) []*models.Bed {
	if p.Isolation == models.IsolationNone {
		return beds
	}

	if scoring.CanShareIsolation(p.Isolation) {
		var shared []*models.Bed
		for _, bed := range beds {
			if bed.AllowsSharedIsolation {
				shared = append(shared, bed)
			}
		}
		if len(shared) > 0 {
			return shared
		}
		return beds // no dedicated beds, fall back to the full set
	}

	if scoring.RequiresIndividualRoom(p.Isolation) {
		acute := models.HasUCIRequirement(p.Requirements) || models.HasUTIRequirement(p.Requirements)
		var out []*models.Bed
		for _, bed := range beds {
			if !bed.IsIndividual {
				continue
			}
			if !acute && bed.Service != models.ServiceIsolation {
				continue
			}
			out = append(out, bed)
		}
		return out
	}

	return beds
}

// rankBeds sorts beds in place, best first, by (service fit, complexity
// distance, bed-type fit, ordinal number). Lower-numbered rooms fill first so
// occupancy stays contiguous.
func rankBeds(beds []*models.Bed, p *models.Patient, required models.Service) {
	wantIndividual := scoring.RequiresIndividualRoom(p.Isolation)
	patientTier := tierIndex(p.RequiredComplexity)

	key := func(bed *models.Bed) (int, int, int, int) {
		service := 2
		if bed.Service == required {
			service = 0
		} else if bed.Service == models.ServiceMedicalSurgical &&
			(required == models.ServiceMedicine || required == models.ServiceSurgery) {
			service = 1
		}

		distance := tierIndex(bed.Complexity) - patientTier
		if distance < 0 {
			distance = -distance
		}

		bedType := 1
		if wantIndividual {
			if bed.IsIndividual {
				bedType = 0
			}
		} else if bed.IsSharedRoom {
			bedType = 0
		}

		return service, distance, bedType, bed.Number
	}

	sort.SliceStable(beds, func(i, j int) bool {
		si, di, ti, ni := key(beds[i])
		sj, dj, tj, nj := key(beds[j])
		if si != sj {
			return si < sj
		}
		if di != dj {
			return di < dj
		}
		if ti != tj {
			return ti < tj
		}
		return ni < nj
	})
}

// CanShareRoom verifies the bed's room can take the patient right now:
// capacity not exceeded and same-sex occupancy respected.
func CanShareRoom(bed *models.Bed, p *models.Patient, sameRoom []*models.Bed) bool {
	if !bed.IsSharedRoom {
		return true
	}

	occupants := 0
	for _, other := range sameRoom {
		if other.Room == bed.Room && other.HasOccupant() {
			occupants++
		}
	}

	if occupants >= bed.RoomCapacity {
		return false
	}
	if occupants == 0 {
		return true
	}
	if bed.RoomSex == "" {
		// Occupied room with no recorded sex breaks the room invariant.
		// Refuse the bed rather than guess.
		log.Printf("Room invariant violation: room %s of %s has %d occupants but no room sex",
			bed.Room, bed.HospitalID, occupants)
		return false
	}
	return bed.RoomSex == p.Sex
}

func tierIndex(c models.Complexity) int {
	switch c {
	case models.ComplexityMedium:
		return 1
	case models.ComplexityHigh:
		return 2
	default:
		return 0
	}
}

func roomBeds(allBeds []*models.Bed, bed *models.Bed) []*models.Bed {
	var out []*models.Bed
	for _, other := range allBeds {
		if other.Room == bed.Room && other.HospitalID == bed.HospitalID {
			out = append(out, other)
		}
	}
	return out
}
