package handler

import (
	"fmt"
	"log"

	"bed-manager/internal/matching"
	"bed-manager/internal/models"
)

// CompleteTransfer confirms the patient arrived at the reserved destination
// bed. The destination becomes occupied and any origin bed left mid-transfer
// is freed automatically, releasing its room.
func (bp *BedProcessor) CompleteTransfer(hospitalID, bedID string) error {
	var (
		p          *models.Patient
		origin     *models.Bed
		dest       *models.Bed
		originHosp string
	)

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		var err error
		dest, err = bp.loadBed(hospitalID, bedID)
		if err != nil {
			return err
		}
		if dest.Status != models.BedPendingTransfer {
			return fmt.Errorf("bed %s is not pending a transfer (status: %s)", bedID, dest.Status)
		}
		if dest.PatientID == "" {
			return fmt.Errorf("bed %s has no patient assigned", bedID)
		}

		p, err = bp.store.GetPatient(dest.PatientID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("patient %s not found", dest.PatientID)
		}
		originHosp = p.OriginHospitalID

		var changed []*models.Bed

		if p.BedID != "" {
			origin, err = bp.store.GetBed(p.BedID)
			if err != nil {
				return err
			}
			if origin != nil && origin.Status == models.BedTransferOut {
				// The origin may sit in another hospital for referred patients.
				originBeds, err := bp.store.ListBeds(origin.HospitalID)
				if err != nil {
					return err
				}
				if row := findBed(originBeds, origin.ID); row != nil {
					origin = row
				}
				changed = append(changed, matching.ReleaseRoom(origin, originBeds)...)
				origin.Status = models.BedFree
				origin.PatientID = ""
				changed = append(changed, origin)
				log.Printf("Origin bed %s freed automatically", origin.ID)
			}
		}

		// The room was claimed when the bed was reserved; only the status
		// moves now.
		dest.Status = models.BedOccupied
		dest.PatientID = p.ID
		changed = append(changed, dest)

		p.BedID = dest.ID
		p.DestinationBedID = ""
		p.Waiting = false
		p.InWaitlist = false
		p.Category = models.CategoryHospitalized
		p.ReferralAccepted = false

		return bp.store.SaveAssignment(p, changed)
	})
	if err != nil {
		return err
	}

	details := map[string]interface{}{
		"patientId":      p.ID,
		"patientName":    p.Name,
		"destBedId":      dest.ID,
		"originBedId":    bedIDOrEmpty(origin),
		"originHospital": originHosp,
	}
	bp.notifier.Notify(hospitalID, "traslado_completado", details)

	// A referred patient's origin hospital learns the handover finished.
	if originHosp != "" && originHosp != hospitalID {
		bp.notifier.Notify(originHosp, "paciente_egresado_automatico", map[string]interface{}{
			"patientId":    p.ID,
			"patientName":  p.Name,
			"destHospital": hospitalID,
			"destBedId":    dest.ID,
			"originBedId":  bedIDOrEmpty(origin),
		})
	}

	log.Printf("Transfer completed: patient %s moved to bed %s", p.ID, dest.ID)
	return nil
}

// RejectTransfer cancels a pending reservation. The destination bed is freed
// and the patient goes back to the priority queue flagged as needing a bed.
func (bp *BedProcessor) RejectTransfer(hospitalID, bedID string) error {
	var p *models.Patient

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		bed, err := bp.loadBed(hospitalID, bedID)
		if err != nil {
			return err
		}
		if bed.Status != models.BedPendingTransfer {
			return fmt.Errorf("bed %s is not pending a transfer (status: %s)", bedID, bed.Status)
		}
		if bed.PatientID == "" {
			return fmt.Errorf("bed %s has no patient assigned", bedID)
		}

		p, err = bp.store.GetPatient(bed.PatientID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("patient %s not found", bed.PatientID)
		}

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}
		if row := findBed(allBeds, bed.ID); row != nil {
			bed = row
		}

		changed := matching.ReleaseRoom(bed, allBeds)
		bed.Status = models.BedFree
		bed.PatientID = ""
		changed = append(changed, bed)

		if p.BedID != "" {
			if origin := findBed(allBeds, p.BedID); origin != nil && origin.Status == models.BedTransferOut {
				origin.Status = models.BedOccupied
				changed = append(changed, origin)
			}
		}

		p.DestinationBedID = ""
		p.NeedsNewBed = true
		if p.BedID != "" {
			p.Category = models.CategoryHospitalized
		} else {
			p.Category = models.CategoryEmergency
		}
		bp.queues.Queue(hospitalID).Add(p)

		return bp.store.SaveAssignment(p, changed)
	})
	if err != nil {
		return err
	}

	bp.notifier.Notify(hospitalID, "traslado_rechazado", map[string]interface{}{
		"patientId":   p.ID,
		"rejectedBed": bedID,
	})
	log.Printf("Transfer rejected: patient %s back on the waitlist", p.ID)
	return nil
}

// SuggestDischarge marks an occupied bed as a discharge candidate.
func (bp *BedProcessor) SuggestDischarge(hospitalID, bedID string) error {
	err := bp.store.WithHospitalLock(hospitalID, func() error {
		bed, err := bp.loadBed(hospitalID, bedID)
		if err != nil {
			return err
		}
		if bed.Status != models.BedOccupied {
			return fmt.Errorf("discharge can only be suggested on occupied beds (status: %s)", bed.Status)
		}
		bed.Status = models.BedDischargeSugg
		return bp.store.SaveBed(bed)
	})
	if err != nil {
		return err
	}

	bp.notifier.Notify(hospitalID, "alta_sugerida", map[string]interface{}{"bedId": bedID})
	return nil
}

// ConfirmDischarge releases the bed and detaches the patient from it.
func (bp *BedProcessor) ConfirmDischarge(hospitalID, bedID string) error {
	var patientName string

	err := bp.store.WithHospitalLock(hospitalID, func() error {
		bed, err := bp.loadBed(hospitalID, bedID)
		if err != nil {
			return err
		}
		if bed.PatientID == "" {
			return fmt.Errorf("bed %s has no patient to discharge", bedID)
		}

		p, err := bp.store.GetPatient(bed.PatientID)
		if err != nil {
			return err
		}

		allBeds, err := bp.store.ListBeds(hospitalID)
		if err != nil {
			return err
		}
		if row := findBed(allBeds, bed.ID); row != nil {
			bed = row
		}

		changed := matching.ReleaseRoom(bed, allBeds)
		bed.Status = models.BedFree
		bed.PatientID = ""
		changed = append(changed, bed)

		if p != nil {
			patientName = p.Name
			p.BedID = ""
			p.Waiting = false
			p.InWaitlist = false
			p.DischargeConfirmed = true
			bp.queues.Queue(hospitalID).Remove(p.ID)
			return bp.store.SaveAssignment(p, changed)
		}
		for _, b := range changed {
			if err := bp.store.SaveBed(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	bp.notifier.Notify(hospitalID, "alta_confirmada", map[string]interface{}{
		"bedId":       bedID,
		"patientName": patientName,
	})
	log.Printf("Discharge confirmed on bed %s", bedID)
	return nil
}

// CancelDischarge reverts a suggested discharge back to occupied.
func (bp *BedProcessor) CancelDischarge(hospitalID, bedID string) error {
	err := bp.store.WithHospitalLock(hospitalID, func() error {
		bed, err := bp.loadBed(hospitalID, bedID)
		if err != nil {
			return err
		}
		if bed.Status != models.BedDischargeSugg {
			return fmt.Errorf("bed %s has no suggested discharge (status: %s)", bedID, bed.Status)
		}
		bed.Status = models.BedOccupied
		return bp.store.SaveBed(bed)
	})
	if err != nil {
		return err
	}

	bp.notifier.Notify(hospitalID, "alta_cancelada", map[string]interface{}{"bedId": bedID})
	return nil
}

func (bp *BedProcessor) loadBed(hospitalID, bedID string) (*models.Bed, error) {
	bed, err := bp.store.GetBed(bedID)
	if err != nil {
		return nil, err
	}
	if bed == nil {
		return nil, fmt.Errorf("bed %s not found", bedID)
	}
	if bed.HospitalID != hospitalID {
		return nil, fmt.Errorf("bed %s does not belong to hospital %s", bedID, hospitalID)
	}
	return bed, nil
}

func bedIDOrEmpty(bed *models.Bed) string {
	if bed == nil {
		return ""
	}
	return bed.ID
}
