package database

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"bed-manager/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const timeFormat = time.RFC3339

// Repository persists hospitals, patients and beds in sqlite. All mutations
// of a single hospital's state go through WithHospitalLock so that the
// assignment loop and the message handlers never interleave on the same
// hospital.
type Repository struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	repo := &Repository{db: db, locks: make(map[string]*sync.Mutex)}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hospitals (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        code TEXT NOT NULL
    );`,
		`CREATE TABLE IF NOT EXISTS patients (
        id TEXT PRIMARY KEY,
        hospital_id TEXT NOT NULL,
        name TEXT NOT NULL,
        run TEXT,
        sex TEXT NOT NULL,
        age INTEGER NOT NULL,
        age_category TEXT NOT NULL,
        illness TEXT NOT NULL,
        category TEXT,
        isolation TEXT NOT NULL,
        admitted_at TEXT NOT NULL,
        pregnant INTEGER NOT NULL DEFAULT 0,
        elderly INTEGER NOT NULL DEFAULT 0,
        socio_sanitary INTEGER NOT NULL DEFAULT 0,
        cardiac_hold INTEGER NOT NULL DEFAULT 0,
        requirements TEXT NOT NULL DEFAULT '[]',
        required_complexity TEXT NOT NULL,
        complexity_points INTEGER NOT NULL DEFAULT 0,
        diagnosis TEXT,
        notes TEXT,
        waiting INTEGER NOT NULL DEFAULT 0,
        waiting_minutes INTEGER NOT NULL DEFAULT 0,
        bed_id TEXT,
        destination_bed_id TEXT,
        in_waitlist INTEGER NOT NULL DEFAULT 0,
        needs_new_bed INTEGER NOT NULL DEFAULT 0,
        needs_bed_search INTEGER NOT NULL DEFAULT 0,
        bed_change_reason TEXT,
        priority_score REAL NOT NULL DEFAULT 0,
        origin_hospital_id TEXT,
        referral_hospital_id TEXT,
        referral_pending INTEGER NOT NULL DEFAULT 0,
        referral_accepted INTEGER NOT NULL DEFAULT 0,
        referral_reason TEXT,
        origin_bed_id TEXT,
        discharge_confirmed INTEGER NOT NULL DEFAULT 0
    );`,
		`CREATE TABLE IF NOT EXISTS beds (
        id TEXT PRIMARY KEY,
        hospital_id TEXT NOT NULL,
        service TEXT NOT NULL,
        room TEXT NOT NULL,
        number INTEGER NOT NULL,
        complexity TEXT NOT NULL,
        allows_isolation INTEGER NOT NULL DEFAULT 0,
        allows_shared_isolation INTEGER NOT NULL DEFAULT 0,
        is_individual INTEGER NOT NULL DEFAULT 0,
        is_shared_room INTEGER NOT NULL DEFAULT 0,
        room_capacity INTEGER NOT NULL DEFAULT 1,
        room_sex TEXT,
        patients_in_room INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL,
        patient_id TEXT
    );`,
		`CREATE INDEX IF NOT EXISTS idx_patients_hospital ON patients(hospital_id);`,
		`CREATE INDEX IF NOT EXISTS idx_beds_hospital ON beds(hospital_id);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WithHospitalLock runs fn while holding the hospital's mutex. Locks are
// created on first use and never released back; the hospital set is small.
func (r *Repository) WithHospitalLock(hospitalID string, fn func() error) error {
	r.mu.Lock()
	lock, ok := r.locks[hospitalID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[hospitalID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (r *Repository) SaveHospital(h *models.Hospital) error {
	query := `INSERT OR REPLACE INTO hospitals (id, name, code) VALUES (?, ?, ?)`
	_, err := r.db.Exec(query, h.ID, h.Name, h.Code)
	return err
}

func (r *Repository) GetHospital(id string) (*models.Hospital, error) {
	h := &models.Hospital{}
	err := r.db.QueryRow(`SELECT id, name, code FROM hospitals WHERE id = ?`, id).
		Scan(&h.ID, &h.Name, &h.Code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r *Repository) ListHospitals() ([]*models.Hospital, error) {
	rows, err := r.db.Query(`SELECT id, name, code FROM hospitals ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hospitals []*models.Hospital
	for rows.Next() {
		h := &models.Hospital{}
		if err := rows.Scan(&h.ID, &h.Name, &h.Code); err != nil {
			return nil, err
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

const patientColumns = `id, hospital_id, name, run, sex, age, age_category, illness, category,
    isolation, admitted_at, pregnant, elderly, socio_sanitary, cardiac_hold, requirements,
    required_complexity, complexity_points, diagnosis, notes, waiting, waiting_minutes,
    bed_id, destination_bed_id, in_waitlist, needs_new_bed, needs_bed_search,
    bed_change_reason, priority_score, origin_hospital_id, referral_hospital_id,
    referral_pending, referral_accepted, referral_reason, origin_bed_id, discharge_confirmed`

func (r *Repository) SavePatient(p *models.Patient) error {
	return r.savePatient(r.db, p)
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) savePatient(e execer, p *models.Patient) error {
	reqs, err := json.Marshal(p.Requirements)
	if err != nil {
		return err
	}
	query := `INSERT OR REPLACE INTO patients (` + patientColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = e.Exec(query,
		p.ID, p.HospitalID, p.Name, p.RUN, string(p.Sex), p.Age, string(p.AgeCategory),
		string(p.Illness), string(p.Category), string(p.Isolation),
		p.AdmittedAt.UTC().Format(timeFormat),
		p.Pregnant, p.Elderly, p.SocioSanitary, p.CardiacHold, string(reqs),
		string(p.RequiredComplexity), p.ComplexityPoints, p.Diagnosis, p.Notes,
		p.Waiting, p.WaitingMinutes, p.BedID, p.DestinationBedID, p.InWaitlist,
		p.NeedsNewBed, p.NeedsBedSearch, p.BedChangeReason, p.PriorityScore,
		p.OriginHospitalID, p.ReferralHospitalID, p.ReferralPending, p.ReferralAccepted,
		p.ReferralReason, p.OriginBedID, p.DischargeConfirmed,
	)
	return err
}

func (r *Repository) GetPatient(id string) (*models.Patient, error) {
	row := r.db.QueryRow(`SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *Repository) ListPatients(hospitalID string) ([]*models.Patient, error) {
	rows, err := r.db.Query(`SELECT `+patientColumns+` FROM patients WHERE hospital_id = ? ORDER BY id`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *Repository) DeletePatient(id string) error {
	_, err := r.db.Exec(`DELETE FROM patients WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row scanner) (*models.Patient, error) {
	p := &models.Patient{}
	var (
		run, category, diagnosis, notes                   sql.NullString
		bedID, destBedID, bedChangeReason                 sql.NullString
		originHosp, refHosp, refReason, originBed         sql.NullString
		sex, ageCat, illness, isolation, complexity, reqs string
		admittedAt                                        string
	)

	err := row.Scan(
		&p.ID, &p.HospitalID, &p.Name, &run, &sex, &p.Age, &ageCat, &illness, &category,
		&isolation, &admittedAt, &p.Pregnant, &p.Elderly, &p.SocioSanitary, &p.CardiacHold,
		&reqs, &complexity, &p.ComplexityPoints, &diagnosis, &notes, &p.Waiting,
		&p.WaitingMinutes, &bedID, &destBedID, &p.InWaitlist, &p.NeedsNewBed,
		&p.NeedsBedSearch, &bedChangeReason, &p.PriorityScore, &originHosp, &refHosp,
		&p.ReferralPending, &p.ReferralAccepted, &refReason, &originBed, &p.DischargeConfirmed,
	)
	if err != nil {
		return nil, err
	}

	p.RUN = run.String
	p.Sex = models.Sex(sex)
	p.AgeCategory = models.AgeCategory(ageCat)
	p.Illness = models.Illness(illness)
	p.Category = models.PatientCategory(category.String)
	p.Isolation = models.Isolation(isolation)
	p.RequiredComplexity = models.Complexity(complexity)
	p.Diagnosis = diagnosis.String
	p.Notes = notes.String
	p.BedID = bedID.String
	p.DestinationBedID = destBedID.String
	p.BedChangeReason = bedChangeReason.String
	p.OriginHospitalID = originHosp.String
	p.ReferralHospitalID = refHosp.String
	p.ReferralReason = refReason.String
	p.OriginBedID = originBed.String

	if t, err := time.Parse(timeFormat, admittedAt); err == nil {
		p.AdmittedAt = t
	} else {
		log.Printf("Warning: could not parse admitted_at '%s' for patient %s: %v", admittedAt, p.ID, err)
	}

	if err := json.Unmarshal([]byte(reqs), &p.Requirements); err != nil {
		log.Printf("Warning: bad requirements payload for patient %s: %v", p.ID, err)
		p.Requirements = nil
	}
	return p, nil
}

const bedColumns = `id, hospital_id, service, room, number, complexity, allows_isolation,
    allows_shared_isolation, is_individual, is_shared_room, room_capacity, room_sex,
    patients_in_room, status, patient_id`

func (r *Repository) SaveBed(b *models.Bed) error {
	return r.saveBed(r.db, b)
}

func (r *Repository) saveBed(e execer, b *models.Bed) error {
	query := `INSERT OR REPLACE INTO beds (` + bedColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := e.Exec(query,
		b.ID, b.HospitalID, string(b.Service), b.Room, b.Number, string(b.Complexity),
		b.AllowsIsolation, b.AllowsSharedIsolation, b.IsIndividual, b.IsSharedRoom,
		b.RoomCapacity, string(b.RoomSex), b.PatientsInRoom, string(b.Status), b.PatientID,
	)
	return err
}

func (r *Repository) GetBed(id string) (*models.Bed, error) {
	row := r.db.QueryRow(`SELECT `+bedColumns+` FROM beds WHERE id = ?`, id)
	b, err := scanBed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *Repository) ListBeds(hospitalID string) ([]*models.Bed, error) {
	rows, err := r.db.Query(`SELECT `+bedColumns+` FROM beds WHERE hospital_id = ? ORDER BY room, number`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*models.Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

func scanBed(row scanner) (*models.Bed, error) {
	b := &models.Bed{}
	var service, complexity, status string
	var roomSex, patientID sql.NullString

	err := row.Scan(
		&b.ID, &b.HospitalID, &service, &b.Room, &b.Number, &complexity,
		&b.AllowsIsolation, &b.AllowsSharedIsolation, &b.IsIndividual, &b.IsSharedRoom,
		&b.RoomCapacity, &roomSex, &b.PatientsInRoom, &status, &patientID,
	)
	if err != nil {
		return nil, err
	}

	b.Service = models.Service(service)
	b.Complexity = models.Complexity(complexity)
	b.RoomSex = models.Sex(roomSex.String)
	b.Status = models.BedStatus(status)
	b.PatientID = patientID.String
	return b, nil
}

// SaveAssignment writes the patient and every touched bed in one transaction,
// so an assignment is either fully visible or not at all.
func (r *Repository) SaveAssignment(p *models.Patient, beds []*models.Bed) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	if err := r.savePatient(tx, p); err != nil {
		tx.Rollback()
		return err
	}
	for _, bed := range beds {
		if err := r.saveBed(tx, bed); err != nil {
			log.Printf("Failed to persist bed %s, rolling back transaction. Error: %v", bed.ID, err)
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) Close() {
	r.db.Close()
}
