package models

import "time"

// Wire values stay aligned with the hospital network's existing vocabulary
// (Spanish clinical codes); Go identifiers are English.

type Service string

const (
	ServiceUCI             Service = "uci"
	ServiceUTI             Service = "uti"
	ServiceMedicine        Service = "medicina"
	ServiceSurgery         Service = "cirugia"
	ServiceGynecology      Service = "gineco"
	ServiceIsolation       Service = "aislamiento"
	ServiceMedicalSurgical Service = "medico_quirurgico"
)

type BedStatus string

const (
	BedFree            BedStatus = "libre"
	BedOccupied        BedStatus = "ocupada"
	BedPendingTransfer BedStatus = "pendiente_traslado" // reserved destination
	BedTransferOut     BedStatus = "en_traslado"        // origin, patient leaving
	BedDischargeSugg   BedStatus = "alta_sugerida"
	BedNeedsNewBed     BedStatus = "requiere_busqueda_cama"
)

type Sex string

const (
	SexMale   Sex = "hombre"
	SexFemale Sex = "mujer"
)

type AgeCategory string

const (
	AgeInfant     AgeCategory = "lactante"
	AgeChild      AgeCategory = "niño"
	AgeAdolescent AgeCategory = "adolescente"
	AgeAdult      AgeCategory = "adulto"
	AgeElderly    AgeCategory = "adulto_mayor"
)

type Illness string

const (
	IllnessMedical       Illness = "medica"
	IllnessSurgical      Illness = "quirurgica"
	IllnessGynecological Illness = "ginecologica"
	IllnessObstetric     Illness = "obstetrica"
	IllnessTrauma        Illness = "traumatologica"
	IllnessNeurological  Illness = "neurologica"
	IllnessGeriatric     Illness = "geriatrica"
	IllnessUrological    Illness = "urologica"
)

type Isolation string

const (
	IsolationNone      Isolation = "ninguno"
	IsolationContact   Isolation = "contacto"
	IsolationDroplet   Isolation = "gotitas"
	IsolationAirborne  Isolation = "aereo"
	IsolationProtected Isolation = "ambiente_protegido"
	IsolationSpecial   Isolation = "aislamiento_especial"
)

type Complexity string

const (
	ComplexityLow    Complexity = "baja"
	ComplexityMedium Complexity = "media"
	ComplexityHigh   Complexity = "alta"
)

type PatientCategory string

const (
	CategoryHospitalized    PatientCategory = "hospitalizado"
	CategoryEmergency       PatientCategory = "urgencia"
	CategoryReferred        PatientCategory = "derivado"
	CategoryAmbulatory      PatientCategory = "ambulatorio"
	CategoryPendingTransfer PatientCategory = "pendiente_traslado"
)

// RequirementPoints maps each clinical requirement code to its complexity
// points. Unknown codes score 0.
var RequirementPoints = map[string]int{
	// low complexity
	"tratamiento_endovenoso":          1,
	"dolor_intenso":                   1,
	"oxigeno_naricera":                1,
	"oxigeno_mascarilla_multiventuri": 1,
	"aspiracion_invasiva":             1,
	"control_examenes_sangre_2mas":    1,
	"curaciones_alta_complejidad":     1,
	"irrigacion_vesical":              1,
	"observacion_riesgo_compromiso":   1,
	"procedimiento_invasivo_medico":   1,

	// UTI-defining
	"drogas_vasoactivas":            3,
	"monitorizacion_continua":       3,
	"oxigeno_mascarilla_reservorio": 3,
	"oxigeno_cnaf":                  3,
	"oxigeno_vmni":                  3,
	"dialisis_aguda":                3,
	"bic_insulina":                  3,

	// UCI-defining
	"oxigeno_vmi":                   5,
	"procuramiento_organos_tejidos": 5,

	// do not justify a bed on their own
	"kinesioterapia_respiratoria":   0,
	"curaciones_heridas":            0,
	"control_examenes_sangre_1vez":  0,
	"tratamiento_endovenoso_2menos": 0,
}

var uciRequirements = map[string]bool{
	"oxigeno_vmi":                   true,
	"procuramiento_organos_tejidos": true,
}

var utiRequirements = map[string]bool{
	"drogas_vasoactivas":            true,
	"monitorizacion_continua":       true,
	"oxigeno_mascarilla_reservorio": true,
	"oxigeno_cnaf":                  true,
	"oxigeno_vmni":                  true,
	"dialisis_aguda":                true,
	"bic_insulina":                  true,
}

// NonHospitalization lists requirement codes that do not justify keeping the
// patient admitted. A patient carrying only these is a discharge candidate.
var NonHospitalization = map[string]bool{
	"kinesioterapia_respiratoria":   true,
	"curaciones_heridas":            true,
	"control_examenes_sangre_1vez":  true,
	"tratamiento_endovenoso_2menos": true,
}

// IsNonHospitalization reports whether a single requirement code is on the
// non-hospitalization list, normalizing case like the point lookups do.
func IsNonHospitalization(req string) bool {
	return NonHospitalization[normalize(req)]
}

type Hospital struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Patient struct {
	ID         string `json:"id"`
	HospitalID string `json:"hospitalId"`

	Name        string      `json:"name"`
	RUN         string      `json:"run"`
	Sex         Sex         `json:"sex"`
	Age         int         `json:"age"`
	AgeCategory AgeCategory `json:"ageCategory"`
	Illness     Illness     `json:"illness"`
	// Category is empty until inferred or set by a workflow transition.
	Category   PatientCategory `json:"category,omitempty"`
	Isolation  Isolation       `json:"isolation"`
	AdmittedAt time.Time       `json:"admittedAt"`

	Pregnant      bool `json:"pregnant"`
	Elderly       bool `json:"elderly"`
	SocioSanitary bool `json:"socioSanitary"`
	CardiacHold   bool `json:"cardiacHold"`

	Requirements       []string   `json:"requirements"`
	RequiredComplexity Complexity `json:"requiredComplexity"`
	ComplexityPoints   int        `json:"complexityPoints"`

	Diagnosis string `json:"diagnosis,omitempty"`
	Notes     string `json:"notes,omitempty"`

	// Queue / assignment state. Empty bed ids mean "none".
	Waiting          bool    `json:"waiting"`
	WaitingMinutes   int     `json:"waitingMinutes"`
	BedID            string  `json:"bedId,omitempty"`
	DestinationBedID string  `json:"destinationBedId,omitempty"`
	InWaitlist       bool    `json:"inWaitlist"`
	NeedsNewBed      bool    `json:"needsNewBed"`
	NeedsBedSearch   bool    `json:"needsBedSearch"`
	BedChangeReason  string  `json:"bedChangeReason,omitempty"`
	PriorityScore    float64 `json:"priorityScore"`

	// Referral bookkeeping, owned by the inter-hospital workflow. The engine
	// only reads these to decide whether the patient already has a destination.
	OriginHospitalID   string `json:"originHospitalId,omitempty"`
	ReferralHospitalID string `json:"referralHospitalId,omitempty"`
	ReferralPending    bool   `json:"referralPending"`
	ReferralAccepted   bool   `json:"referralAccepted"`
	ReferralReason     string `json:"referralReason,omitempty"`
	OriginBedID        string `json:"originBedId,omitempty"`
	DischargeConfirmed bool   `json:"dischargeConfirmed"`
}

type Bed struct {
	ID         string `json:"id"`
	HospitalID string `json:"hospitalId"`

	Service Service `json:"service"`
	Room    string  `json:"room"`
	Number  int     `json:"number"`

	Complexity            Complexity `json:"complexity"`
	AllowsIsolation       bool       `json:"allowsIsolation"`
	AllowsSharedIsolation bool       `json:"allowsSharedIsolation"`
	IsIndividual          bool       `json:"isIndividual"`

	// Shared-room attributes. RoomSex and PatientsInRoom are duplicated on
	// every bed row of the room and must stay identical across them.
	IsSharedRoom   bool `json:"isSharedRoom"`
	RoomCapacity   int  `json:"roomCapacity"`
	RoomSex        Sex  `json:"roomSex,omitempty"` // empty = unconstrained
	PatientsInRoom int  `json:"patientsInRoom"`

	Status    BedStatus `json:"status"`
	PatientID string    `json:"patientId,omitempty"`
}

// HasOccupant reports whether the bed currently counts toward its room's
// occupancy (physically occupied or reserved as a transfer destination).
func (b *Bed) HasOccupant() bool {
	return b.Status == BedOccupied || b.Status == BedPendingTransfer
}

// ComplexityPointsFor sums the point value of each requirement code. Unknown
// codes contribute nothing; duplicates count twice (harmless by contract).
func ComplexityPointsFor(requirements []string) int {
	total := 0
	for _, req := range requirements {
		total += RequirementPoints[normalize(req)]
	}
	return total
}

func TierForPoints(points int) Complexity {
	switch {
	case points >= 5:
		return ComplexityHigh
	case points >= 3:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// UpdateComplexity recomputes and stores the patient's complexity points and
// required tier from the current requirement list.
func (p *Patient) UpdateComplexity() Complexity {
	p.ComplexityPoints = ComplexityPointsFor(p.Requirements)
	p.RequiredComplexity = TierForPoints(p.ComplexityPoints)
	return p.RequiredComplexity
}

func HasUCIRequirement(requirements []string) bool {
	for _, req := range requirements {
		if uciRequirements[normalize(req)] {
			return true
		}
	}
	return false
}

func HasUTIRequirement(requirements []string) bool {
	for _, req := range requirements {
		if utiRequirements[normalize(req)] {
			return true
		}
	}
	return false
}

func AgeCategoryFor(age int) AgeCategory {
	switch {
	case age < 2:
		return AgeInfant
	case age < 12:
		return AgeChild
	case age < 18:
		return AgeAdolescent
	case age < 65:
		return AgeAdult
	default:
		return AgeElderly
	}
}

func normalize(req string) string {
	out := make([]byte, len(req))
	for i := 0; i < len(req); i++ {
		c := req[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
