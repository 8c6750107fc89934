// Package scoring ranks waiting patients. Higher score = more urgent.
//
// score = categoryBase*10 + complexity*3 + waitHours*2 + boosts
//
// Wait time picks up an exponential penalty once it exceeds the
// category-specific threshold. The breakdown returned by Explain is the
// source of truth; Score is its total, so the two can never disagree.
package scoring

import (
	"fmt"
	"math"

	"bed-manager/internal/models"
)

var categoryBase = map[models.PatientCategory]float64{
	models.CategoryHospitalized: 10, // already inside the hospital
	models.CategoryEmergency:    8,
	models.CategoryReferred:     6,
	models.CategoryAmbulatory:   4,
}

var complexityBase = map[models.Complexity]float64{
	models.ComplexityHigh:   3,
	models.ComplexityMedium: 2,
	models.ComplexityLow:    1,
}

// Wait thresholds in hours before the over-wait penalty kicks in.
var waitThresholdHours = map[models.PatientCategory]float64{
	models.CategoryHospitalized: 2,
	models.CategoryEmergency:    4,
	models.CategoryReferred:     12,
	models.CategoryAmbulatory:   48,
}

const (
	defaultCategoryBase      = 5
	defaultWaitThresholdHour = 12

	boostPregnant      = 10
	boostVulnerableAge = 5
	boostIndividualIso = 3
	boostReferred      = 4
	boostAdultLongWait = 5
	adultLongWaitHours = 8
)

type Boost struct {
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
}

// Breakdown decomposes a priority score into its named contributions.
// Total is always the exact sum of CategoryTotal, ComplexityTotal, WaitTotal
// and BoostTotal.
type Breakdown struct {
	Total float64 `json:"total"`

	Category      models.PatientCategory `json:"category"`
	CategoryBase  float64                `json:"categoryBase"`
	CategoryTotal float64                `json:"categoryTotal"`

	ComplexityTier  models.Complexity `json:"complexityTier"`
	ComplexityBase  float64           `json:"complexityBase"`
	ComplexityTotal float64           `json:"complexityTotal"`

	WaitHours     float64 `json:"waitHours"`
	WaitThreshold float64 `json:"waitThreshold"`
	OverThreshold bool    `json:"overThreshold"`
	WaitTotal     float64 `json:"waitTotal"`

	Boosts     []Boost `json:"boosts"`
	BoostTotal float64 `json:"boostTotal"`
}

// EffectiveCategory returns the patient's category, inferring one when unset:
// a bedded patient is hospitalized, a pending referral is referred, anyone
// else arrived through emergency.
func EffectiveCategory(p *models.Patient) models.PatientCategory {
	if p.Category != "" {
		return p.Category
	}
	if p.BedID != "" {
		return models.CategoryHospitalized
	}
	if p.ReferralPending {
		return models.CategoryReferred
	}
	return models.CategoryEmergency
}

// Score computes the patient's priority score, rounded to 2 decimals.
func Score(p *models.Patient) float64 {
	return Explain(p).Total
}

// Explain computes the full score decomposition for a patient.
func Explain(p *models.Patient) Breakdown {
	b := Breakdown{Category: EffectiveCategory(p)}

	base, ok := categoryBase[b.Category]
	if !ok {
		base = defaultCategoryBase
	}
	b.CategoryBase = base
	b.CategoryTotal = base * 10

	b.ComplexityTier = p.RequiredComplexity
	if b.ComplexityTier == "" {
		b.ComplexityTier = models.ComplexityLow
	}
	cplx, ok := complexityBase[b.ComplexityTier]
	if !ok {
		cplx = 1
	}
	b.ComplexityBase = cplx
	b.ComplexityTotal = cplx * 3

	hours := float64(p.WaitingMinutes) / 60
	threshold, ok := waitThresholdHours[b.Category]
	if !ok {
		threshold = defaultWaitThresholdHour
	}
	b.WaitHours = round2(hours)
	b.WaitThreshold = threshold
	waitScore := hours
	if hours > threshold {
		b.OverThreshold = true
		excess := (hours - threshold) / threshold
		waitScore = hours * (1 + excess*0.5)
	}
	b.WaitTotal = round2(waitScore * 2)

	if p.Pregnant {
		b.addBoost("embarazada", boostPregnant)
	}

	// The vulnerable-age boost is granted at most once, whether it comes from
	// the derived age category or the explicit elderly flag.
	switch p.AgeCategory {
	case models.AgeChild, models.AgeInfant, models.AgeElderly:
		b.addBoost(fmt.Sprintf("edad vulnerable (%s)", p.AgeCategory), boostVulnerableAge)
	default:
		if p.Elderly {
			b.addBoost("adulto mayor", boostVulnerableAge)
		}
	}

	switch p.Isolation {
	case models.IsolationAirborne, models.IsolationProtected, models.IsolationSpecial:
		b.addBoost(fmt.Sprintf("aislamiento individual (%s)", p.Isolation), boostIndividualIso)
	}

	if b.Category == models.CategoryReferred {
		b.addBoost("paciente derivado", boostReferred)
	}

	if hours > adultLongWaitHours && p.AgeCategory == models.AgeAdult {
		b.addBoost("espera larga (>8h)", boostAdultLongWait)
	}

	b.Total = b.CategoryTotal + b.ComplexityTotal + b.WaitTotal + b.BoostTotal
	return b
}

// RequiresIndividualRoom reports whether the isolation type rules out any
// shared room.
func RequiresIndividualRoom(iso models.Isolation) bool {
	switch iso {
	case models.IsolationAirborne, models.IsolationProtected, models.IsolationSpecial:
		return true
	}
	return false
}

// CanShareIsolation reports whether the isolation type may share a room with
// patients under the same precautions.
func CanShareIsolation(iso models.Isolation) bool {
	return iso == models.IsolationContact || iso == models.IsolationDroplet
}

func (b *Breakdown) addBoost(reason string, value float64) {
	b.Boosts = append(b.Boosts, Boost{Reason: reason, Value: value})
	b.BoostTotal += value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
