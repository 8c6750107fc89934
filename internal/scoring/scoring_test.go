package scoring

import (
	"testing"

	"bed-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreHospitalizedHighComplexityOverThreshold(t *testing.T) {
	// Hospitalized, high complexity, 3h wait against a 2h threshold:
	// 10*10 + 3*3 + 3*(1+0.25)*2 = 100 + 9 + 7.5 = 116.5
	p := &models.Patient{
		Category:           models.CategoryHospitalized,
		RequiredComplexity: models.ComplexityHigh,
		AgeCategory:        models.AgeAdult,
		WaitingMinutes:     180,
	}
	assert.Equal(t, 116.5, Score(p))
}

func TestScoreWaitUnderThresholdIsLinear(t *testing.T) {
	p := &models.Patient{
		Category:           models.CategoryEmergency,
		RequiredComplexity: models.ComplexityLow,
		AgeCategory:        models.AgeAdult,
		WaitingMinutes:     120, // 2h, under the 4h emergency threshold
	}
	// 8*10 + 1*3 + 2*2
	assert.Equal(t, 87.0, Score(p))

	b := Explain(p)
	assert.False(t, b.OverThreshold)
	assert.Empty(t, b.Boosts)
}

func TestExplainMatchesScore(t *testing.T) {
	patients := []*models.Patient{
		{Category: models.CategoryHospitalized, RequiredComplexity: models.ComplexityHigh, AgeCategory: models.AgeAdult, WaitingMinutes: 180},
		{Category: models.CategoryEmergency, RequiredComplexity: models.ComplexityMedium, AgeCategory: models.AgeElderly, Elderly: true, WaitingMinutes: 600},
		{Category: models.CategoryReferred, RequiredComplexity: models.ComplexityLow, AgeCategory: models.AgeChild, WaitingMinutes: 45, Pregnant: true},
		{Category: models.CategoryAmbulatory, AgeCategory: models.AgeAdult, WaitingMinutes: 3000, Isolation: models.IsolationAirborne},
		{AgeCategory: models.AgeAdult, WaitingMinutes: 550}, // inferred emergency, >8h wait
		{Category: "desconocido", AgeCategory: models.AgeAdolescent, WaitingMinutes: 0},
	}

	for _, p := range patients {
		b := Explain(p)
		assert.Equal(t, b.Total, Score(p))

		parts := b.CategoryTotal + b.ComplexityTotal + b.WaitTotal + b.BoostTotal
		assert.Equal(t, b.Total, parts)

		var boostSum float64
		for _, boost := range b.Boosts {
			boostSum += boost.Value
		}
		assert.Equal(t, b.BoostTotal, boostSum)
	}
}

func TestVulnerableAgeBoostCountsOnce(t *testing.T) {
	// Elderly by age category and by explicit flag must not stack.
	p := &models.Patient{
		Category:    models.CategoryEmergency,
		AgeCategory: models.AgeElderly,
		Elderly:     true,
	}
	b := Explain(p)
	require.Len(t, b.Boosts, 1)
	assert.Equal(t, 5.0, b.BoostTotal)
}

func TestBoostsAccumulate(t *testing.T) {
	p := &models.Patient{
		Category:       models.CategoryReferred,
		AgeCategory:    models.AgeAdult,
		Pregnant:       true,
		Isolation:      models.IsolationSpecial,
		WaitingMinutes: 9 * 60,
	}
	b := Explain(p)
	// pregnant +10, individual isolation +3, referred +4, adult >8h wait +5
	assert.Equal(t, 22.0, b.BoostTotal)
	assert.Len(t, b.Boosts, 4)
}

func TestEffectiveCategoryInference(t *testing.T) {
	assert.Equal(t, models.CategoryHospitalized, EffectiveCategory(&models.Patient{BedID: "CAMA-1"}))
	assert.Equal(t, models.CategoryReferred, EffectiveCategory(&models.Patient{ReferralPending: true}))
	assert.Equal(t, models.CategoryEmergency, EffectiveCategory(&models.Patient{}))
	assert.Equal(t, models.CategoryAmbulatory, EffectiveCategory(&models.Patient{Category: models.CategoryAmbulatory, BedID: "CAMA-1"}))
}

func TestIsolationPredicates(t *testing.T) {
	assert.True(t, RequiresIndividualRoom(models.IsolationAirborne))
	assert.True(t, RequiresIndividualRoom(models.IsolationProtected))
	assert.True(t, RequiresIndividualRoom(models.IsolationSpecial))
	assert.False(t, RequiresIndividualRoom(models.IsolationContact))
	assert.False(t, RequiresIndividualRoom(models.IsolationNone))

	assert.True(t, CanShareIsolation(models.IsolationContact))
	assert.True(t, CanShareIsolation(models.IsolationDroplet))
	assert.False(t, CanShareIsolation(models.IsolationAirborne))
}
