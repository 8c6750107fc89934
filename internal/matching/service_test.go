package matching

import (
	"testing"

	"bed-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredServiceUCIRequirementWins(t *testing.T) {
	// A ventilated patient needs UCI no matter the illness category.
	for _, illness := range []models.Illness{models.IllnessSurgical, models.IllnessGynecological, models.IllnessMedical} {
		p := &models.Patient{
			Illness:      illness,
			Requirements: []string{"oxigeno_vmi"},
		}
		service, ok := RequiredService(p)
		require.True(t, ok)
		assert.Equal(t, models.ServiceUCI, service)
	}
}

func TestRequiredServiceUTI(t *testing.T) {
	p := &models.Patient{
		Illness:      models.IllnessMedical,
		Requirements: []string{"drogas_vasoactivas"},
	}
	service, ok := RequiredService(p)
	require.True(t, ok)
	assert.Equal(t, models.ServiceUTI, service)
}

func TestRequiredServiceIndividualIsolation(t *testing.T) {
	// Airborne isolation without acuity criteria lands on the isolation ward.
	p := &models.Patient{
		Illness:      models.IllnessMedical,
		Isolation:    models.IsolationAirborne,
		Requirements: []string{"tratamiento_endovenoso"},
	}
	service, ok := RequiredService(p)
	require.True(t, ok)
	assert.Equal(t, models.ServiceIsolation, service)

	// With a UCI-defining requirement the acuity ward wins.
	p.Requirements = []string{"oxigeno_vmi"}
	service, ok = RequiredService(p)
	require.True(t, ok)
	assert.Equal(t, models.ServiceUCI, service)
}

func TestRequiredServiceByIllness(t *testing.T) {
	cases := []struct {
		illness models.Illness
		want    models.Service
	}{
		{models.IllnessSurgical, models.ServiceSurgery},
		{models.IllnessGynecological, models.ServiceGynecology},
		{models.IllnessObstetric, models.ServiceGynecology},
		{models.IllnessMedical, models.ServiceMedicine},
		{models.IllnessTrauma, models.ServiceMedicine},
	}
	for _, tc := range cases {
		p := &models.Patient{
			Illness:      tc.illness,
			Requirements: []string{"tratamiento_endovenoso"},
		}
		service, ok := RequiredService(p)
		require.True(t, ok)
		assert.Equal(t, tc.want, service, "illness %s", tc.illness)
	}
}

func TestDischargeWhenNothingJustifiesABed(t *testing.T) {
	empty := &models.Patient{Illness: models.IllnessMedical}
	_, ok := RequiredService(empty)
	assert.False(t, ok)
	assert.True(t, RequiresDischarge(empty))

	// Only codes that do not justify hospitalization.
	ambulatory := &models.Patient{
		Illness:      models.IllnessMedical,
		Requirements: []string{"curaciones_heridas", "kinesioterapia_respiratoria"},
	}
	_, ok = RequiredService(ambulatory)
	assert.False(t, ok)
	assert.True(t, RequiresDischarge(ambulatory))

	// Casing must not change the verdict.
	cased := &models.Patient{
		Illness:      models.IllnessMedical,
		Requirements: []string{"Curaciones_Heridas"},
	}
	_, ok = RequiredService(cased)
	assert.False(t, ok)
	assert.True(t, RequiresDischarge(cased))
}

func TestHoldCasesNeverDischarge(t *testing.T) {
	socio := &models.Patient{Illness: models.IllnessMedical, SocioSanitary: true}
	service, ok := RequiredService(socio)
	require.True(t, ok)
	assert.Equal(t, models.ServiceMedicine, service)
	assert.False(t, RequiresDischarge(socio))

	cardiac := &models.Patient{
		Illness:      models.IllnessMedical,
		CardiacHold:  true,
		Requirements: []string{"oxigeno_vmi"},
	}
	service, ok = RequiredService(cardiac)
	require.True(t, ok)
	assert.Equal(t, models.ServiceUCI, service)
	assert.False(t, RequiresDischarge(cardiac))
}

func TestRequiresBedChange(t *testing.T) {
	p := &models.Patient{
		Illness:      models.IllnessMedical,
		Requirements: []string{"tratamiento_endovenoso"},
	}

	medicine := &models.Bed{Service: models.ServiceMedicine}
	assert.False(t, RequiresBedChange(p, medicine))

	// Shared medical-surgical beds keep serving medicine patients.
	shared := &models.Bed{Service: models.ServiceMedicalSurgical}
	assert.False(t, RequiresBedChange(p, shared))

	uci := &models.Bed{Service: models.ServiceUCI}
	assert.True(t, RequiresBedChange(p, uci))

	// Airborne isolation in a non-individual bed always forces a change.
	p.Isolation = models.IsolationAirborne
	assert.True(t, RequiresBedChange(p, &models.Bed{Service: models.ServiceIsolation, IsIndividual: false}))
	assert.False(t, RequiresBedChange(p, &models.Bed{Service: models.ServiceIsolation, IsIndividual: true}))
}
