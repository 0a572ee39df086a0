package risk

import (
	"math"
	"testing"

	"oncorisk/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelAParameters_Validate(t *testing.T) {
	valid := DefaultModelAParameters()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ModelAParameters)
	}{
		{"p zero", func(p *ModelAParameters) { p.P = 0 }},
		{"p one", func(p *ModelAParameters) { p.P = 1 }},
		{"p negative", func(p *ModelAParameters) { p.P = -1e-9 }},
		{"m zero", func(p *ModelAParameters) { p.M = 0 }},
		{"m negative", func(p *ModelAParameters) { p.M = -5 }},
		{"divisions zero", func(p *ModelAParameters) { p.DivisionsPerYear = 0 }},
		{"repair negative", func(p *ModelAParameters) { p.RepairEfficiency = -0.1 }},
		{"repair above one", func(p *ModelAParameters) { p.RepairEfficiency = 1.1 }},
		{"threshold zero", func(p *ModelAParameters) { p.ClonalThreshold = 0 }},
		{"stochastic sigma zero", func(p *ModelAParameters) { p.Stochastic = true; p.Sigma = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultModelAParameters()
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, core.IsInvalidParameter(err), "expected InvalidParameter, got %v", err)
		})
	}
}

func TestModelAParameters_EffectiveP(t *testing.T) {
	p := DefaultModelAParameters()
	p.P = 1e-8
	p.RepairEfficiency = 0.75
	assert.InDelta(t, 2.5e-9, p.EffectiveP(), 1e-18)

	p.RepairEfficiency = 0
	assert.Equal(t, 1e-8, p.EffectiveP())
}

func TestTissueObservation_Validate(t *testing.T) {
	valid := TissueObservation{TissueID: "colon", LSCD: 1e12, Incidence: 5e-4}
	require.NoError(t, valid.Validate())

	cases := []TissueObservation{
		{TissueID: "", LSCD: 1e12, Incidence: 5e-4},
		{TissueID: "colon", LSCD: 0, Incidence: 5e-4},
		{TissueID: "colon", LSCD: -1, Incidence: 5e-4},
		{TissueID: "colon", LSCD: 1e12, Incidence: 0},
	}
	for _, obs := range cases {
		assert.Error(t, obs.Validate())
	}
}

// Hazard round-trip properties shared by all families: S(0)=1 and S
// non-increasing on [0, inf).
func TestHazardFit_SurvivalProperties(t *testing.T) {
	fits := []HazardFit{
		{Form: HazardPowerLaw, Parameters: []float64{1e-6, 4}},
		{Form: HazardExponential, Parameters: []float64{1e-5, 0.08}},
		{Form: HazardExponential, Parameters: []float64{1e-5, 0}},
		{Form: HazardWeibull, Parameters: []float64{3, 120}},
	}

	for _, fit := range fits {
		require.NoError(t, fit.Validate(), "form %s", fit.Form)
		assert.InDelta(t, 1.0, fit.Survival(0), 1e-15, "S(0) for %s", fit.Form)
		assert.InDelta(t, 0.0, fit.CumulativeHazard(0), 1e-15, "H(0) for %s", fit.Form)

		prev := fit.Survival(0)
		for age := 1.0; age <= 100; age++ {
			s := fit.Survival(age)
			assert.LessOrEqual(t, s, prev+1e-12, "S must be non-increasing for %s at age %g", fit.Form, age)
			assert.InDelta(t, 1-s, fit.Incidence(age), 1e-12)
			prev = s
		}
	}
}

// Closed-form cumulative hazards must match numerical integration of h.
func TestHazardFit_CumulativeHazardMatchesIntegral(t *testing.T) {
	fits := []HazardFit{
		{Form: HazardPowerLaw, Parameters: []float64{2e-6, 3}},
		{Form: HazardExponential, Parameters: []float64{1e-4, 0.05}},
		{Form: HazardWeibull, Parameters: []float64{2.5, 90}},
	}

	const upper = 80.0
	const steps = 200000
	for _, fit := range fits {
		// Trapezoidal integration of h over [0, upper].
		dt := upper / steps
		integral := 0.0
		prev := fit.Hazard(0)
		if math.IsInf(prev, 1) || math.IsNaN(prev) {
			prev = fit.Hazard(dt / 2)
		}
		for i := 1; i <= steps; i++ {
			cur := fit.Hazard(float64(i) * dt)
			integral += (prev + cur) / 2 * dt
			prev = cur
		}

		closed := fit.CumulativeHazard(upper)
		assert.InEpsilon(t, closed, integral, 1e-3, "H(80) for %s", fit.Form)
	}
}

func TestHazardFit_Validate(t *testing.T) {
	bad := []HazardFit{
		{Form: HazardPowerLaw, Parameters: []float64{0, 2}},
		{Form: HazardPowerLaw, Parameters: []float64{1, -1.5}},
		{Form: HazardExponential, Parameters: []float64{-1, 0}},
		{Form: HazardWeibull, Parameters: []float64{0, 100}},
		{Form: HazardWeibull, Parameters: []float64{2, 0}},
		{Form: "gompertz", Parameters: []float64{1, 1}},
		{Form: HazardPowerLaw, Parameters: []float64{1}},
	}
	for _, fit := range bad {
		assert.Error(t, fit.Validate(), "form %s params %v", fit.Form, fit.Parameters)
	}
}
