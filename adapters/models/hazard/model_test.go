package hazard

import (
	"testing"

	"oncorisk/domain/core"
	"oncorisk/domain/risk"
	"oncorisk/domain/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// curveFrom samples a known hazard on an age grid.
func curveFrom(t *testing.T, fit risk.HazardFit, ages []float64) *series.IncidenceSeries {
	t.Helper()
	rates := make([]float64, len(ages))
	for i, age := range ages {
		rates[i] = fit.Hazard(age)
	}
	s, err := series.FromArrays(ages, rates)
	require.NoError(t, err)
	return s
}

var fitAges = []float64{5, 15, 25, 35, 45, 55, 65, 75, 85}

func TestFit_RecoversPowerLaw(t *testing.T) {
	truth := risk.HazardFit{Form: risk.HazardPowerLaw, Parameters: []float64{2e-5, 3.2}}
	target := curveFrom(t, truth, fitAges)

	model, err := New(risk.HazardPowerLaw)
	require.NoError(t, err)
	fit, err := model.Fit(target)
	require.NoError(t, err)

	assert.InEpsilon(t, truth.Parameters[0], fit.Parameters[0], 0.05, "lambda")
	assert.InDelta(t, truth.Parameters[1], fit.Parameters[1], 0.05, "k")
	assert.Less(t, fit.Score, 1e-3)
}

func TestFit_RecoversExponential(t *testing.T) {
	truth := risk.HazardFit{Form: risk.HazardExponential, Parameters: []float64{0.5, 0.08}}
	target := curveFrom(t, truth, fitAges)

	model, err := New(risk.HazardExponential)
	require.NoError(t, err)
	fit, err := model.Fit(target)
	require.NoError(t, err)

	assert.InEpsilon(t, truth.Parameters[0], fit.Parameters[0], 0.05, "lambda")
	assert.InDelta(t, truth.Parameters[1], fit.Parameters[1], 0.01, "beta")
}

func TestFit_RecoversWeibull(t *testing.T) {
	truth := risk.HazardFit{Form: risk.HazardWeibull, Parameters: []float64{3.5, 60}}
	target := curveFrom(t, truth, fitAges)

	model, err := New(risk.HazardWeibull)
	require.NoError(t, err)
	fit, err := model.Fit(target)
	require.NoError(t, err)

	assert.InEpsilon(t, truth.Parameters[0], fit.Parameters[0], 0.05, "k")
	assert.InEpsilon(t, truth.Parameters[1], fit.Parameters[1], 0.05, "lambda")
}

// Survival derived from the fitted cumulative hazard must satisfy the
// survival-curve invariants for every family.
func TestFit_SurvivalRoundTrip(t *testing.T) {
	truth := risk.HazardFit{Form: risk.HazardPowerLaw, Parameters: []float64{1e-5, 3}}
	target := curveFrom(t, truth, fitAges)

	for _, form := range risk.HazardForms() {
		model, err := New(form)
		require.NoError(t, err)
		fit, err := model.Fit(target)
		require.NoError(t, err, "form %s", form)

		assert.InDelta(t, 1.0, fit.Survival(0), 1e-12, "S(0) for %s", form)
		prev := 1.0
		for age := 1.0; age <= 100; age++ {
			s := fit.Survival(age)
			assert.LessOrEqual(t, s, prev+1e-12, "S non-increasing for %s", form)
			prev = s
		}
	}
}

func TestFit_DegenerateSeries(t *testing.T) {
	model, err := New(risk.HazardPowerLaw)
	require.NoError(t, err)

	// Too short.
	short, err := series.FromArrays([]float64{10, 20}, []float64{1, 2})
	require.NoError(t, err)
	_, err = model.Fit(short)
	require.Error(t, err)
	assert.True(t, core.IsFitFailure(err))

	// Flat zero.
	flat, err := series.FromArrays([]float64{10, 20, 30, 40}, []float64{0, 0, 0, 0})
	require.NoError(t, err)
	_, err = model.Fit(flat)
	require.Error(t, err)
	assert.True(t, core.IsFitFailure(err))

	// Nil.
	_, err = model.Fit(nil)
	require.Error(t, err)
	assert.True(t, core.IsFitFailure(err))
}

func TestPredict_RequiresFit(t *testing.T) {
	model, err := New(risk.HazardWeibull)
	require.NoError(t, err)

	_, err = model.Predict([]float64{10, 20})
	require.Error(t, err)
	assert.True(t, core.IsFitFailure(err))
}

func TestPredict_MatchesFittedHazard(t *testing.T) {
	truth := risk.HazardFit{Form: risk.HazardExponential, Parameters: []float64{0.3, 0.06}}
	target := curveFrom(t, truth, fitAges)

	model, err := New(risk.HazardExponential)
	require.NoError(t, err)
	fit, err := model.Fit(target)
	require.NoError(t, err)

	ages := []float64{10, 40, 70}
	got, err := model.Predict(ages)
	require.NoError(t, err)
	for i, age := range ages {
		assert.InDelta(t, fit.Hazard(age), got[i], 1e-12)
	}

	_, err = model.Predict([]float64{-5})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestNew_UnknownFamily(t *testing.T) {
	_, err := New("gompertz")
	require.Error(t, err)
	assert.True(t, core.IsInvalidParameter(err))
}
