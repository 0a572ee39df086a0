package hazard

import (
	"math"

	"oncorisk/domain/core"
	"oncorisk/domain/risk"
	"oncorisk/domain/series"

	"gonum.org/v1/gonum/optimize"
)

// Model fits one parametric hazard family to an incidence series by
// least squares on the hazard curve, treating observed rates as hazard
// samples (the scale constant is absorbed by lambda). Family selection
// across fitted forms is the caller's job via the shared fit metrics.
type Model struct {
	form   risk.HazardForm
	fit    *risk.HazardFit
	target *series.IncidenceSeries
}

// New creates an unfitted hazard model for one family.
func New(form risk.HazardForm) (*Model, error) {
	switch form {
	case risk.HazardPowerLaw, risk.HazardExponential, risk.HazardWeibull:
	default:
		return nil, core.NewParameterError("form", string(form), "unknown hazard family")
	}
	return &Model{form: form}, nil
}

// Name identifies the model family.
func (m *Model) Name() string {
	return "hazard_" + string(m.form)
}

// ParameterCount reports the family's free parameters.
func (m *Model) ParameterCount() int {
	return 2
}

// Fitted returns the current fit, if any.
func (m *Model) Fitted() *risk.HazardFit {
	return m.fit
}

// FittedOn returns the series the current fit was produced from, if any.
func (m *Model) FittedOn() *series.IncidenceSeries {
	return m.target
}

// Fit minimizes the sum of squared errors between the family's hazard and
// the observed rates. Degenerate or flat series, and optimizer failure,
// report FitDidNotConverge; retry with other initial parameters is the
// caller's decision.
func (m *Model) Fit(target *series.IncidenceSeries) (*risk.HazardFit, error) {
	if target == nil || target.Len() < 3 {
		return nil, core.NewFitError(m.Name(), core.NewInputError("need at least 3 observations"))
	}
	if !target.HasSignal() {
		return nil, core.NewFitError(m.Name(), core.NewInputError("all rates are zero"))
	}

	ages := target.Ages()
	rates := target.Rates()

	objective := func(x []float64) float64 {
		fit, ok := m.decode(x)
		if !ok {
			return math.Inf(1)
		}
		sse := 0.0
		for i, age := range ages {
			h := fit.Hazard(age)
			if math.IsNaN(h) || math.IsInf(h, 0) {
				return math.Inf(1)
			}
			diff := h - rates[i]
			sse += diff * diff
		}
		return sse
	}

	problem := optimize.Problem{Func: objective}
	x0 := m.initialGuess(ages, rates)

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, core.NewFitError(m.Name(), err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, core.NewFitError(m.Name(), core.NewInputError("objective did not reach a finite optimum"))
	}

	fit, ok := m.decode(result.X)
	if !ok {
		return nil, core.NewFitError(m.Name(), core.NewInputError("optimum outside the family's parameter domain"))
	}
	fit.Score = result.F
	if err := fit.Validate(); err != nil {
		return nil, core.NewFitError(m.Name(), err)
	}

	m.fit = &fit
	m.target = target
	return m.fit, nil
}

// Predict evaluates the fitted hazard at the given ages, on the scale of
// the rates the model was fitted to.
func (m *Model) Predict(ages []float64) ([]float64, error) {
	if m.fit == nil {
		return nil, core.ErrNotFitted
	}
	for _, age := range ages {
		if math.IsNaN(age) || age < 0 {
			return nil, core.NewInputError("ages must be non-negative")
		}
	}

	out := make([]float64, len(ages))
	for i, age := range ages {
		out[i] = m.fit.Hazard(age)
	}
	return out, nil
}

// decode maps the optimizer vector onto family parameters. Positive
// parameters travel in log space so Nelder-Mead search stays unconstrained.
func (m *Model) decode(x []float64) (risk.HazardFit, bool) {
	if len(x) != 2 {
		return risk.HazardFit{}, false
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return risk.HazardFit{}, false
		}
	}

	switch m.form {
	case risk.HazardPowerLaw:
		// x = [log(lambda), k], k constrained to (-1, inf) via shift.
		lambda := math.Exp(x[0])
		k := x[1]
		if k <= -1 {
			return risk.HazardFit{}, false
		}
		return risk.HazardFit{Form: m.form, Parameters: []float64{lambda, k}}, true
	case risk.HazardExponential:
		// x = [log(lambda), beta].
		return risk.HazardFit{Form: m.form, Parameters: []float64{math.Exp(x[0]), x[1]}}, true
	case risk.HazardWeibull:
		// x = [log(k), log(lambda)].
		return risk.HazardFit{Form: m.form, Parameters: []float64{math.Exp(x[0]), math.Exp(x[1])}}, true
	}
	return risk.HazardFit{}, false
}

// initialGuess seeds the optimizer from a regression on the positive
// observations, per family:
// power-law from the log-log slope, exponential from the semilog slope,
// Weibull from the log-log slope shifted by one.
func (m *Model) initialGuess(ages, rates []float64) []float64 {
	var logT, logR, tVals, logRForT []float64
	for i := range ages {
		if rates[i] > 0 && ages[i] > 0 {
			logT = append(logT, math.Log(ages[i]))
			logR = append(logR, math.Log(rates[i]))
			tVals = append(tVals, ages[i])
			logRForT = append(logRForT, math.Log(rates[i]))
		}
	}

	switch m.form {
	case risk.HazardPowerLaw:
		intercept, slope := simpleOLS(logT, logR)
		return []float64{intercept, slope}
	case risk.HazardExponential:
		intercept, slope := simpleOLS(tVals, logRForT)
		return []float64{intercept, slope}
	case risk.HazardWeibull:
		// h(t) = k*lambda^-k * t^(k-1): log h = log(k) - k*log(lambda) + (k-1)*log t.
		intercept, slope := simpleOLS(logT, logR)
		k := slope + 1
		if k <= 0 {
			k = 1
		}
		logLambda := (math.Log(k) - intercept) / k
		return []float64{math.Log(k), logLambda}
	}
	return []float64{0, 0}
}

// simpleOLS fits y = a + b*x, falling back to a flat line on degenerate
// inputs.
func simpleOLS(x, y []float64) (a, b float64) {
	n := float64(len(x))
	if n < 2 {
		if len(y) == 1 {
			return y[0], 0
		}
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}

	den := n*sumXX - sumX*sumX
	if den == 0 {
		return sumY / n, 0
	}
	b = (n*sumXY - sumX*sumY) / den
	a = (sumY - b*sumX) / n
	return a, b
}
