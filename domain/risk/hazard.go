package risk

import (
	"math"

	"oncorisk/domain/core"
)

// HazardForm enumerates the supported parametric hazard families.
type HazardForm string

const (
	HazardPowerLaw    HazardForm = "power_law"   // h(t) = lambda * t^k
	HazardExponential HazardForm = "exponential" // h(t) = lambda * exp(beta*t)
	HazardWeibull     HazardForm = "weibull"     // h(t) = (k/lambda) * (t/lambda)^(k-1)
)

// HazardForms lists all families in deterministic order.
func HazardForms() []HazardForm {
	return []HazardForm{HazardPowerLaw, HazardExponential, HazardWeibull}
}

// HazardFit is a fitted parametric hazard. Parameters is a fixed-size
// vector whose meaning depends on the form:
//
//	power_law:   [lambda, k]      with lambda > 0, k > -1
//	exponential: [lambda, beta]   with lambda > 0
//	weibull:     [k, lambda]      with k > 0, lambda > 0
//
// Read-only after the fit call that produced it. The cumulative-hazard,
// survival and incidence relations below hold for every family:
// H(t) = integral of h over [0,t], S(t) = exp(-H(t)), I(t) = 1 - S(t).
type HazardFit struct {
	Form       HazardForm `json:"form"`
	Parameters []float64  `json:"parameters"`
	Score      float64    `json:"score"` // Objective value at the optimum
}

// Validate checks the parameter domain for the family.
func (f HazardFit) Validate() error {
	if len(f.Parameters) != 2 {
		return core.NewParameterError("parameters", len(f.Parameters), "hazard families take exactly 2 parameters")
	}
	switch f.Form {
	case HazardPowerLaw:
		if !(f.Parameters[0] > 0) {
			return core.NewParameterError("lambda", f.Parameters[0], "must be > 0")
		}
		if !(f.Parameters[1] > -1) {
			return core.NewParameterError("k", f.Parameters[1], "must be > -1 for a finite cumulative hazard")
		}
	case HazardExponential:
		if !(f.Parameters[0] > 0) {
			return core.NewParameterError("lambda", f.Parameters[0], "must be > 0")
		}
	case HazardWeibull:
		if !(f.Parameters[0] > 0) {
			return core.NewParameterError("k", f.Parameters[0], "must be > 0")
		}
		if !(f.Parameters[1] > 0) {
			return core.NewParameterError("lambda", f.Parameters[1], "must be > 0")
		}
	default:
		return core.NewParameterError("form", string(f.Form), "unknown hazard family")
	}
	return nil
}

// Hazard evaluates h(t).
func (f HazardFit) Hazard(t float64) float64 {
	switch f.Form {
	case HazardPowerLaw:
		lambda, k := f.Parameters[0], f.Parameters[1]
		return lambda * math.Pow(t, k)
	case HazardExponential:
		lambda, beta := f.Parameters[0], f.Parameters[1]
		return lambda * math.Exp(beta*t)
	case HazardWeibull:
		k, lambda := f.Parameters[0], f.Parameters[1]
		return (k / lambda) * math.Pow(t/lambda, k-1)
	}
	return math.NaN()
}

// CumulativeHazard evaluates H(t) in closed form per family.
func (f HazardFit) CumulativeHazard(t float64) float64 {
	if t <= 0 {
		return 0
	}
	switch f.Form {
	case HazardPowerLaw:
		lambda, k := f.Parameters[0], f.Parameters[1]
		return lambda * math.Pow(t, k+1) / (k + 1)
	case HazardExponential:
		lambda, beta := f.Parameters[0], f.Parameters[1]
		if beta == 0 {
			return lambda * t
		}
		return lambda / beta * math.Expm1(beta*t)
	case HazardWeibull:
		k, lambda := f.Parameters[0], f.Parameters[1]
		return math.Pow(t/lambda, k)
	}
	return math.NaN()
}

// Survival evaluates S(t) = exp(-H(t)).
func (f HazardFit) Survival(t float64) float64 {
	return math.Exp(-f.CumulativeHazard(t))
}

// Incidence evaluates I(t) = 1 - S(t).
func (f HazardFit) Incidence(t float64) float64 {
	return -math.Expm1(-f.CumulativeHazard(t))
}
