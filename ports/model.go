package ports

// RiskModel is implemented by every age-curve model so the evaluation
// suite and the comparison service stay model-agnostic.
type RiskModel interface {
	// Name identifies the model family in scores and manifests.
	Name() string

	// Predict produces one predicted value per input age. Deterministic
	// for analytic models; seed-controlled for stochastic ones.
	Predict(ages []float64) ([]float64, error)

	// ParameterCount reports the number of free parameters, used by the
	// AIC penalty so cross-model comparison prices complexity consistently.
	ParameterCount() int
}
