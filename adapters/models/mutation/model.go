package mutation

import (
	"fmt"
	"math"

	"oncorisk/adapters/rng"
	"oncorisk/domain/core"
	"oncorisk/domain/risk"
	"oncorisk/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mode selects between the closed-form evaluation and clone-level simulation.
type Mode string

const (
	ModeAnalytic   Mode = "analytic"
	ModeMonteCarlo Mode = "monte_carlo"
)

// Model evaluates the probability that a stem-cell clone population has
// produced a malignancy by a given age.
//
// Per clone, malignancy requires ClonalThreshold driver hits across the
// effective division count N(a) = DivisionsPerYear * a. The per-clone
// probability is combined across M independent clones as
// P = 1 - (1 - P_clone)^M.
//
// Discretization policy: N(a) is treated as continuous for the single-hit
// closed form (real exponent) and floored to completed divisions for the
// binomial threshold form and for simulation.
type Model struct {
	params risk.ModelAParameters
	mode   Mode
	mc     MonteCarloConfig
	rand   ports.RNG
	seed   int64
}

// Option configures optional model behavior.
type Option func(*Model)

// WithMonteCarlo switches the model to simulation mode.
func WithMonteCarlo(cfg MonteCarloConfig) Option {
	return func(m *Model) {
		m.mode = ModeMonteCarlo
		m.mc = cfg
	}
}

// WithSeed fixes the simulation seed.
func WithSeed(seed int64) Option {
	return func(m *Model) { m.seed = seed }
}

// WithRNG overrides the seeded stream provider.
func WithRNG(r ports.RNG) Option {
	return func(m *Model) { m.rand = r }
}

// New constructs a mutation-accumulation model, validating parameters at
// construction.
func New(params risk.ModelAParameters, opts ...Option) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	m := &Model{
		params: params,
		mode:   ModeAnalytic,
		rand:   rng.NewSeededProvider(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mc = m.mc.withDefaults()
	return m, nil
}

// Name identifies the model family.
func (m *Model) Name() string {
	return "mutation_accumulation"
}

// Parameters returns the model's parameter set.
func (m *Model) Parameters() risk.ModelAParameters {
	return m.params
}

// ParameterCount reports the free parameters for the AIC penalty:
// p (or mu/sigma), M and divisions_per_year always; repair efficiency and
// clonal threshold only when they depart from their neutral values.
func (m *Model) ParameterCount() int {
	k := 3
	if m.params.RepairEfficiency > 0 {
		k++
	}
	if m.params.ClonalThreshold > 1 {
		k++
	}
	if m.params.Stochastic {
		k++ // mu and sigma replace the scalar p
	}
	return k
}

// Predict produces P(a) for each input age. Deterministic in analytic
// mode; seed-controlled in Monte-Carlo mode.
func (m *Model) Predict(ages []float64) ([]float64, error) {
	if err := validateAges(ages); err != nil {
		return nil, err
	}

	if m.mode == ModeMonteCarlo {
		return m.predictMonteCarlo(ages)
	}

	out := make([]float64, len(ages))
	for i, age := range ages {
		pClone := m.cloneProbability(age)
		out[i] = combineClones(pClone, m.params.M)
	}
	return out, nil
}

// PredictScaled linearly rescales the predicted curve so its maximum equals
// scaleToMax, for shape comparison against empirical rates on an unrelated
// absolute scale.
func (m *Model) PredictScaled(ages []float64, scaleToMax float64) ([]float64, error) {
	if !(scaleToMax > 0) {
		return nil, core.NewParameterError("scale_to_max", scaleToMax, "must be > 0")
	}

	preds, err := m.Predict(ages)
	if err != nil {
		return nil, err
	}

	max, err := stats.Max(preds)
	if err != nil || !(max > 0) {
		return nil, core.NewInputError("predicted curve has no positive maximum to scale against")
	}

	out := make([]float64, len(preds))
	for i, v := range preds {
		out[i] = v / max * scaleToMax
	}
	return out, nil
}

// cloneProbability computes the probability that a single clone has
// accumulated at least ClonalThreshold driver hits by the given age.
func (m *Model) cloneProbability(age float64) float64 {
	pEff := m.params.EffectiveP()
	n := age * m.params.DivisionsPerYear

	if m.params.ClonalThreshold <= 1 {
		// 1 - (1-p_eff)^N with continuous N, via log1p/expm1 for tiny p_eff.
		return -math.Expm1(n * math.Log1p(-pEff))
	}

	nDiv := math.Floor(n)
	c := m.params.ClonalThreshold
	if nDiv < float64(c) {
		return 0
	}

	// Complement of the Binomial(N, p_eff) CDF at C-1.
	binom := distuv.Binomial{N: nDiv, P: pEff}
	return 1 - binom.CDF(float64(c-1))
}

// combineClones applies the independent-clone OR combination
// 1 - (1 - pClone)^M.
func combineClones(pClone float64, m int) float64 {
	if pClone <= 0 {
		return 0
	}
	if pClone >= 1 {
		return 1
	}
	return -math.Expm1(float64(m) * math.Log1p(-pClone))
}

func validateAges(ages []float64) error {
	if len(ages) == 0 {
		return core.NewInputError("no ages supplied")
	}
	for i, age := range ages {
		if math.IsNaN(age) || age < 0 {
			return core.NewInputError(fmt.Sprintf("invalid age %g at index %d", age, i))
		}
	}
	return nil
}
