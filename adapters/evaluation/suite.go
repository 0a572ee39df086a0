package evaluation

import (
	"fmt"
	"math"
	"sort"

	"oncorisk/domain/core"
	"oncorisk/domain/risk"

	"github.com/montanaflynn/stats"
)

// Likelihood selects the assumed observation model for NLL/AIC.
type Likelihood string

const (
	// LikelihoodPoisson treats observations as counts/rates with the
	// prediction as intensity. Appropriate for incidence-rate curves.
	LikelihoodPoisson Likelihood = "poisson"
	// LikelihoodBernoulli treats observations as probabilities in [0,1]
	// against predicted probabilities. Appropriate for per-tissue
	// lifetime-incidence comparisons.
	LikelihoodBernoulli Likelihood = "bernoulli"
)

// Input pairs one model's predictions with held-out observations.
// Events optionally marks which observations are confirmed events for the
// discrimination metric; when absent, observed magnitude ordering is used.
type Input struct {
	Ages           []float64
	Predicted      []float64
	Observed       []float64
	Events         []bool
	ParameterCount int
	Likelihood     Likelihood
}

// Suite computes the shared cross-model metrics. All metrics are pure
// functions of (predictions, observations, parameter count); the suite
// holds only configuration, never state.
type Suite struct {
	checkpointStep float64 // age spacing of Brier/AUC checkpoints
}

// Option configures the suite.
type Option func(*Suite)

// WithCheckpointStep overrides the default 10-year checkpoint spacing.
func WithCheckpointStep(step float64) Option {
	return func(s *Suite) {
		if step > 0 {
			s.checkpointStep = step
		}
	}
}

// New creates an evaluation suite.
func New(opts ...Option) *Suite {
	s := &Suite{checkpointStep: 10}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate computes calibration (Brier at checkpoints), discrimination
// (time-dependent AUC with the 0.5 tie convention) and fit (NLL and
// AIC = 2k + 2*NLL) for one model.
func (s *Suite) Evaluate(in Input) (*risk.EvaluationResult, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	checkpoints := s.checkpoints(in.Ages)
	brier := brierScore(in.Ages, in.Predicted, in.Observed, checkpoints)
	auc := timeDependentAUC(in.Ages, in.Predicted, in.Observed, in.Events, checkpoints)
	nll := negLogLikelihood(in.Predicted, in.Observed, in.Likelihood)
	aic := 2*float64(in.ParameterCount) + 2*nll

	return &risk.EvaluationResult{
		Brier:          brier,
		TimeAUC:        auc,
		NLL:            nll,
		AIC:            aic,
		ParameterCount: in.ParameterCount,
	}, nil
}

// RankByAIC orders model scores best-first (lowest AIC) and assigns ranks.
// Ties keep input order.
func RankByAIC(scores []risk.ModelScore) []risk.ModelScore {
	ranked := make([]risk.ModelScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Evaluation.AIC < ranked[j].Evaluation.AIC
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func (s *Suite) validate(in Input) error {
	n := len(in.Ages)
	if n == 0 {
		return core.NewInputError("no observations to evaluate")
	}
	if len(in.Predicted) != n || len(in.Observed) != n {
		return core.NewInputError(fmt.Sprintf(
			"length mismatch: %d ages, %d predictions, %d observations",
			n, len(in.Predicted), len(in.Observed)))
	}
	if in.Events != nil && len(in.Events) != n {
		return core.NewInputError("event indicators must match observation length")
	}
	if in.ParameterCount < 0 {
		return core.NewParameterError("parameter_count", in.ParameterCount, "must be >= 0")
	}
	switch in.Likelihood {
	case LikelihoodPoisson, LikelihoodBernoulli:
	default:
		return core.NewParameterError("likelihood", string(in.Likelihood), "must be poisson or bernoulli")
	}
	prev := math.Inf(-1)
	for i, age := range in.Ages {
		if math.IsNaN(age) || age < 0 {
			return core.NewInputError(fmt.Sprintf("invalid age %g at index %d", age, i))
		}
		if age <= prev {
			return core.NewInputError("ages must be strictly increasing")
		}
		prev = age
	}
	return nil
}

// checkpoints places evaluation ages every checkpointStep years across the
// observed age span.
func (s *Suite) checkpoints(ages []float64) []float64 {
	lo, hi := ages[0], ages[len(ages)-1]
	var out []float64
	start := math.Ceil(lo/s.checkpointStep) * s.checkpointStep
	for t := start; t <= hi; t += s.checkpointStep {
		out = append(out, t)
	}
	if len(out) == 0 {
		out = []float64{hi}
	}
	return out
}

// brierScore is the mean squared error between predicted and observed
// values interpolated at the age checkpoints.
func brierScore(ages, predicted, observed, checkpoints []float64) float64 {
	sqErrs := make([]float64, len(checkpoints))
	for i, t := range checkpoints {
		p := interpolate(ages, predicted, t)
		o := interpolate(ages, observed, t)
		diff := p - o
		sqErrs[i] = diff * diff
	}
	mean, err := stats.Mean(sqErrs)
	if err != nil {
		return math.NaN()
	}
	return mean
}

// timeDependentAUC measures, at each checkpoint, how well predicted risk
// ranks the observed outcomes among observations up to that age, then
// averages across checkpoints. Tied pairs contribute 0.5 concordance.
// With event indicators, pairs are (event, non-event); without, pairs are
// ordered by observed magnitude.
func timeDependentAUC(ages, predicted, observed []float64, events []bool, checkpoints []float64) float64 {
	var aucs []float64
	for _, t := range checkpoints {
		var idx []int
		for i, age := range ages {
			if age <= t {
				idx = append(idx, i)
			}
		}
		if len(idx) < 2 {
			continue
		}

		pairs, concordant := 0.0, 0.0
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				i, j := idx[a], idx[b]

				var lower, higher int
				if events != nil {
					// Pairs must straddle the event indicator.
					switch {
					case events[i] && !events[j]:
						lower, higher = j, i
					case events[j] && !events[i]:
						lower, higher = i, j
					default:
						continue
					}
				} else {
					switch {
					case observed[i] < observed[j]:
						lower, higher = i, j
					case observed[j] < observed[i]:
						lower, higher = j, i
					default:
						continue // observed tie carries no ordering signal
					}
				}

				pairs++
				switch {
				case predicted[higher] > predicted[lower]:
					concordant++
				case predicted[higher] == predicted[lower]:
					concordant += 0.5
				}
			}
		}
		if pairs > 0 {
			aucs = append(aucs, concordant/pairs)
		}
	}

	if len(aucs) == 0 {
		return 0.5 // no ordering signal: chance-level discrimination
	}
	mean, err := stats.Mean(aucs)
	if err != nil {
		return 0.5
	}
	return mean
}

// negLogLikelihood computes the NLL under the model family's assumed
// likelihood.
func negLogLikelihood(predicted, observed []float64, family Likelihood) float64 {
	const eps = 1e-12
	nll := 0.0
	switch family {
	case LikelihoodBernoulli:
		for i := range predicted {
			p := clamp(predicted[i], eps, 1-eps)
			y := clamp(observed[i], 0, 1)
			nll -= y*math.Log(p) + (1-y)*math.Log(1-p)
		}
	default: // Poisson
		for i := range predicted {
			lambda := math.Max(predicted[i], eps)
			y := observed[i]
			lg, _ := math.Lgamma(y + 1)
			nll += lambda - y*math.Log(lambda) + lg
		}
	}
	return nll
}

// interpolate linearly interpolates (xs, ys) at x, clamping to the ends.
func interpolate(xs, ys []float64, x float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return ys[i]
	}
	frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + frac*(ys[i]-ys[i-1])
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
