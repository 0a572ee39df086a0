package replicative

import (
	"fmt"
	"math"
	"sort"

	"oncorisk/domain/core"
	"oncorisk/domain/risk"

	"gonum.org/v1/gonum/mat"
)

// Model fits the cross-tissue replicative-risk regression
//
//	log(incidence) = alpha + beta*log(LSCD) + group_effect
//
// by ordinary least squares, with optional fixed effects as dummy
// covariates per tissue group. The observation set is immutable per fit.
type Model struct {
	obs          []risk.TissueObservation
	fixedEffects bool
	fit          *Fit
}

// Fit is the fitted regression: coefficients, per-group fixed effects
// (reference group omitted, effect zero), and per-tissue residuals in log
// space.
type Fit struct {
	Alpha        float64                   `json:"alpha"`
	Beta         float64                   `json:"beta"`
	GroupEffects map[string]float64        `json:"group_effects,omitempty"`
	Residuals    map[core.TissueID]float64 `json:"residuals"`
	RSquared     float64                   `json:"r_squared"`
	N            int                       `json:"n"`
	FreeParams   int                       `json:"free_params"`
}

// Option configures the model.
type Option func(*Model)

// WithFixedEffects enables per-group dummy covariates. Groups come from
// TissueObservation.Group; observations without a group share the
// reference level.
func WithFixedEffects() Option {
	return func(m *Model) { m.fixedEffects = true }
}

// New validates the observation set: positivity of incidence and LSCD
// (log undefined otherwise), unique tissue IDs, at least two tissues.
func New(obs []risk.TissueObservation, opts ...Option) (*Model, error) {
	if len(obs) < 2 {
		return nil, core.NewInputError("replicative-risk regression needs at least two tissues")
	}

	seen := make(map[core.TissueID]bool, len(obs))
	for i, o := range obs {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		if seen[o.TissueID] {
			return nil, core.NewInputError(fmt.Sprintf("duplicate tissue %s", o.TissueID))
		}
		seen[o.TissueID] = true
	}

	owned := make([]risk.TissueObservation, len(obs))
	copy(owned, obs)

	m := &Model{obs: owned}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Fit solves the least-squares problem via QR decomposition.
func (m *Model) Fit() (*Fit, error) {
	groups := m.dummyGroups()
	cols := 2 + len(groups)
	n := len(m.obs)
	if n < cols {
		return nil, core.NewFitError("replicative_risk",
			fmt.Errorf("%d observations cannot identify %d coefficients", n, cols))
	}

	x := mat.NewDense(n, cols, nil)
	y := mat.NewDense(n, 1, nil)
	for i, o := range m.obs {
		x.Set(i, 0, 1)
		x.Set(i, 1, math.Log(o.LSCD))
		for j, g := range groups {
			if o.Group == g {
				x.Set(i, 2+j, 1)
			}
		}
		y.Set(i, 0, math.Log(o.Incidence))
	}

	var qr mat.QR
	qr.Factorize(x)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, y); err != nil {
		return nil, core.NewFitError("replicative_risk", err)
	}

	fit := &Fit{
		Alpha:      coef.At(0, 0),
		Beta:       coef.At(1, 0),
		Residuals:  make(map[core.TissueID]float64, n),
		N:          n,
		FreeParams: cols,
	}
	if len(groups) > 0 {
		fit.GroupEffects = make(map[string]float64, len(groups))
		for j, g := range groups {
			fit.GroupEffects[g] = coef.At(2+j, 0)
		}
	}

	// Residuals and R^2 in log space.
	meanY := 0.0
	for i := 0; i < n; i++ {
		meanY += y.At(i, 0)
	}
	meanY /= float64(n)

	ssRes, ssTot := 0.0, 0.0
	for i, o := range m.obs {
		pred := fit.predictLog(o.LSCD, o.Group)
		res := y.At(i, 0) - pred
		fit.Residuals[o.TissueID] = res
		ssRes += res * res
		dev := y.At(i, 0) - meanY
		ssTot += dev * dev
	}
	if ssTot > 0 {
		fit.RSquared = 1 - ssRes/ssTot
	}

	if !isFinite(fit.Alpha) || !isFinite(fit.Beta) {
		return nil, core.NewFitError("replicative_risk", fmt.Errorf("non-finite coefficients"))
	}

	m.fit = fit
	return fit, nil
}

// predictLog evaluates alpha + beta*log(lscd) + group effect.
func (f *Fit) predictLog(lscd float64, group string) float64 {
	pred := f.Alpha + f.Beta*math.Log(lscd)
	if effect, ok := f.GroupEffects[group]; ok {
		pred += effect
	}
	return pred
}

// PredictIncidence returns the fitted incidence for a tissue's LSCD and
// group on the natural scale.
func (f *Fit) PredictIncidence(lscd float64, group string) (float64, error) {
	if !(lscd > 0) {
		return 0, core.NewParameterError("lscd", lscd, "must be strictly positive")
	}
	return math.Exp(f.predictLog(lscd, group)), nil
}

// Name identifies the model family.
func (m *Model) Name() string {
	return "replicative_risk"
}

// ParameterCount reports the regression's free parameters (alpha, beta,
// plus one per non-reference group).
func (m *Model) ParameterCount() int {
	if m.fit != nil {
		return m.fit.FreeParams
	}
	return 2 + len(m.dummyGroups())
}

// PredictedIncidences returns fitted incidences in observation order,
// paired with the observed values, for the evaluation suite.
func (m *Model) PredictedIncidences() (predicted, observed []float64, err error) {
	if m.fit == nil {
		return nil, nil, core.ErrNotFitted
	}
	predicted = make([]float64, len(m.obs))
	observed = make([]float64, len(m.obs))
	for i, o := range m.obs {
		p, err := m.fit.PredictIncidence(o.LSCD, o.Group)
		if err != nil {
			return nil, nil, err
		}
		predicted[i] = p
		observed[i] = o.Incidence
	}
	return predicted, observed, nil
}

// dummyGroups returns the non-reference groups in deterministic order.
// The lexicographically smallest group (or the unlabeled level) is the
// reference and gets no dummy.
func (m *Model) dummyGroups() []string {
	if !m.fixedEffects {
		return nil
	}
	set := make(map[string]bool)
	for _, o := range m.obs {
		set[o.Group] = true
	}
	all := make([]string, 0, len(set))
	for g := range set {
		all = append(all, g)
	}
	sort.Strings(all)
	if len(all) <= 1 {
		return nil
	}
	return all[1:]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
