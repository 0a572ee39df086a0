package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"oncorisk/adapters/calibrate"
	"oncorisk/adapters/evaluation"
	"oncorisk/adapters/models/hazard"
	"oncorisk/adapters/models/mutation"
	"oncorisk/adapters/models/replicative"
	"oncorisk/domain/core"
	"oncorisk/domain/risk"
	"oncorisk/domain/series"
	"oncorisk/ports"

	"golang.org/x/sync/errgroup"
)

// ComparisonService orchestrates the cross-model comparison: calibrate the
// mutation-accumulation model on a training series, fit the replicative-risk
// regression and the hazard families, evaluate everything through the shared
// metric suite and rank by AIC. Model fits are independent and run
// concurrently; any fit failure fails the whole comparison.
type ComparisonService struct {
	suite *evaluation.Suite
}

// ComparisonRequest defines the inputs for one deterministic comparison run.
type ComparisonRequest struct {
	// Train and Holdout split the incidence curve. The mutation model is
	// calibrated and the hazard families are fitted on Train; all curve
	// models are scored on Holdout.
	Train   *series.IncidenceSeries
	Holdout *series.IncidenceSeries

	// Base parameters and grid for the mutation-model calibration.
	BaseParameters risk.ModelAParameters
	Grid           calibrate.Grid
	Objective      calibrate.Objective

	// Tissues feeds the replicative-risk regression; fewer than two
	// observations skips that model. FixedEffects adds per-group dummies.
	Tissues      []risk.TissueObservation
	FixedEffects bool

	// HazardForms to fit; empty means all families.
	HazardForms []risk.HazardForm

	Seed  int64
	RunID core.RunID // optional, generated if empty
}

// ComparisonResult is the complete outcome of a comparison run.
type ComparisonResult struct {
	RunID       core.RunID              `json:"run_id"`
	Scores      []risk.ModelScore       `json:"scores"` // ranked, best first
	Calibration *risk.GridSearchResult  `json:"calibration"`
	Replicative *replicative.Fit        `json:"replicative,omitempty"`
	HazardFits  []risk.HazardFit        `json:"hazard_fits"`
	Manifest    risk.ComparisonManifest `json:"manifest"`
}

// NewComparisonService creates a comparison service around an evaluation
// suite.
func NewComparisonService(suite *evaluation.Suite) *ComparisonService {
	return &ComparisonService{suite: suite}
}

// RunComparison executes the full comparison and returns ranked scores with
// an audit manifest.
func (s *ComparisonService) RunComparison(ctx context.Context, req ComparisonRequest) (*ComparisonResult, error) {
	startTime := time.Now()

	if req.Train == nil || req.Train.Len() == 0 {
		return nil, core.NewInputError("training series is empty")
	}
	if req.Holdout == nil || req.Holdout.Len() == 0 {
		return nil, core.NewInputError("holdout series is empty")
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}

	objective := req.Objective
	if objective == "" {
		objective = calibrate.ObjectiveSSE
	}
	forms := req.HazardForms
	if len(forms) == 0 {
		forms = risk.HazardForms()
	}

	var (
		calibration  *risk.GridSearchResult
		mutationEval *risk.EvaluationResult
		replFit      *replicative.Fit
		replEval     *risk.EvaluationResult
		hazardFits   = make([]risk.HazardFit, len(forms))
		hazardEvals  = make([]*risk.EvaluationResult, len(forms))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		calibration, mutationEval, err = s.calibrateAndScore(gctx, req, objective)
		return err
	})

	if len(req.Tissues) >= 2 {
		g.Go(func() error {
			var err error
			replFit, replEval, err = s.fitReplicative(req)
			return err
		})
	}

	for i, form := range forms {
		i, form := i, form
		g.Go(func() error {
			fit, eval, err := s.fitHazard(form, req.Train, req.Holdout)
			if err != nil {
				return err
			}
			hazardFits[i] = *fit
			hazardEvals[i] = eval
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := []risk.ModelScore{
		{Model: "mutation_accumulation", Evaluation: *mutationEval},
	}
	if replEval != nil {
		scores = append(scores, risk.ModelScore{Model: "replicative_risk", Evaluation: *replEval})
	}
	for i, form := range forms {
		scores = append(scores, risk.ModelScore{
			Model:      "hazard_" + string(form),
			Evaluation: *hazardEvals[i],
		})
	}
	ranked := evaluation.RankByAIC(scores)

	names := make([]string, len(ranked))
	for i, sc := range ranked {
		names[i] = sc.Model
	}

	result := &ComparisonResult{
		RunID:       runID,
		Scores:      ranked,
		Calibration: calibration,
		Replicative: replFit,
		HazardFits:  hazardFits,
	}
	result.Manifest = risk.ComparisonManifest{
		RunID:          runID,
		Seed:           req.Seed,
		ModelsCompared: names,
		RankedBy:       "aic",
		RuntimeMs:      time.Since(startTime).Milliseconds(),
		Fingerprint:    s.fingerprint(req.Seed, string(objective), ranked, calibration),
		CreatedAt:      core.Now(),
	}
	return result, nil
}

// calibrateAndScore runs the grid search on the training series, then scores
// the calibrated model's scaled curve on the holdout series.
func (s *ComparisonService) calibrateAndScore(ctx context.Context, req ComparisonRequest, objective calibrate.Objective) (*risk.GridSearchResult, *risk.EvaluationResult, error) {
	cal, err := calibrate.New(req.BaseParameters, objective)
	if err != nil {
		return nil, nil, err
	}
	search, err := cal.Search(ctx, req.Grid, req.Train)
	if err != nil {
		return nil, nil, fmt.Errorf("mutation model calibration: %w", err)
	}

	model, err := mutation.New(search.BestParameters)
	if err != nil {
		return nil, nil, err
	}
	eval, err := s.scoreOnHoldout(scaledCurve{model, req.Holdout.MaxRate()}, req.Holdout)
	if err != nil {
		return nil, nil, err
	}
	return search, eval, nil
}

// scoreOnHoldout evaluates any age-curve model against the holdout series
// under a Poisson likelihood.
func (s *ComparisonService) scoreOnHoldout(model ports.RiskModel, holdout *series.IncidenceSeries) (*risk.EvaluationResult, error) {
	pred, err := model.Predict(holdout.Ages())
	if err != nil {
		return nil, err
	}
	return s.suite.Evaluate(evaluation.Input{
		Ages:           holdout.Ages(),
		Predicted:      pred,
		Observed:       holdout.Rates(),
		ParameterCount: model.ParameterCount(),
		Likelihood:     evaluation.LikelihoodPoisson,
	})
}

// scaledCurve adapts the mutation model's scaled prediction to the
// RiskModel contract: the curve's shape is compared to the holdout after
// rescaling its maximum onto the observed scale.
type scaledCurve struct {
	inner *mutation.Model
	max   float64
}

func (c scaledCurve) Name() string        { return c.inner.Name() }
func (c scaledCurve) ParameterCount() int { return c.inner.ParameterCount() }
func (c scaledCurve) Predict(ages []float64) ([]float64, error) {
	return c.inner.PredictScaled(ages, c.max)
}

// fitReplicative fits the cross-tissue regression and scores its fitted
// incidences against the observed ones. Tissues are ordered by LSCD so the
// discrimination metric ranks across the division spectrum.
func (s *ComparisonService) fitReplicative(req ComparisonRequest) (*replicative.Fit, *risk.EvaluationResult, error) {
	obs := make([]risk.TissueObservation, len(req.Tissues))
	copy(obs, req.Tissues)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].LSCD < obs[j].LSCD })

	var opts []replicative.Option
	if req.FixedEffects {
		opts = append(opts, replicative.WithFixedEffects())
	}
	model, err := replicative.New(obs, opts...)
	if err != nil {
		return nil, nil, err
	}
	fit, err := model.Fit()
	if err != nil {
		return nil, nil, fmt.Errorf("replicative model: %w", err)
	}

	pred, observed, err := model.PredictedIncidences()
	if err != nil {
		return nil, nil, err
	}

	// No shared age axis across tissues: index the LSCD-ordered set.
	axis := make([]float64, len(pred))
	for i := range axis {
		axis[i] = float64(i)
	}
	eval, err := s.suite.Evaluate(evaluation.Input{
		Ages:           axis,
		Predicted:      pred,
		Observed:       observed,
		ParameterCount: fit.FreeParams,
		Likelihood:     evaluation.LikelihoodBernoulli,
	})
	if err != nil {
		return nil, nil, err
	}
	return fit, eval, nil
}

// fitHazard fits one hazard family on the training series and scores it on
// the holdout series.
func (s *ComparisonService) fitHazard(form risk.HazardForm, train, holdout *series.IncidenceSeries) (*risk.HazardFit, *risk.EvaluationResult, error) {
	model, err := hazard.New(form)
	if err != nil {
		return nil, nil, err
	}
	fit, err := model.Fit(train)
	if err != nil {
		return nil, nil, fmt.Errorf("hazard family %s: %w", form, err)
	}

	eval, err := s.scoreOnHoldout(model, holdout)
	if err != nil {
		return nil, nil, err
	}
	return fit, eval, nil
}

// fingerprint derives a deterministic hash of the run's inputs and ranked
// outcome, excluding wall-clock fields.
func (s *ComparisonService) fingerprint(seed int64, objective string, ranked []risk.ModelScore, cal *risk.GridSearchResult) core.Hash {
	fields := []string{
		fmt.Sprintf("seed=%d", seed),
		"objective=" + objective,
	}
	if cal != nil {
		fields = append(fields, fmt.Sprintf("best=%.12g/%d/%.12g/%.12g/%d",
			cal.BestParameters.P,
			cal.BestParameters.M,
			cal.BestParameters.DivisionsPerYear,
			cal.BestParameters.RepairEfficiency,
			cal.BestParameters.ClonalThreshold))
		fields = append(fields, fmt.Sprintf("score=%.12g", cal.BestScore))
	}
	for _, sc := range ranked {
		fields = append(fields, fmt.Sprintf("%s=%.12g", sc.Model, sc.Evaluation.AIC))
	}
	return core.HashFields(fields...)
}
