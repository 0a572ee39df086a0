package calibrate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"oncorisk/adapters/models/mutation"
	"oncorisk/domain/core"
	"oncorisk/domain/risk"
	"oncorisk/domain/series"

	"golang.org/x/sync/semaphore"
)

// Objective selects the score comparing predicted against observed rates.
type Objective string

const (
	// ObjectiveSSE is the sum of squared errors at matched ages.
	ObjectiveSSE Objective = "sse"
	// ObjectiveNLL is the Poisson negative log-likelihood at matched ages.
	ObjectiveNLL Objective = "nll"
)

// scoreTolerance is the tie window: a cell must beat the incumbent best by
// more than this to displace it, so ties keep the first cell in ascending
// traversal order.
const scoreTolerance = 1e-12

// Grid defines the Cartesian search axes over ModelAParameters. An empty
// axis holds the base value fixed. Axes must be listed ascending by the
// caller; traversal order is p, then repair efficiency, then clonal
// threshold, then divisions per year, then clone count.
type Grid struct {
	P                []float64
	RepairEfficiency []float64
	ClonalThreshold  []int
	DivisionsPerYear []float64
	M                []int
}

// Size returns the number of grid cells.
func (g Grid) Size() int {
	return len(g.axisP()) * len(g.axisR()) * len(g.axisC()) * len(g.axisDiv()) * len(g.axisM())
}

func (g Grid) axisP() []float64 {
	if len(g.P) == 0 {
		return []float64{math.NaN()} // NaN marks "use base value"
	}
	return g.P
}

func (g Grid) axisR() []float64 {
	if len(g.RepairEfficiency) == 0 {
		return []float64{math.NaN()}
	}
	return g.RepairEfficiency
}

func (g Grid) axisC() []int {
	if len(g.ClonalThreshold) == 0 {
		return []int{0}
	}
	return g.ClonalThreshold
}

func (g Grid) axisDiv() []float64 {
	if len(g.DivisionsPerYear) == 0 {
		return []float64{math.NaN()}
	}
	return g.DivisionsPerYear
}

func (g Grid) axisM() []int {
	if len(g.M) == 0 {
		return []int{0}
	}
	return g.M
}

// LogSpace returns n log-spaced values across [lo, hi], ascending. Both
// bounds must be positive.
func LogSpace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	logLo, logHi := math.Log(lo), math.Log(hi)
	for i := range out {
		frac := float64(i) / float64(n-1)
		out[i] = math.Exp(logLo + frac*(logHi-logLo))
	}
	return out
}

// Calibrator searches a bounded parameter grid for the mutation-accumulation
// model, minimizing the objective against a target incidence series. Grid
// cells are independent and evaluated concurrently; the returned trace is
// in deterministic ascending traversal order regardless of scheduling.
type Calibrator struct {
	base      risk.ModelAParameters
	objective Objective
	workers   int64
}

// Option configures the calibrator.
type Option func(*Calibrator)

// WithWorkers bounds concurrent cell evaluation.
func WithWorkers(n int64) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a calibrator around a base parameter set; grid axes override
// individual fields per cell.
func New(base risk.ModelAParameters, objective Objective, opts ...Option) (*Calibrator, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	switch objective {
	case ObjectiveSSE, ObjectiveNLL:
	default:
		return nil, core.NewParameterError("objective", string(objective), "must be sse or nll")
	}

	c := &Calibrator{base: base, objective: objective, workers: 8}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search evaluates every grid cell against the target series and returns
// the full trace with the best cell. A failed search returns no partial
// results.
func (c *Calibrator) Search(ctx context.Context, grid Grid, target *series.IncidenceSeries) (*risk.GridSearchResult, error) {
	if target == nil || target.Len() == 0 {
		return nil, core.NewDegenerateTargetError("target series is empty")
	}
	if !target.HasSignal() {
		return nil, core.NewDegenerateTargetError("all target rates are zero")
	}

	cells := c.enumerate(grid)
	if len(cells) == 0 {
		return nil, core.NewInputError("grid has no cells")
	}
	for i, params := range cells {
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("grid cell %d: %w", i, err)
		}
	}

	ages := target.Ages()
	rates := target.Rates()
	maxRate := target.MaxRate()

	trace := make([]risk.GridCell, len(cells))
	errs := make([]error, len(cells))

	sem := semaphore.NewWeighted(c.workers)
	var wg sync.WaitGroup
	for i, params := range cells {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(idx int, p risk.ModelAParameters) {
			defer wg.Done()
			defer sem.Release(1)

			score, err := c.scoreCell(p, ages, rates, maxRate)
			if err != nil {
				errs[idx] = err
				return
			}
			trace[idx] = risk.GridCell{Parameters: p, Score: score}
		}(i, params)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("grid cell %d: %w", i, err)
		}
	}

	// Lowest score wins; ties within tolerance keep the first cell in
	// traversal order for reproducibility.
	best := 0
	for i := 1; i < len(trace); i++ {
		if trace[i].Score < trace[best].Score-scoreTolerance {
			best = i
		}
	}

	return &risk.GridSearchResult{
		BestParameters: trace[best].Parameters,
		BestScore:      trace[best].Score,
		SearchTrace:    trace,
		Objective:      string(c.objective),
		EvaluatedCells: len(trace),
	}, nil
}

// enumerate expands the Cartesian grid in deterministic ascending order.
func (c *Calibrator) enumerate(grid Grid) []risk.ModelAParameters {
	cells := make([]risk.ModelAParameters, 0, grid.Size())
	for _, p := range grid.axisP() {
		for _, r := range grid.axisR() {
			for _, thr := range grid.axisC() {
				for _, div := range grid.axisDiv() {
					for _, m := range grid.axisM() {
						params := c.base
						if !math.IsNaN(p) {
							params.P = p
						}
						if !math.IsNaN(r) {
							params.RepairEfficiency = r
						}
						if thr != 0 {
							params.ClonalThreshold = thr
						}
						if !math.IsNaN(div) {
							params.DivisionsPerYear = div
						}
						if m != 0 {
							params.M = m
						}
						cells = append(cells, params)
					}
				}
			}
		}
	}
	return cells
}

// scoreCell builds the analytic model for one cell and scores its scaled
// curve against the observed rates.
func (c *Calibrator) scoreCell(params risk.ModelAParameters, ages, rates []float64, maxRate float64) (float64, error) {
	model, err := mutation.New(params)
	if err != nil {
		return 0, err
	}

	pred, err := model.PredictScaled(ages, maxRate)
	if err != nil {
		return 0, err
	}

	switch c.objective {
	case ObjectiveNLL:
		return poissonNLL(pred, rates), nil
	default:
		return sumSquaredError(pred, rates), nil
	}
}

func sumSquaredError(pred, obs []float64) float64 {
	sse := 0.0
	for i := range pred {
		diff := pred[i] - obs[i]
		sse += diff * diff
	}
	return sse
}

// poissonNLL treats each observed rate as a Poisson draw with the predicted
// rate as intensity: sum of lambda - y*ln(lambda) + lnGamma(y+1).
func poissonNLL(pred, obs []float64) float64 {
	const minLambda = 1e-12
	nll := 0.0
	for i := range pred {
		lambda := math.Max(pred[i], minLambda)
		lg, _ := math.Lgamma(obs[i] + 1)
		nll += lambda - obs[i]*math.Log(lambda) + lg
	}
	return nll
}
