package risk

import (
	"math"

	"oncorisk/domain/core"
)

// ============================================================================
// MODEL A PARAMETERS
// ============================================================================

// ModelAParameters configures the mutation-accumulation model.
// INVARIANTS:
// - P in (0,1)
// - M > 0, ClonalThreshold >= 1
// - DivisionsPerYear > 0
// - RepairEfficiency in [0,1]
// A fitted instance is immutable; only the Calibrator constructs variants
// during search.
type ModelAParameters struct {
	P                float64 `json:"p"`                  // Per-division driver-mutation probability
	M                int     `json:"m"`                  // Stem-cell clone count
	DivisionsPerYear float64 `json:"divisions_per_year"` // Effective divisions per clone per year
	RepairEfficiency float64 `json:"repair_efficiency"`  // Fraction of mutations repaired before fixation
	ClonalThreshold  int     `json:"clonal_threshold"`   // Driver hits required for malignancy

	// Stochastic mode: P is drawn per clone from LogNormal(Mu, Sigma)
	// instead of being used as a fixed scalar.
	Stochastic bool    `json:"stochastic,omitempty"`
	Mu         float64 `json:"mu,omitempty"`
	Sigma      float64 `json:"sigma,omitempty"`
}

// DefaultModelAParameters returns the reference parameterization
// (p=2e-9 per division, 5e5 clones, 2.5 divisions/year, no repair,
// single-hit threshold).
func DefaultModelAParameters() ModelAParameters {
	return ModelAParameters{
		P:                2e-9,
		M:                500000,
		DivisionsPerYear: 2.5,
		RepairEfficiency: 0,
		ClonalThreshold:  1,
	}
}

// Validate checks the parameter domain invariants.
func (p ModelAParameters) Validate() error {
	if !(p.P > 0 && p.P < 1) {
		return core.NewParameterError("p", p.P, "must be in (0,1)")
	}
	if p.M <= 0 {
		return core.NewParameterError("m", p.M, "must be a positive integer")
	}
	if !(p.DivisionsPerYear > 0) || math.IsInf(p.DivisionsPerYear, 0) {
		return core.NewParameterError("divisions_per_year", p.DivisionsPerYear, "must be a positive real")
	}
	if p.RepairEfficiency < 0 || p.RepairEfficiency > 1 {
		return core.NewParameterError("repair_efficiency", p.RepairEfficiency, "must be in [0,1]")
	}
	if p.ClonalThreshold < 1 {
		return core.NewParameterError("clonal_threshold", p.ClonalThreshold, "must be >= 1")
	}
	if p.Stochastic && p.Sigma <= 0 {
		return core.NewParameterError("sigma", p.Sigma, "must be > 0 in stochastic mode")
	}
	return nil
}

// EffectiveP returns the per-division mutation probability after repair,
// p_eff = p * (1 - r).
func (p ModelAParameters) EffectiveP() float64 {
	return p.P * (1 - p.RepairEfficiency)
}

// ============================================================================
// CALIBRATION RESULTS
// ============================================================================

// GridCell records one evaluated calibration cell.
type GridCell struct {
	Parameters ModelAParameters `json:"parameters"`
	Score      float64          `json:"score"`
}

// GridSearchResult is the complete outcome of a calibration run.
// The trace is retained in deterministic traversal order for diagnostic
// plotting by the external reporting layer. Never mutated after return.
type GridSearchResult struct {
	BestParameters ModelAParameters `json:"best_parameters"`
	BestScore      float64          `json:"best_score"`
	SearchTrace    []GridCell       `json:"search_trace"`
	Objective      string           `json:"objective"`
	EvaluatedCells int              `json:"evaluated_cells"`
}

// ============================================================================
// MODEL B OBSERVATIONS
// ============================================================================

// TissueObservation is one tissue's datapoint for the replicative-risk
// regression. Group is an optional fixed-effect bucket (e.g. tissue system);
// empty means no fixed effect.
type TissueObservation struct {
	TissueID  core.TissueID `json:"tissue_id"`
	Group     string        `json:"group,omitempty"`
	LSCD      float64       `json:"lscd"`      // Lifetime stem-cell divisions
	Incidence float64       `json:"incidence"` // Lifetime incidence (probability)
}

// Validate checks the positivity preconditions for the log-log regression.
func (o TissueObservation) Validate() error {
	if o.TissueID.String() == "" {
		return core.NewInputError("tissue observation missing tissue_id")
	}
	if !(o.LSCD > 0) {
		return core.NewParameterError("lscd", o.LSCD, "must be strictly positive")
	}
	if !(o.Incidence > 0) {
		return core.NewParameterError("incidence", o.Incidence, "must be strictly positive")
	}
	return nil
}

// ============================================================================
// EVALUATION RESULTS
// ============================================================================

// EvaluationResult holds the shared cross-model metrics. Pure value,
// recomputed per comparison; no shared mutable state across models.
type EvaluationResult struct {
	Brier          float64 `json:"brier"`           // Calibration: MSE at age checkpoints
	TimeAUC        float64 `json:"time_auc"`        // Discrimination: time-dependent AUC in [0,1]
	NLL            float64 `json:"nll"`             // Fit: negative log-likelihood
	AIC            float64 `json:"aic"`             // Fit: 2k + 2*NLL
	ParameterCount int     `json:"parameter_count"` // k used in the AIC penalty
}

// ModelScore ranks one model's evaluation within a comparison.
type ModelScore struct {
	Model      string           `json:"model"`
	Evaluation EvaluationResult `json:"evaluation"`
	Rank       int              `json:"rank"` // 1 = best (lowest AIC)
}

// ComparisonManifest captures the audit metadata of a comparison run.
type ComparisonManifest struct {
	RunID          core.RunID     `json:"run_id"`
	Seed           int64          `json:"seed"`
	ModelsCompared []string       `json:"models_compared"`
	RankedBy       string         `json:"ranked_by"`
	RuntimeMs      int64          `json:"runtime_ms"`
	Fingerprint    core.Hash      `json:"fingerprint"`
	CreatedAt      core.Timestamp `json:"created_at"`
}
