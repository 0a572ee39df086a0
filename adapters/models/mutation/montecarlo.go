package mutation

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Approximation selects the per-clone division process.
type Approximation string

const (
	// ApproxPoisson draws the division index of each driver hit from a
	// Poisson process with rate p_eff per division. Valid when p_eff is
	// small and N large (n*p_eff moderate); the default.
	ApproxPoisson Approximation = "poisson"

	// ApproxBernoulli treats every division as an independent
	// Bernoulli(p_eff) trial, realized through geometric waiting times.
	// Exact; used to check the Poisson limit.
	ApproxBernoulli Approximation = "bernoulli"
)

// MonteCarloConfig sizes the clone-level simulation. The reference scale
// is 1e6 simulated clones over ages 0-80.
type MonteCarloConfig struct {
	Clones        int           // simulated clones; defaults to 1e6
	ChunkSize     int           // clones per worker chunk
	Workers       int           // concurrent chunks; defaults to GOMAXPROCS
	Approximation Approximation // defaults to ApproxPoisson
}

func (c MonteCarloConfig) withDefaults() MonteCarloConfig {
	if c.Clones <= 0 {
		c.Clones = 1_000_000
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100_000
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Approximation == "" {
		c.Approximation = ApproxPoisson
	}
	return c
}

// predictMonteCarlo estimates the per-clone malignancy fraction by
// simulation, then applies the independent-clone OR combination across the
// configured M clones. Chunks are independent; each draws from its own
// named stream so results do not depend on scheduling order.
func (m *Model) predictMonteCarlo(ages []float64) ([]float64, error) {
	// Per-age completed-division budgets.
	budgets := make([]float64, len(ages))
	for i, age := range ages {
		budgets[i] = math.Floor(age * m.params.DivisionsPerYear)
	}

	numChunks := (m.mc.Clones + m.mc.ChunkSize - 1) / m.mc.ChunkSize
	chunkCounts := make([][]float64, numChunks)

	var g errgroup.Group
	g.SetLimit(m.mc.Workers)
	for chunk := 0; chunk < numChunks; chunk++ {
		chunk := chunk
		start := chunk * m.mc.ChunkSize
		size := m.mc.ChunkSize
		if start+size > m.mc.Clones {
			size = m.mc.Clones - start
		}

		g.Go(func() error {
			stream := m.rand.Stream(fmt.Sprintf("mutation-mc-chunk-%d", chunk), m.seed)
			chunkCounts[chunk] = m.simulateChunk(stream, size, budgets)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Elementwise reduction across chunks.
	counts := make([]float64, len(ages))
	for _, c := range chunkCounts {
		floats.Add(counts, c)
	}

	out := make([]float64, len(ages))
	for i := range counts {
		pClone := counts[i] / float64(m.mc.Clones)
		out[i] = combineClones(pClone, m.params.M)
	}
	return out, nil
}

// simulateChunk simulates size clones and returns, per age, how many
// reached the clonal threshold within that age's division budget.
func (m *Model) simulateChunk(stream *rand.Rand, size int, budgets []float64) []float64 {
	counts := make([]float64, len(budgets))
	baseP := m.params.EffectiveP()

	var lognorm distuv.LogNormal
	if m.params.Stochastic {
		lognorm = distuv.LogNormal{Mu: m.params.Mu, Sigma: m.params.Sigma}
	}

	for clone := 0; clone < size; clone++ {
		pEff := baseP
		if m.params.Stochastic {
			draw := lognorm.Quantile(stream.Float64())
			pEff = draw * (1 - m.params.RepairEfficiency)
			if pEff >= 1 {
				pEff = 1 - 1e-12
			}
			if pEff <= 0 {
				continue
			}
		}

		hitDivision := m.divisionOfFinalHit(stream, pEff)
		for i, budget := range budgets {
			if hitDivision <= budget {
				counts[i]++
			}
		}
	}
	return counts
}

// divisionOfFinalHit draws the division index at which the clone's
// cumulative driver hits first reach the clonal threshold.
func (m *Model) divisionOfFinalHit(stream *rand.Rand, pEff float64) float64 {
	division := 0.0
	for hit := 0; hit < m.params.ClonalThreshold; hit++ {
		u := stream.Float64()
		switch m.mc.Approximation {
		case ApproxBernoulli:
			// Geometric waiting time: trials until the next success,
			// at least one division per hit.
			w := math.Ceil(math.Log1p(-u) / math.Log1p(-pEff))
			if w < 1 {
				w = 1
			}
			division += w
		default:
			// Exponential inter-arrival with rate pEff per division.
			division += -math.Log(1-u) / pEff
		}
	}
	return division
}
