// Package rank orders battle participants by win/battle counters.
//
// Two estimators are computed for every qualifying record: a Bayesian
// shrinkage score pulled toward the global win rate, and the Wilson score
// interval lower bound. Wilson is authoritative for ordering; it is
// conservative for small samples and converges to the raw win rate as the
// sample grows, so records with very different battle counts compare
// fairly without a hand-tuned constant. The Bayesian score is kept as an
// auxiliary sanity figure and exposed alongside.
package rank

import (
	"math"
	"sort"
)

// Default ranking policy constants.
const (
	// DefaultMinBattles is the minimum sample size below which a record
	// is never ranked. Keeps a lucky 1-for-1 from outranking 50-for-60.
	DefaultMinBattles = 3

	// defaultConfidence is the Bayesian shrinkage constant C.
	defaultConfidence = 10

	// defaultZ is the normal quantile for a 95% Wilson interval.
	defaultZ = 1.96

	// defaultTieEpsilon treats Wilson scores closer than this as tied;
	// ties go to the record with more battles.
	defaultTieEpsilon = 0.001

	// fallbackGlobalWinRate is the shrinkage target when no record
	// qualifies.
	fallbackGlobalWinRate = 0.5
)

// Record is one rankable win/battle counter pair.
type Record struct {
	ID          string
	WinCount    int64
	BattleCount int64
}

// Scored is a ranked record with both estimators attached.
type Scored struct {
	Record
	WilsonScore float64
	BayesScore  float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMinBattles sets the minimum battle count for inclusion.
func WithMinBattles(n int64) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.minBattles = n
		}
	}
}

// WithConfidence sets the Bayesian shrinkage constant.
func WithConfidence(c float64) Option {
	return func(e *Engine) {
		if c > 0 {
			e.confidence = c
		}
	}
}

// WithZ sets the normal quantile used by the Wilson interval.
func WithZ(z float64) Option {
	return func(e *Engine) {
		if z > 0 {
			e.z = z
		}
	}
}

// Engine computes leaderboard orderings from raw counters. It is pure and
// stateless between calls; every ranking works on the snapshot it is
// handed.
type Engine struct {
	minBattles int64
	confidence float64
	z          float64
	tieEpsilon float64
}

// NewEngine creates an Engine with default policy, adjusted by options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		minBattles: DefaultMinBattles,
		confidence: defaultConfidence,
		z:          defaultZ,
		tieEpsilon: defaultTieEpsilon,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank returns up to topK records ordered best-first, plus any records
// excluded because their counters violate the win<=battle invariant.
// Corrupt records never make the engine fail; they are reported so a
// reconciliation pass can repair them.
func (e *Engine) Rank(records []Record, topK int) (ranked []Scored, corrupt []Record) {
	qualified := make([]Record, 0, len(records))
	for _, r := range records {
		switch {
		case r.WinCount < 0 || r.BattleCount < 0 || r.WinCount > r.BattleCount:
			corrupt = append(corrupt, r)
		case r.BattleCount < e.minBattles:
			// Insufficient sample; never ranked.
		default:
			qualified = append(qualified, r)
		}
	}
	if len(qualified) == 0 {
		return nil, corrupt
	}

	global := e.globalWinRate(qualified)
	ranked = make([]Scored, len(qualified))
	for i, r := range qualified {
		ranked[i] = Scored{
			Record:      r,
			WilsonScore: e.wilson(r),
			BayesScore:  e.bayes(r, global),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		di := ranked[i].WilsonScore - ranked[j].WilsonScore
		if math.Abs(di) < e.tieEpsilon {
			return ranked[i].BattleCount > ranked[j].BattleCount
		}
		return di > 0
	})

	if topK >= 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, corrupt
}

// globalWinRate is the shrinkage target: total wins over total battles
// across the qualified set.
func (e *Engine) globalWinRate(records []Record) float64 {
	var wins, battles int64
	for _, r := range records {
		wins += r.WinCount
		battles += r.BattleCount
	}
	if battles == 0 {
		return fallbackGlobalWinRate
	}
	return float64(wins) / float64(battles)
}

// bayes blends the observed win rate with the global rate, weighted by the
// confidence constant. Low-sample records are pulled toward the mean.
func (e *Engine) bayes(r Record, global float64) float64 {
	return (e.confidence*global + float64(r.WinCount)) / (e.confidence + float64(r.BattleCount))
}

// wilson computes the lower bound of the Wilson score interval for the
// record's win proportion.
func (e *Engine) wilson(r Record) float64 {
	n := float64(r.BattleCount)
	if n == 0 {
		return 0
	}
	p := float64(r.WinCount) / n
	z2 := e.z * e.z
	return (p + z2/(2*n) - e.z*math.Sqrt((p*(1-p)+z2/(4*n))/n)) / (1 + z2/n)
}
