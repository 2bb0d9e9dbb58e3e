// Package skill computes deterministic entrant skill and head-to-head win
// probabilities.
package skill

import (
	"math"

	"github.com/okian/arena/internal/domain/model"
)

// Default model parameters.
const (
	DefaultWeightCoefficient = 1.0
	DefaultReachBaseline     = 70.0
	DefaultReachCoefficient  = 0.5
	DefaultPrimeStart        = 25
	DefaultPrimeEnd          = 35
	DefaultYoungPenalty      = -1.0
	DefaultVeteranPenalty    = -2.0
	DefaultNormalizer        = 20.0
	MinProbability           = 0.001
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithWeightCoefficient sets the per-pound contribution. Non-positive values
// are ignored so skill stays monotonic in weight.
func WithWeightCoefficient(c float64) Option {
	return func(m *Model) {
		if c > 0 && !math.IsInf(c, 0) {
			m.weightCoefficient = c
		}
	}
}

// WithReach sets the reach baseline and the bonus per unit above it.
func WithReach(baseline, coefficient float64) Option {
	return func(m *Model) {
		if coefficient >= 0 {
			m.reachBaseline = baseline
			m.reachCoefficient = coefficient
		}
	}
}

// WithPrimeBand sets the inclusive age band with no adjustment.
func WithPrimeBand(start, end int) Option {
	return func(m *Model) {
		if start <= end {
			m.primeStart = start
			m.primeEnd = end
		}
	}
}

// WithAgePenalties sets the adjustments below and above the prime band.
func WithAgePenalties(young, veteran float64) Option {
	return func(m *Model) {
		m.youngPenalty = young
		m.veteranPenalty = veteran
	}
}

// WithNormalizer sets the logistic scale. Non-positive values are ignored.
func WithNormalizer(n float64) Option {
	return func(m *Model) {
		if n > 0 && !math.IsInf(n, 0) {
			m.normalizer = n
		}
	}
}

// Model is an immutable skill function. Safe for concurrent use.
type Model struct {
	weightCoefficient float64
	reachBaseline     float64
	reachCoefficient  float64
	primeStart        int
	primeEnd          int
	youngPenalty      float64
	veteranPenalty    float64
	normalizer        float64
}

// New creates a Model with defaults overridden by opts.
func New(opts ...Option) *Model {
	m := &Model{
		weightCoefficient: DefaultWeightCoefficient,
		reachBaseline:     DefaultReachBaseline,
		reachCoefficient:  DefaultReachCoefficient,
		primeStart:        DefaultPrimeStart,
		primeEnd:          DefaultPrimeEnd,
		youngPenalty:      DefaultYoungPenalty,
		veteranPenalty:    DefaultVeteranPenalty,
		normalizer:        DefaultNormalizer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Skill returns weight*coefficient plus the reach bonus and the age adjustment.
func (m *Model) Skill(e model.Entrant) float64 {
	s := float64(e.Weight) * m.weightCoefficient
	s += math.Max(0, e.Reach-m.reachBaseline) * m.reachCoefficient
	switch {
	case e.Age < m.primeStart:
		s += m.youngPenalty
	case e.Age > m.primeEnd:
		s += m.veteranPenalty
	}
	return s
}

// Classify returns the entrant's weight class.
func (m *Model) Classify(e model.Entrant) model.WeightClass {
	return model.ClassifyWeight(e.Weight)
}

// WinProbability returns the logistic probability that a side with skill a
// beats a side with skill b, clamped to [MinProbability, 1-MinProbability].
func (m *Model) WinProbability(a, b float64) float64 {
	p := 1 / (1 + math.Exp(-(a-b)/m.normalizer))
	return math.Min(1-MinProbability, math.Max(MinProbability, p))
}

// Normalizer returns the logistic scale in use.
func (m *Model) Normalizer() float64 {
	return m.normalizer
}
