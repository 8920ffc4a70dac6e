// Package scoring turns raw market metrics and event confidence into a
// composite score and a suggested position size. It is pure: no I/O, no
// clock, no shared state.
package scoring

import (
	"math"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// Weights are the per-metric contributions to the raw score. They sum to 1.
type Weights struct {
	Quality      float64
	Sentiment    float64
	SocialGrowth float64
	Momentum     float64
	Rank         float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Quality:      0.30,
		Sentiment:    0.25,
		SocialGrowth: 0.20,
		Momentum:     0.15,
		Rank:         0.10,
	}
}

const (
	// marketBlend is the share of the final score taken from market metrics;
	// the rest comes from event confidence.
	marketBlend = 0.6
	maxSizePct  = 10.0
)

// Engine computes composite scores. The zero value is not usable; call New.
type Engine struct {
	weights      Weights
	quality      curve
	sentiment    curve
	socialGrowth curve
	momentum     curve
	rank         curve
}

// New creates an Engine with the given weights and the standard breakpoint
// tables.
func New(w Weights) *Engine {
	return &Engine{
		weights:      w,
		quality:      qualityCurve,
		sentiment:    sentimentCurve,
		socialGrowth: socialGrowthCurve,
		momentum:     momentumCurve,
		rank:         rankCurve,
	}
}

// Score computes the composite score for m at the given event confidence.
// confidence is clamped to [0,1].
func (e *Engine) Score(m domain.MarketMetrics, confidence float64) domain.CompositeScore {
	confidence = clamp(confidence, 0, 1)

	var s domain.CompositeScore
	if m.Available {
		s.Quality = e.quality.at(m.Quality)
		s.Sentiment = e.sentiment.at(m.Sentiment)
		s.SocialGrowth = e.socialGrowth.at(m.SocialGrowth)
		s.Momentum = e.momentum.at(m.Momentum)
		if m.Rank > 0 {
			s.Rank = e.rank.at(float64(m.Rank))
		}
	}

	s.Raw = e.weights.Quality*s.Quality +
		e.weights.Sentiment*s.Sentiment +
		e.weights.SocialGrowth*s.SocialGrowth +
		e.weights.Momentum*s.Momentum +
		e.weights.Rank*s.Rank

	s.Final = clamp(marketBlend*s.Raw+(1-marketBlend)*(2*confidence-1), -1, 1)
	s.ConfidenceMultiplier = ConfidenceMultiplier(confidence)
	s.Tier = tierFor(s.Final)

	if s.Final <= 0 {
		return s
	}
	s.Tradeable = true
	s.PositionSizePct = math.Min(s.Final*s.Final*maxSizePct*s.ConfidenceMultiplier, maxSizePct)
	return s
}

// ConfidenceMultiplier scales position size by event confidence tier.
func ConfidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence < 0.3:
		return 0.5
	case confidence < 0.5:
		return 0.75
	case confidence < 0.7:
		return 1.0
	case confidence < 0.9:
		return 1.25
	default:
		return 1.5
	}
}

func tierFor(final float64) domain.ScoreTier {
	switch {
	case final >= 0.6:
		return domain.TierStrong
	case final >= 0.3:
		return domain.TierModerate
	case final > 0:
		return domain.TierWeak
	default:
		return domain.TierNoTrade
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
