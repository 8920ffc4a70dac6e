package domain

// MarketMetrics are the raw inputs to the scoring engine for one token.
type MarketMetrics struct {
	Token        string  `json:"token"`
	Quality      float64 `json:"quality"`
	Sentiment    float64 `json:"sentiment"`
	SocialGrowth float64 `json:"socialGrowth"`
	Momentum     float64 `json:"momentum"`
	Rank         int     `json:"rank"`
	Available    bool    `json:"available"`
}

// ScoreTier is the qualitative label of a composite score.
type ScoreTier string

const (
	TierStrong   ScoreTier = "STRONG"
	TierModerate ScoreTier = "MODERATE"
	TierWeak     ScoreTier = "WEAK"
	TierNoTrade  ScoreTier = "NO_TRADE"
)

// CompositeScore is the scoring engine output.
type CompositeScore struct {
	Quality              float64   `json:"quality"`
	Sentiment            float64   `json:"sentiment"`
	SocialGrowth         float64   `json:"socialGrowth"`
	Momentum             float64   `json:"momentum"`
	Rank                 float64   `json:"rank"`
	Raw                  float64   `json:"raw"`
	Final                float64   `json:"final"`
	PositionSizePct      float64   `json:"positionSizePct"`
	ConfidenceMultiplier float64   `json:"confidenceMultiplier"`
	Tradeable            bool      `json:"tradeable"`
	Tier                 ScoreTier `json:"tier"`
}
