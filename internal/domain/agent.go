package domain

import "time"

// AgentClass controls how the decision oracle frames event confidence.
type AgentClass string

const (
	AgentClassLowConfidenceTolerant AgentClass = "LOW_CONFIDENCE_TOLERANT"
	AgentClassConfidenceCritical    AgentClass = "CONFIDENCE_CRITICAL"
)

// Agent is a trading agent definition subscribed to a set of sources.
type Agent struct {
	ID        string
	Name      string
	Class     AgentClass
	Active    bool
	SourceIDs []string
	CreatedAt time.Time
}

// LowConfidenceTolerant reports whether the agent trades on low-confidence events.
func (a Agent) LowConfidenceTolerant() bool {
	return a.Class == AgentClassLowConfidenceTolerant
}

// DeploymentStatus is the lifecycle state of a user deployment.
type DeploymentStatus string

const (
	DeploymentActive    DeploymentStatus = "ACTIVE"
	DeploymentPaused    DeploymentStatus = "PAUSED"
	DeploymentCancelled DeploymentStatus = "CANCELLED"
)

// VenueMode selects between a fixed venue and a prioritized list.
type VenueMode string

const (
	VenueModeSingle VenueMode = "single"
	VenueModeMulti  VenueMode = "multi"
)

// VenueConfig is a deployment's venue selection.
type VenueConfig struct {
	Mode     VenueMode
	Priority []Venue
}

// Venues returns the venues to consult in order. Single mode only ever
// consults the first entry.
func (v VenueConfig) Venues() []Venue {
	if len(v.Priority) == 0 {
		return nil
	}
	if v.Mode == VenueModeMulti {
		return v.Priority
	}
	return v.Priority[:1]
}

// Preferences is the user's trading preference vector. Each value is 0-100.
type Preferences struct {
	RiskTolerance   int `json:"riskTolerance"`
	TradeFrequency  int `json:"tradeFrequency"`
	SentimentWeight int `json:"sentimentWeight"`
	MomentumFocus   int `json:"momentumFocus"`
	RankPriority    int `json:"rankPriority"`
}

// DefaultPreferences returns the neutral preference vector.
func DefaultPreferences() Preferences {
	return Preferences{
		RiskTolerance:   50,
		TradeFrequency:  50,
		SentimentWeight: 50,
		MomentumFocus:   50,
		RankPriority:    50,
	}
}

// Deployment binds an agent to a user wallet. The engine never mutates it.
type Deployment struct {
	ID          string
	AgentID     string
	UserWallet  string
	Venue       VenueConfig
	Preferences Preferences
	Status      DeploymentStatus
	CreatedAt   time.Time
}
