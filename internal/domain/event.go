package domain

import (
	"strings"
	"time"
)

// Direction is the directional hint attached to a classified event.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// DefaultImpactFactor is used when a source has no impact factor recorded.
const DefaultImpactFactor = 50

// Side returns the position side implied by the direction, or "" for NEUTRAL.
func (d Direction) Side() Side {
	switch d {
	case DirectionLong:
		return SideLong
	case DirectionShort:
		return SideShort
	default:
		return ""
	}
}

// Source is an alpha channel or influencer whose posts become events.
type Source struct {
	ID           string
	Handle       string
	ImpactFactor int
}

// Event is a classified social-media post. Events are immutable once
// classified; the trigger only flips Processed.
type Event struct {
	ID           string
	SourceID     string
	Text         string
	Tokens       []string
	Direction    Direction
	Confidence   float64
	ImpactFactor int
	// CloseIntent marks an explicit exit call ("take profit on X").
	CloseIntent bool
	Processed   bool
	CreatedAt   time.Time
}

// NormalizeToken upper-cases and trims a token symbol and strips a leading "$".
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(token), "$"))
}
