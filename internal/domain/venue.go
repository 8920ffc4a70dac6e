package domain

import "strings"

// Venue identifies an external trading venue.
type Venue string

const (
	VenueHyperliquid Venue = "HYPERLIQUID"
	VenueOstium      Venue = "OSTIUM"
	VenueAster       Venue = "ASTER"
)

// MaxLeverageCap is the hard upper bound on leverage regardless of venue.
const MaxLeverageCap = 50

// ParseVenue maps a case-insensitive venue name to a Venue.
func ParseVenue(s string) (Venue, error) {
	switch Venue(strings.ToUpper(strings.TrimSpace(s))) {
	case VenueHyperliquid:
		return VenueHyperliquid, nil
	case VenueOstium:
		return VenueOstium, nil
	case VenueAster:
		return VenueAster, nil
	}
	return "", ErrUnknownVenue
}

// VenueMarket is a tradeable market listing on a venue.
type VenueMarket struct {
	Venue       Venue  `json:"venue"`
	Token       string `json:"token"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	MaxLeverage int    `json:"maxLeverage"`
}

// Resolution is the output of venue resolution for one (deployment, token).
type Resolution struct {
	Available   bool
	Venue       Venue
	Token       string
	MaxLeverage int
	Reason      string
}
