package fare

import (
	"math"
	"strings"
)

const (
	AirportBase = 500.0
	StationBase = 250.0
	// DefaultBase covers both the "near" and "far" city tiers: without a
	// distance source every other location is priced as far.
	DefaultBase = 500.0

	PremiumMultiplier = 1.5
	TaxMultiplier     = 1.18

	PremiumVehicleType = "suv"
)

type Tier string

const (
	TierAirport Tier = "airport"
	TierStation Tier = "station"
	TierCity    Tier = "city"
)

var stationPhrases = []string{"railway station", "station", "junction", "madan mahal"}

// Breakdown is the itemised estimate shown next to the booking form.
type Breakdown struct {
	Tier       Tier    `json:"tier"`
	Base       float64 `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Tax        float64 `json:"tax"`
	Total      int     `json:"total"`
}

// Estimate returns the fare for a pickup location and vehicle type, tax
// included, rounded to the nearest currency unit.
func Estimate(location, vehicleType string) int {
	return Explain(location, vehicleType).Total
}

func Explain(location, vehicleType string) Breakdown {
	tier, base := Classify(location)
	mult := 1.0
	if IsPremium(vehicleType) {
		mult = PremiumMultiplier
	}
	pre := base * mult
	total := pre * TaxMultiplier
	return Breakdown{
		Tier:       tier,
		Base:       base,
		Multiplier: mult,
		Tax:        math.Round((total-pre)*100) / 100,
		Total:      int(math.Round(total)),
	}
}

// Classify picks the pricing tier, airport first.
func Classify(location string) (Tier, float64) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if strings.Contains(loc, "airport") {
		return TierAirport, AirportBase
	}
	for _, p := range stationPhrases {
		if strings.Contains(loc, p) {
			return TierStation, StationBase
		}
	}
	return TierCity, DefaultBase
}

func IsPremium(vehicleType string) bool {
	return strings.EqualFold(strings.TrimSpace(vehicleType), PremiumVehicleType)
}
