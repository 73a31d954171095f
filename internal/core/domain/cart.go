package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MeasurementUnit string

const (
	UnitByWeight MeasurementUnit = "weight"
	UnitByCount  MeasurementUnit = "count"
)

type CartLine struct {
	ID           string          `json:"id"`
	CategoryID   string          `json:"category_id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"image_url"`
	RewardPoints decimal.Decimal `json:"reward_points"`
	Price        decimal.Decimal `json:"price"`
	Unit         MeasurementUnit `json:"unit"`
	Quantity     float64         `json:"quantity"`
	AddedAt      time.Time       `json:"added_at"`
}

var weightHints = []string{"kg", "kilo", "weight", "paper", "plastic", "metal", "glass", "scrap"}

// GuessUnit infers a measurement unit from a category label when a line
// arrives without one. Weight-sounding labels map to UnitByWeight, everything
// else counts by piece.
func GuessUnit(label string) MeasurementUnit {
	l := strings.ToLower(label)
	for _, hint := range weightHints {
		if strings.Contains(l, hint) {
			return UnitByWeight
		}
	}
	return UnitByCount
}
