package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/mrcode/promille/internal/errors"
)

// EthanolDensity is the canonical density of ethanol in g/ml
const EthanolDensity = 0.789

// DrinkEvent is a single drink consumed at a point in time
type DrinkEvent struct {
	Name   string    `json:"name" yaml:"name"`
	Volume float64   `json:"volume" yaml:"volume" validate:"gt=0"`     // ml
	ABV    float64   `json:"abv" yaml:"abv" validate:"gte=0,lte=100"` // percent
	Time   time.Time `json:"time" yaml:"time"`
}

// AlcoholGrams returns the mass of ethanol in the drink
func (d *DrinkEvent) AlcoholGrams() float64 {
	return d.Volume * (d.ABV / 100) * EthanolDensity
}

// Validate checks the field ranges of the drink
func (d *DrinkEvent) Validate() error {
	if d.Time.IsZero() {
		return apperrors.NewInvalidInputError(fmt.Errorf("consumption time is required"), "drink")
	}
	return validateStruct(d, "drink")
}

// SortedDrinks returns a chronologically sorted copy of the drinks
func SortedDrinks(drinks []DrinkEvent) []DrinkEvent {
	sorted := make([]DrinkEvent, len(drinks))
	copy(sorted, drinks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// TotalAlcoholGrams sums the ethanol mass of all drinks
func TotalAlcoholGrams(drinks []DrinkEvent) float64 {
	return lo.SumBy(drinks, func(d DrinkEvent) float64 {
		return d.AlcoholGrams()
	})
}
