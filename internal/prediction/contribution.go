package prediction

import (
	"math"
	"time"

	"github.com/mrcode/promille/internal/models"
)

// Phase of a single drink's contribution at a point in time
type Phase int

const (
	PhasePreConsumption Phase = iota
	PhaseResorption
	PhaseElimination
)

func (p Phase) String() string {
	switch p {
	case PhasePreConsumption:
		return "pre_consumption"
	case PhaseResorption:
		return "resorption"
	case PhaseElimination:
		return "elimination"
	default:
		return "unknown"
	}
}

// Contribution is the curve one drink adds under one model's parameters
type Contribution struct {
	models.DrinkContribution
	EliminationRate float64
}

// NewContribution builds the contribution of drink for a subject of the given weight
func NewContribution(
	drink models.DrinkEvent,
	params Parameters,
	weight float64,
	settings *models.CalculationSettings,
) Contribution {
	grams := drink.AlcoholGrams()

	deficit := 0.0
	if settings != nil {
		deficit = settings.ResorptionDeficit
	}
	effective := grams * (1 - deficit/100)

	duration := ResorptionDuration(grams, settings)

	return Contribution{
		DrinkContribution: models.DrinkContribution{
			DrinkName:          drink.Name,
			AlcoholGrams:       grams,
			ConsumedAt:         drink.Time,
			PeakBAC:            effective / (weight * params.R),
			PeakTime:           drink.Time.Add(duration),
			ResorptionDuration: duration,
		},
		EliminationRate: params.EliminationRate,
	}
}

// ResorptionDuration returns how long a drink of the given mass takes to be resorbed
func ResorptionDuration(grams float64, settings *models.CalculationSettings) time.Duration {
	mode := models.ResorptionAuto
	meal := models.MealFasting
	if settings != nil {
		if settings.ResorptionMode != "" {
			mode = settings.ResorptionMode
		}
		if settings.MealStatus != "" {
			meal = settings.MealStatus
		}
	}

	if d, ok := resorptionByMode[mode]; ok {
		return d
	}

	var d time.Duration
	switch {
	case grams <= smallDrinkGrams:
		d = smallDrinkResorption
	case grams <= mediumDrinkGrams:
		d = mediumDrinkResorption
	default:
		d = largeDrinkResorption
	}

	if minimum, ok := resorptionByMeal[meal]; ok && minimum > d {
		d = minimum
	}
	return d
}

// PhaseAt returns the phase of the contribution at t
func (c *Contribution) PhaseAt(t time.Time) Phase {
	switch {
	case t.Before(c.ConsumedAt):
		return PhasePreConsumption
	case !t.After(c.PeakTime):
		return PhaseResorption
	default:
		return PhaseElimination
	}
}

// At returns the BAC contribution in ‰ at t
func (c *Contribution) At(t time.Time) float64 {
	switch c.PhaseAt(t) {
	case PhasePreConsumption:
		return 0
	case PhaseResorption:
		if c.ResorptionDuration <= 0 {
			return c.PeakBAC
		}
		progress := float64(t.Sub(c.ConsumedAt)) / float64(c.ResorptionDuration)
		return c.PeakBAC * math.Max(0, math.Min(1, progress))
	default:
		hours := t.Sub(c.PeakTime).Hours()
		return math.Max(0, c.PeakBAC-c.EliminationRate*hours)
	}
}

// Record returns the contribution record with its value at the evaluation instant
func (c *Contribution) Record(now time.Time) models.DrinkContribution {
	rec := c.DrinkContribution
	rec.CurrentBAC = c.At(now)
	return rec
}
