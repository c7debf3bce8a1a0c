package prediction

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/promille/internal/models"
)

// GridPolicy defines the time grid a curve is sampled on
type GridPolicy struct {
	LeadIn         time.Duration // before the first drink
	Step           time.Duration
	AfterNow       time.Duration
	AfterLastDrink time.Duration
	SoberMargin    time.Duration // after the last drink before stopping early
	SoberBAC       float64
}

// DefaultGridPolicy returns the standard 10-minute grid
func DefaultGridPolicy() GridPolicy {
	return GridPolicy{
		LeadIn:         GridLeadIn,
		Step:           GridStep,
		AfterNow:       GridAfterNow,
		AfterLastDrink: GridAfterLastDrink,
		SoberMargin:    GridSoberMargin,
		SoberBAC:       GridSoberBAC,
	}
}

// Synthesize samples the superposed contributions starting LeadIn before the first drink.
// The series ends at the later of now+AfterNow and last+AfterLastDrink, or at the
// first point past last+SoberMargin where the total has fallen to SoberBAC.
func Synthesize(contributions []Contribution, now time.Time, policy GridPolicy) []models.BACPoint {
	if len(contributions) == 0 || policy.Step <= 0 {
		return nil
	}

	first := lo.MinBy(contributions, func(a, b Contribution) bool {
		return a.ConsumedAt.Before(b.ConsumedAt)
	}).ConsumedAt
	last := lo.MaxBy(contributions, func(a, b Contribution) bool {
		return a.ConsumedAt.After(b.ConsumedAt)
	}).ConsumedAt

	start := first.Add(-policy.LeadIn)
	end := now.Add(policy.AfterNow)
	if e := last.Add(policy.AfterLastDrink); e.After(end) {
		end = e
	}
	soberAfter := last.Add(policy.SoberMargin)

	var series []models.BACPoint
	for t := start; !t.After(end); t = t.Add(policy.Step) {
		bac := TotalAt(contributions, t)
		series = append(series, models.BACPoint{Time: t, BAC: bac})

		if bac <= policy.SoberBAC && t.After(soberAfter) {
			break
		}
	}

	return slices.Clip(series)
}

// TotalAt returns the superposed BAC of all contributions at t
func TotalAt(contributions []Contribution, t time.Time) float64 {
	var total float64
	for i := range contributions {
		total += contributions[i].At(t)
	}
	return total
}

// peakOf returns the highest point of the series, the first one on ties
func peakOf(series []models.BACPoint) models.BACPoint {
	var peak models.BACPoint
	for i, p := range series {
		if i == 0 || p.BAC > peak.BAC {
			peak = p
		}
	}
	return peak
}

// valueAtOrBefore returns the BAC of the last grid point not after t
func valueAtOrBefore(series []models.BACPoint, t time.Time) float64 {
	var bac float64
	for _, p := range series {
		if p.Time.After(t) {
			break
		}
		bac = p.BAC
	}
	return bac
}

// firstBelow returns the first grid point at or after t whose BAC is at or below threshold
func firstBelow(series []models.BACPoint, t time.Time, threshold float64) *time.Time {
	for _, p := range series {
		if p.Time.Before(t) {
			continue
		}
		if p.BAC <= threshold {
			at := p.Time
			return &at
		}
	}
	return nil
}
