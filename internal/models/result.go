package models

import (
	"sort"
	"time"
)

// BACPoint is one sample of a BAC curve
type BACPoint struct {
	Time time.Time `json:"time"`
	BAC  float64   `json:"bac"` // ‰
}

// DrinkContribution describes the curve one drink adds under one model.
// It is created per computation and never modified afterwards.
type DrinkContribution struct {
	DrinkName          string        `json:"drinkName"`
	AlcoholGrams       float64       `json:"alcoholGrams"`
	ConsumedAt         time.Time     `json:"consumedAt"`
	PeakBAC            float64       `json:"peakBac"`
	PeakTime           time.Time     `json:"peakTime"`
	ResorptionDuration time.Duration `json:"resorptionDuration"`

	// Contribution at the evaluation instant of the run
	CurrentBAC float64 `json:"currentBac"`
}

// ModelResult contains the curve and summary values of one model
type ModelResult struct {
	Model ModelID `json:"model"`

	PeakBAC    float64   `json:"peakBac"`
	PeakTime   time.Time `json:"peakTime"`
	CurrentBAC float64   `json:"currentBac"`

	// First grid point at or after EvaluatedAt below the threshold, nil if never reached
	TimeTo05  *time.Time `json:"timeTo05,omitempty"`
	TimeTo005 *time.Time `json:"timeTo005,omitempty"`

	Series        []BACPoint          `json:"series"`
	Contributions []DrinkContribution `json:"contributions"`

	EliminationRate   float64   `json:"eliminationRate"` // ‰/h
	RFactor           float64   `json:"rFactor"`
	TotalAlcoholGrams float64   `json:"totalAlcoholGrams"`
	EvaluatedAt       time.Time `json:"evaluatedAt"`
}

// ResultMap holds one result per successfully computed model.
// Maps handed out by the engine are shared with its cache and must be treated as read-only.
type ResultMap map[ModelID]*ModelResult

// Models returns the model ids present in the map in a stable order
func (r ResultMap) Models() []ModelID {
	ids := make([]ModelID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MaxCurrentBAC returns the highest current BAC across models
func (r ResultMap) MaxCurrentBAC() (ModelID, float64) {
	var (
		best  ModelID
		value float64
	)
	for _, id := range r.Models() {
		if res := r[id]; res.CurrentBAC > value || best == "" {
			best, value = id, res.CurrentBAC
		}
	}
	return best, value
}
