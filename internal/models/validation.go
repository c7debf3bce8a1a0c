package models

import "time"

// MeasurementMethod is the laboratory method used to measure a BAC
type MeasurementMethod string

const (
	MethodGCFID     MeasurementMethod = "gc_fid"
	MethodEnzymatic MeasurementMethod = "enzymatic_adh"
	MethodHeadspace MeasurementMethod = "headspace_gc"
	MethodLCMSMS    MeasurementMethod = "lc_ms_ms"
	MethodOther     MeasurementMethod = "other"
)

// Classification of a measured value against one model's prediction
type Classification string

const (
	Consistent   Classification = "consistent"
	Borderline   Classification = "borderline"
	Inconsistent Classification = "inconsistent"
)

// Direction of an inconsistent measurement
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionTooLow  Direction = "too_low"
	DirectionTooHigh Direction = "too_high"
)

// Aggregate is the overall conclusion across all evaluated models
type Aggregate string

const (
	AggregatePlausible       Aggregate = "plausible"
	AggregateMostLikelyFalse Aggregate = "most_likely_false"
	AggregateUncertain       Aggregate = "uncertain"
	AggregateNotAssessable   Aggregate = "not_assessable"
)

// Interval is a symmetric confidence band around a prediction
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the closed interval
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// ModelValidation is one row of a validation report
type ModelValidation struct {
	Model ModelID `json:"model"`

	PredictedBAC      float64 `json:"predictedBac"`
	MeasuredBAC       float64 `json:"measuredBac"`
	AbsoluteDeviation float64 `json:"absoluteDeviation"`
	RelativeDeviation float64 `json:"relativeDeviation"` // percent of predicted

	AnalyticalUncertainty float64 `json:"analyticalUncertainty"`
	ModelUncertainty      float64 `json:"modelUncertainty"`
	CombinedUncertainty   float64 `json:"combinedUncertainty"`

	CI95 Interval `json:"ci95"`
	CI99 Interval `json:"ci99"`

	Classification Classification `json:"classification,omitempty"`
	Direction      Direction      `json:"direction,omitempty"`

	// Set when the row could not be evaluated
	Error string `json:"error,omitempty"`
}

// Evaluated reports whether the row carries a classification
func (m *ModelValidation) Evaluated() bool {
	return m.Error == ""
}

// ValidationReport compares one measured BAC with the predicted curves
type ValidationReport struct {
	ID                    string            `json:"id"`
	MeasuredAt            time.Time         `json:"measuredAt"`
	MeasuredBAC           float64           `json:"measuredBac"`
	Method                MeasurementMethod `json:"method"`
	AnalyticalUncertainty float64           `json:"analyticalUncertainty"`
	Rows                  []ModelValidation `json:"rows"`

	Counts    map[Classification]int `json:"counts"`
	Evaluated int                    `json:"evaluated"`
	Aggregate Aggregate              `json:"aggregate"`
	CreatedAt time.Time              `json:"createdAt"`
}
