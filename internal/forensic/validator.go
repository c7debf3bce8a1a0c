// Package forensic checks a measured BAC against the predicted curves
package forensic

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	apperrors "github.com/mrcode/promille/internal/errors"
	"github.com/mrcode/promille/internal/models"
)

// z-scores of the confidence bands
const (
	Z95 = 1.96
	Z99 = 2.576
)

// Share of rows needed for a plausible or most-likely-false conclusion
const aggregateShare = 0.75

// Inter-individual variability per model, relative to the predicted value
var modelUncertainty = map[models.ModelID]float64{
	models.Widmark: 0.25,
	models.Watson:  0.20,
	models.Forrest: 0.23,
	models.Seidl:   0.18,
}

const defaultModelUncertainty = 0.25

// Analytical uncertainty in ‰ per laboratory method
var methodUncertainty = map[models.MeasurementMethod]float64{
	models.MethodGCFID:     0.002,
	models.MethodEnzymatic: 0.005,
	models.MethodHeadspace: 0.003,
	models.MethodLCMSMS:    0.002,
	models.MethodOther:     0.010,
}

const defaultMethodUncertainty = 0.010

// MethodUncertainty returns the analytical uncertainty of a measurement method
func MethodUncertainty(method models.MeasurementMethod) float64 {
	if u, ok := methodUncertainty[method]; ok {
		return u
	}
	return defaultMethodUncertainty
}

// ModelUncertainty returns the relative inter-individual uncertainty of a model
func ModelUncertainty(model models.ModelID) float64 {
	if u, ok := modelUncertainty[model]; ok {
		return u
	}
	return defaultModelUncertainty
}

// RowObserver is notified of each classified row
type RowObserver interface {
	ValidationRow(classification string)
}

// Validator builds validation reports from computed results
type Validator struct {
	logger   *slog.Logger
	observer RowObserver
	now      func() time.Time
}

// NewValidator creates a validator; a nil logger uses slog.Default
func NewValidator(logger *slog.Logger, observer RowObserver) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger, observer: observer, now: time.Now}
}

// Validate compares measured at time at against model's curve, or against
// every model in results when model is empty. A model without a usable curve
// gets an error row; it does not fail the report.
func (v *Validator) Validate(
	results models.ResultMap,
	model models.ModelID,
	at time.Time,
	measured float64,
	method models.MeasurementMethod,
) (*models.ValidationReport, error) {
	if measured <= 0 || math.IsNaN(measured) || math.IsInf(measured, 0) {
		return nil, apperrors.NewInvalidMeasurementError(
			fmt.Sprintf("measured BAC must be positive, got %v", measured))
	}

	var ids []models.ModelID
	if model == "" {
		if len(results) == 0 {
			return nil, apperrors.ErrNoResults
		}
		ids = results.Models()
	} else {
		if !lo.Contains(models.AllModels(), model) {
			return nil, apperrors.NewUnknownModelError(string(model))
		}
		ids = []models.ModelID{model}
	}

	analytical := MethodUncertainty(method)
	report := &models.ValidationReport{
		ID:                    uuid.NewString(),
		MeasuredAt:            at,
		MeasuredBAC:           measured,
		Method:                method,
		AnalyticalUncertainty: analytical,
		Rows:                  make([]models.ModelValidation, 0, len(ids)),
		Counts: map[models.Classification]int{
			models.Consistent:   0,
			models.Borderline:   0,
			models.Inconsistent: 0,
		},
		CreatedAt: v.now(),
	}

	for _, id := range ids {
		row := v.evaluate(results[id], id, at, measured, analytical)
		report.Rows = append(report.Rows, row)

		if !row.Evaluated() {
			v.logger.Warn("Validation row skipped", "model", id, "reason", row.Error)
			continue
		}
		report.Counts[row.Classification]++
		report.Evaluated++
		if v.observer != nil {
			v.observer.ValidationRow(string(row.Classification))
		}
	}

	report.Aggregate = Aggregate(report.Counts, report.Evaluated)

	v.logger.Debug("Validation finished",
		"report_id", report.ID,
		"evaluated", report.Evaluated,
		"aggregate", report.Aggregate,
	)

	return report, nil
}

func (v *Validator) evaluate(
	result *models.ModelResult,
	model models.ModelID,
	at time.Time,
	measured float64,
	analytical float64,
) models.ModelValidation {
	row := models.ModelValidation{
		Model:                 model,
		MeasuredBAC:           measured,
		AnalyticalUncertainty: analytical,
	}

	if result == nil {
		row.Error = apperrors.NewInvalidMeasurementError("no predicted curve for model").Message
		return row
	}

	predicted, ok := InterpolateAt(result.Series, at)
	if !ok {
		row.Error = apperrors.NewInvalidMeasurementError("predicted curve has no data at measurement time").Message
		return row
	}

	row.PredictedBAC = predicted
	row.ModelUncertainty = predicted * ModelUncertainty(model)
	row.CombinedUncertainty = math.Sqrt(analytical*analytical + row.ModelUncertainty*row.ModelUncertainty)
	row.CI95 = Band(predicted, row.CombinedUncertainty, Z95)
	row.CI99 = Band(predicted, row.CombinedUncertainty, Z99)

	row.AbsoluteDeviation = math.Abs(measured - predicted)
	if predicted > 0 {
		row.RelativeDeviation = row.AbsoluteDeviation / predicted * 100
	}

	row.Classification, row.Direction = Classify(measured, row.CI95, row.CI99)
	return row
}

// Band returns predicted ± z·combined
func Band(predicted, combined, z float64) models.Interval {
	return models.Interval{
		Lower: predicted - z*combined,
		Upper: predicted + z*combined,
	}
}

// Classify places measured relative to the 99% and 95% bands.
// Inside the 99% band is consistent, inside only the 95% band is borderline.
func Classify(measured float64, ci95, ci99 models.Interval) (models.Classification, models.Direction) {
	switch {
	case ci99.Contains(measured):
		return models.Consistent, models.DirectionNone
	case ci95.Contains(measured):
		return models.Borderline, models.DirectionNone
	case measured < ci95.Lower:
		return models.Inconsistent, models.DirectionTooLow
	default:
		return models.Inconsistent, models.DirectionTooHigh
	}
}

// Aggregate concludes over all evaluated rows
func Aggregate(counts map[models.Classification]int, evaluated int) models.Aggregate {
	if evaluated == 0 {
		return models.AggregateNotAssessable
	}

	threshold := float64(evaluated) * aggregateShare
	switch {
	case float64(counts[models.Consistent]) >= threshold:
		return models.AggregatePlausible
	case float64(counts[models.Inconsistent]) >= threshold:
		return models.AggregateMostLikelyFalse
	default:
		return models.AggregateUncertain
	}
}
