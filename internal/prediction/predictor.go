// Package prediction provides the BAC models and curve synthesis
package prediction

import (
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/mrcode/promille/internal/errors"
	"github.com/mrcode/promille/internal/models"
)

// FailureObserver is notified when a single model is dropped from a run
type FailureObserver interface {
	ModelFailed(model models.ModelID)
}

// Predictor runs every selected model over the same inputs
type Predictor struct {
	resolver ParameterResolver
	policy   GridPolicy
	now      func() time.Time
	logger   *slog.Logger
	observer FailureObserver
}

// Option configures a Predictor
type Option func(*Predictor)

// WithNow sets the source of the evaluation instant
func WithNow(now func() time.Time) Option {
	return func(p *Predictor) { p.now = now }
}

// WithGridPolicy replaces the default time grid
func WithGridPolicy(policy GridPolicy) Option {
	return func(p *Predictor) { p.policy = policy }
}

// WithLogger sets the logger used for dropped models
func WithLogger(logger *slog.Logger) Option {
	return func(p *Predictor) { p.logger = logger }
}

// WithFailureObserver registers an observer for dropped models
func WithFailureObserver(o FailureObserver) Option {
	return func(p *Predictor) { p.observer = o }
}

// NewPredictor creates a new Predictor
func NewPredictor(opts ...Option) *Predictor {
	p := &Predictor{
		policy: DefaultGridPolicy(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckInputs validates the three inputs of a computation
func CheckInputs(subject *models.Subject, drinks []models.DrinkEvent, settings *models.CalculationSettings) error {
	switch {
	case subject == nil:
		return apperrors.NewMissingInputError("subject")
	case len(drinks) == 0:
		return apperrors.NewMissingInputError("drinks")
	case settings == nil:
		return apperrors.NewMissingInputError("settings")
	}

	if len(settings.SelectedModels()) == 0 {
		return apperrors.ErrNoModelSelected
	}

	if err := subject.Validate(); err != nil {
		return err
	}
	for i := range drinks {
		if err := drinks[i].Validate(); err != nil {
			return err
		}
	}
	return settings.Validate()
}

// Predict computes one result per selected model. A model that fails is
// logged and left out of the map; only input errors abort the run.
func (p *Predictor) Predict(
	subject *models.Subject,
	drinks []models.DrinkEvent,
	settings *models.CalculationSettings,
) (models.ResultMap, error) {
	if err := CheckInputs(subject, drinks, settings); err != nil {
		return nil, err
	}

	now := p.now()
	sorted := models.SortedDrinks(drinks)

	results := make(models.ResultMap)
	for _, model := range settings.SelectedModels() {
		res, err := p.predictModel(subject, sorted, settings, model, now)
		if err != nil {
			p.logFailure(model, err)
			if p.observer != nil {
				p.observer.ModelFailed(model)
			}
			continue
		}
		results[model] = res
	}

	if len(results) == 0 {
		p.logger.Warn("All models failed", "models", settings.SelectedModels())
	}

	return results, nil
}

func (p *Predictor) predictModel(
	subject *models.Subject,
	drinks []models.DrinkEvent,
	settings *models.CalculationSettings,
	model models.ModelID,
	now time.Time,
) (res *models.ModelResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperrors.NewModelFailure(fmt.Errorf("panic: %v", r), string(model))
		}
	}()

	params, err := p.resolver.Resolve(subject, model, settings)
	if err != nil {
		return nil, err
	}

	contributions := make([]Contribution, len(drinks))
	for i, d := range drinks {
		contributions[i] = NewContribution(d, params, subject.Weight, settings)
	}

	series := Synthesize(contributions, now, p.policy)
	if len(series) == 0 {
		return nil, apperrors.NewModelFailure(fmt.Errorf("empty series"), string(model))
	}

	peak := peakOf(series)

	records := make([]models.DrinkContribution, len(contributions))
	for i := range contributions {
		records[i] = contributions[i].Record(now)
	}

	return &models.ModelResult{
		Model:             model,
		PeakBAC:           peak.BAC,
		PeakTime:          peak.Time,
		CurrentBAC:        valueAtOrBefore(series, now),
		TimeTo05:          firstBelow(series, now, LegalLimitBAC),
		TimeTo005:         firstBelow(series, now, SoberBAC),
		Series:            series,
		Contributions:     records,
		EliminationRate:   params.EliminationRate,
		RFactor:           params.R,
		TotalAlcoholGrams: models.TotalAlcoholGrams(drinks),
		EvaluatedAt:       now,
	}, nil
}

func (p *Predictor) logFailure(model models.ModelID, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		p.logger.Warn("Model computation failed", appErr.LogFields()...)
		return
	}
	p.logger.Warn("Model computation failed", "model", model, "error", err)
}
