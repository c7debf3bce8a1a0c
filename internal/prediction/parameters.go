package prediction

import (
	"fmt"
	"math"

	apperrors "github.com/mrcode/promille/internal/errors"
	"github.com/mrcode/promille/internal/models"
)

// Parameters are the resolved per-model pharmacokinetic constants
type Parameters struct {
	R               float64 // distribution factor
	EliminationRate float64 // ‰/h
}

// ParameterResolver derives r and the elimination rate of a model for a subject
type ParameterResolver struct{}

// Resolve returns the parameters of model for subject.
// A manual elimination mode replaces the model's own rate.
func (ParameterResolver) Resolve(
	subject *models.Subject,
	model models.ModelID,
	settings *models.CalculationSettings,
) (Parameters, error) {
	var r float64

	switch model {
	case models.Widmark:
		r = widmarkR(subject)
	case models.Watson:
		r = watsonR(subject)
	case models.Forrest:
		r = widmarkR(subject) * forrestAgeFactor(subject.Age)
	case models.Seidl:
		r = seidlR(subject)
	default:
		return Parameters{}, apperrors.NewUnknownModelError(string(model))
	}

	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return Parameters{}, apperrors.NewInvalidParametersError(string(model),
			fmt.Sprintf("distribution factor %v is not usable", r))
	}

	params := Parameters{R: r, EliminationRate: defaultEliminationRate(subject, model)}
	if settings != nil && settings.EliminationMode == models.EliminationManual {
		params.EliminationRate = settings.ManualEliminationRate
	}

	return params, nil
}

func defaultEliminationRate(subject *models.Subject, model models.ModelID) float64 {
	rates := eliminationRates[model]
	if subject.IsMale() {
		return rates[0]
	}
	return rates[1]
}

func widmarkR(subject *models.Subject) float64 {
	if subject.IsMale() {
		return WidmarkRMale
	}
	return WidmarkRFemale
}

// watsonR uses total body water over body weight
func watsonR(subject *models.Subject) float64 {
	var tbw float64
	if subject.IsMale() {
		tbw = watsonMaleIntercept +
			watsonMaleAge*float64(subject.Age) +
			watsonMaleHeight*subject.Height +
			watsonMaleWeight*subject.Weight
	} else {
		tbw = watsonFemaleIntercept +
			watsonFemaleHeight*subject.Height +
			watsonFemaleWeight*subject.Weight
	}
	return tbw / subject.Weight
}

func forrestAgeFactor(age int) float64 {
	over := math.Max(0, float64(age-forrestAgeOnset))
	return math.Max(forrestMinAgeFactor, 1-forrestAgeSlope*over)
}

func seidlR(subject *models.Subject) float64 {
	base := SeidlBaseRFemale
	if subject.IsMale() {
		base = SeidlBaseRMale
	}

	bmiFactor := 1 + (subject.BMI()-seidlReferenceBMI)*seidlBMISlope
	fatFactor := 1 - (subject.BodyFat-seidlReferenceBodyFat)*seidlBodyFatSlope

	return base * bmiFactor * fatFactor
}
