package models

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	apperrors "github.com/mrcode/promille/internal/errors"
)

// ModelID identifies a pharmacokinetic model
type ModelID string

const (
	Widmark ModelID = "Widmark"
	Watson  ModelID = "Watson"
	Forrest ModelID = "Forrest"
	Seidl   ModelID = "Seidl"
)

// AllModels lists the supported models in display order
func AllModels() []ModelID {
	return []ModelID{Widmark, Watson, Forrest, Seidl}
}

// ResorptionMode selects how the resorption duration of a drink is derived
type ResorptionMode string

const (
	ResorptionAuto     ResorptionMode = "auto"      // by alcohol mass and meal
	ResorptionFast     ResorptionMode = "fast"      // 20 min
	ResorptionNormal   ResorptionMode = "normal"    // 45 min
	ResorptionSlow     ResorptionMode = "slow"      // 90 min
	ResorptionVerySlow ResorptionMode = "very_slow" // 120 min
)

// MealStatus describes the stomach content at the time of drinking
type MealStatus string

const (
	MealFasting MealStatus = "fasting"
	MealLight   MealStatus = "light"
	MealNormal  MealStatus = "normal"
	MealHeavy   MealStatus = "heavy"
)

// EliminationMode selects between model-specific and manual elimination rates
type EliminationMode string

const (
	EliminationAuto   EliminationMode = "auto"
	EliminationManual EliminationMode = "manual"
)

// CalculationSettings controls which models run and how
type CalculationSettings struct {
	Models                []ModelID       `json:"models" yaml:"models"`
	ResorptionMode        ResorptionMode  `json:"resorptionMode" yaml:"resorptionMode" validate:"omitempty,oneof=auto fast normal slow very_slow"`
	MealStatus            MealStatus      `json:"mealStatus" yaml:"mealStatus" validate:"omitempty,oneof=fasting light normal heavy"`
	EliminationMode       EliminationMode `json:"eliminationMode" yaml:"eliminationMode" validate:"omitempty,oneof=auto manual"`
	ManualEliminationRate float64         `json:"manualEliminationRate" yaml:"manualEliminationRate" validate:"gte=0"` // ‰/h
	ResorptionDeficit     float64         `json:"resorptionDeficit" yaml:"resorptionDeficit" validate:"gte=0,lte=100"` // percent
}

// DefaultCalculationSettings returns the settings the input form starts with
func DefaultCalculationSettings() *CalculationSettings {
	return &CalculationSettings{
		Models:                AllModels(),
		ResorptionMode:        ResorptionAuto,
		MealStatus:            MealFasting,
		EliminationMode:       EliminationAuto,
		ManualEliminationRate: 0.15,
		ResorptionDeficit:     10,
	}
}

// Clone creates a deep copy of the settings
func (c *CalculationSettings) Clone() *CalculationSettings {
	clone := *c
	clone.Models = append([]ModelID(nil), c.Models...)
	return &clone
}

// SelectedModels returns the de-duplicated model selection, sorted by name
func (c *CalculationSettings) SelectedModels() []ModelID {
	models := lo.Uniq(c.Models)
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

// Validate checks the field ranges of the settings
func (c *CalculationSettings) Validate() error {
	if c.EliminationMode == EliminationManual && (c.ManualEliminationRate <= 0 || c.ManualEliminationRate > 1) {
		return apperrors.NewInvalidInputError(
			fmt.Errorf("manual elimination rate %.3f outside (0, 1]", c.ManualEliminationRate), "settings")
	}
	return validateStruct(c, "settings")
}
