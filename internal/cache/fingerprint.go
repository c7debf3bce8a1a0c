package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"

	"github.com/mrcode/promille/internal/models"
)

// FingerprintVersion prefixes every key; bump it when the canonical form changes
const FingerprintVersion = "v1"

// Canonical value types with a fixed field order

type canonicalSubject struct {
	Gender  models.Gender        `json:"g"`
	Age     int                  `json:"a"`
	Height  float64              `json:"h"`
	Weight  float64              `json:"w"`
	BodyFat float64              `json:"f"`
	Habit   models.DrinkingHabit `json:"d"`
}

type canonicalDrink struct {
	Time   string  `json:"t"`
	Name   string  `json:"n"`
	Volume float64 `json:"v"`
	ABV    float64 `json:"p"`
}

type canonicalSettings struct {
	Models      []models.ModelID       `json:"m"`
	Resorption  models.ResorptionMode  `json:"r"`
	Meal        models.MealStatus      `json:"e"`
	Elimination models.EliminationMode `json:"l"`
	ManualRate  float64                `json:"x"`
	Deficit     float64                `json:"d"`
}

type canonicalInput struct {
	Subject  canonicalSubject  `json:"s"`
	Drinks   []canonicalDrink  `json:"d"`
	Settings canonicalSettings `json:"c"`
}

// Fingerprint returns a deterministic key for the three computation inputs.
// Drink order, model order and time zones do not affect the key.
func Fingerprint(subject *models.Subject, drinks []models.DrinkEvent, settings *models.CalculationSettings) string {
	in := canonicalInput{}

	if subject != nil {
		in.Subject = canonicalSubject{
			Gender:  subject.Gender,
			Age:     subject.Age,
			Height:  subject.Height,
			Weight:  subject.Weight,
			BodyFat: subject.BodyFat,
			Habit:   subject.Habit,
		}
	}

	in.Drinks = lo.Map(drinks, func(d models.DrinkEvent, _ int) canonicalDrink {
		return canonicalDrink{
			Time:   d.Time.UTC().Format(time.RFC3339Nano),
			Name:   d.Name,
			Volume: d.Volume,
			ABV:    d.ABV,
		}
	})
	sort.Slice(in.Drinks, func(i, j int) bool {
		a, b := in.Drinks[i], in.Drinks[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Volume != b.Volume {
			return a.Volume < b.Volume
		}
		return a.ABV < b.ABV
	})

	if settings != nil {
		in.Settings = canonicalSettings{
			Models:      settings.SelectedModels(),
			Resorption:  settings.ResorptionMode,
			Meal:        settings.MealStatus,
			Elimination: settings.EliminationMode,
			Deficit:     settings.ResorptionDeficit,
		}
		// the rate only affects the curves in manual mode
		if settings.EliminationMode == models.EliminationManual {
			in.Settings.ManualRate = settings.ManualEliminationRate
		}
	}

	data, err := json.Marshal(in)
	if err != nil {
		// NaN and Inf are rejected by encoding/json
		data = []byte(fmt.Sprintf("%+v", in))
	}

	return fmt.Sprintf("%s:%016x", FingerprintVersion, xxhash.Sum64(data))
}
