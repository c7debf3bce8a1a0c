package prediction

import (
	"time"

	"github.com/mrcode/promille/internal/models"
)

// Distribution factors (r) per model and gender
const (
	WidmarkRMale   = 0.68
	WidmarkRFemale = 0.55

	SeidlBaseRMale   = 0.70
	SeidlBaseRFemale = 0.58
)

// Elimination rates in ‰/h per model and gender
var eliminationRates = map[models.ModelID][2]float64{
	// {male, female}
	models.Widmark: {0.15, 0.13},
	models.Watson:  {0.16, 0.14},
	models.Forrest: {0.17, 0.15},
	models.Seidl:   {0.18, 0.16},
}

// Watson total body water regression coefficients (litres)
const (
	watsonMaleIntercept = 2.447
	watsonMaleAge       = -0.09516
	watsonMaleHeight    = 0.1074
	watsonMaleWeight    = 0.3362

	watsonFemaleIntercept = -2.097
	watsonFemaleHeight    = 0.1069
	watsonFemaleWeight    = 0.2466
)

// Forrest age attenuation
const (
	forrestAgeOnset     = 20
	forrestAgeSlope     = 0.01
	forrestMinAgeFactor = 0.5
)

// Seidl adjustments
const (
	seidlReferenceBMI     = 25
	seidlBMISlope         = 0.005
	seidlReferenceBodyFat = 20
	seidlBodyFatSlope     = 0.01
)

// Resorption durations
const (
	smallDrinkGrams  = 10.0
	mediumDrinkGrams = 20.0

	smallDrinkResorption  = 30 * time.Minute
	mediumDrinkResorption = 45 * time.Minute
	largeDrinkResorption  = 60 * time.Minute
)

var resorptionByMode = map[models.ResorptionMode]time.Duration{
	models.ResorptionFast:     20 * time.Minute,
	models.ResorptionNormal:   45 * time.Minute,
	models.ResorptionSlow:     90 * time.Minute,
	models.ResorptionVerySlow: 120 * time.Minute,
}

// Minimum resorption duration in auto mode when drinking with food
var resorptionByMeal = map[models.MealStatus]time.Duration{
	models.MealLight:  45 * time.Minute,
	models.MealNormal: 90 * time.Minute,
	models.MealHeavy:  120 * time.Minute,
}

// Grid policy defaults
const (
	GridLeadIn         = time.Hour
	GridStep           = 10 * time.Minute
	GridAfterNow       = 6 * time.Hour
	GridAfterLastDrink = 12 * time.Hour
	GridSoberMargin    = 2 * time.Hour
	GridSoberBAC       = 0.001
)

// Thresholds reported as time-to values
const (
	LegalLimitBAC = 0.5
	SoberBAC      = 0.05
)
