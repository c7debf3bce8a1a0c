// Package models contains data structures used throughout the application
package models

import "math"

// Gender of the subject
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// DrinkingHabit describes how often the subject drinks
type DrinkingHabit string

const (
	HabitAbstinent  DrinkingHabit = "abstinent"
	HabitOccasional DrinkingHabit = "occasional"
	HabitRegular    DrinkingHabit = "regular"
	HabitDaily      DrinkingHabit = "daily"
)

// Subject holds the anthropometric attributes of the person being modeled
type Subject struct {
	Gender  Gender        `json:"gender" yaml:"gender" validate:"required,oneof=male female"`
	Age     int           `json:"age" yaml:"age" validate:"gte=0,lte=120"`
	Height  float64       `json:"height" yaml:"height" validate:"gt=0"`           // cm
	Weight  float64       `json:"weight" yaml:"weight" validate:"gt=0"`           // kg
	BodyFat float64       `json:"bodyFat" yaml:"bodyFat" validate:"gte=0,lt=100"` // percent
	Habit   DrinkingHabit `json:"habit" yaml:"habit" validate:"omitempty,oneof=abstinent occasional regular daily"`
}

// DefaultSubject returns a subject with the defaults used by the input forms
func DefaultSubject() Subject {
	return Subject{
		Gender:  Male,
		Age:     30,
		Height:  180,
		Weight:  80,
		BodyFat: 20,
		Habit:   HabitOccasional,
	}
}

// IsMale reports whether male constants apply
func (s *Subject) IsMale() bool {
	return s.Gender == Male
}

// BMI returns the body mass index
func (s *Subject) BMI() float64 {
	heightM := s.Height / 100
	if heightM <= 0 {
		return math.NaN()
	}
	return s.Weight / (heightM * heightM)
}

// Validate checks the field ranges of the subject
func (s *Subject) Validate() error {
	return validateStruct(s, "subject")
}
