package models

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/mrcode/promille/internal/errors"
)

var validate = validator.New()

func validateStruct(v interface{}, input string) error {
	if err := validate.Struct(v); err != nil {
		return apperrors.NewInvalidInputError(err, input)
	}
	return nil
}
