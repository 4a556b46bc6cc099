package proctor

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/proctor/core"
)

var (
	categoryTag  = "category"
	categoryText = "unknown violation category"
)

// InitValidators registers the violation validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)
}

// Custom Validators

// categoryValidation checks that the reported category is one of Categories
func categoryValidation(fl validator.FieldLevel) bool {
	return Category(fl.Field().String()).Valid()
}
