package template

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ervnjmsdnts/ojt/core"
)

var (
	templateKindTag  = "templatekind"
	templateKindText = "must be one of appraisal, supervisor-feedback or student-feedback"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(templateKindTag, templateKindValidation)
	core.RegisterCustomTranslation(validate, translator, templateKindTag, templateKindText)
}

// templateKindValidation checks that the field holds one of Kinds
func templateKindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}
