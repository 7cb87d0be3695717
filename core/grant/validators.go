package grant

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ervnjmsdnts/ojt/core"
)

var (
	respondentRoleTag  = "respondentrole"
	respondentRoleText = "must be one of supervisor or student"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(respondentRoleTag, respondentRoleValidation)
	core.RegisterCustomTranslation(validate, translator, respondentRoleTag, respondentRoleText)
}

func respondentRoleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).Valid()
}
