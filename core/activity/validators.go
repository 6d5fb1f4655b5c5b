package activity

import (
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jifunze/core"
)

var (
	finiteTag  = "finite"
	finiteText = "must be a finite number"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(finiteTag, finiteValidation)
	core.RegisterCustomTranslation(validate, translator, finiteTag, finiteText)
}

// finiteValidation rejects NaN and infinities.
func finiteValidation(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
