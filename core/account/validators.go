package account

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jifunze/core"
)

const (
	maxPupilAge = 11
	minGrade    = 1
	maxGrade    = 5
)

var (
	pupilAgeTag  = "pupil_age"
	pupilAgeText = "children must be under 12 years old"

	pupilGradeTag  = "pupil_grade"
	pupilGradeText = "grade must be between 1 and 5"
)

// InitValidators registers the account validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pupilAgeTag, pupilAgeValidation)
	core.RegisterCustomTranslation(validate, translator, pupilAgeTag, pupilAgeText)

	_ = validate.RegisterValidation(pupilGradeTag, pupilGradeValidation)
	core.RegisterCustomTranslation(validate, translator, pupilGradeTag, pupilGradeText)
}

// pupilAgeValidation only allows pre-teen learners.
func pupilAgeValidation(fl validator.FieldLevel) bool {
	age := fl.Field().Int()
	return age > 0 && age <= maxPupilAge
}

func pupilGradeValidation(fl validator.FieldLevel) bool {
	grade := fl.Field().Int()
	return grade >= minGrade && grade <= maxGrade
}
