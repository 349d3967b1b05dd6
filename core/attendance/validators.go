package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-attendance/core"
)

var (
	statusTag  = "attendance_status"
	statusText = "{0} must be one of present, absent or late"
)

// InitValidators registers the attendance validation tags. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

// statusValidation accepts Status values and plain strings holding one.
func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
