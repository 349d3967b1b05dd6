package echoapi

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type (
	// NewSessionRequest optionally selects a class and date right away.
	NewSessionRequest struct {
		ClassID string `json:"class_id" validate:"required,notblank"`
		Date    string `json:"date" validate:"required,isodate"`
	}

	KeyRequest struct {
		ClassID string `json:"class_id" validate:"required,notblank"`
		Date    string `json:"date" validate:"required,isodate"`
		Confirm bool   `json:"confirm"`
	}

	StatusRequest struct {
		StudentID string `json:"student_id" validate:"required,notblank"`
		Status    string `json:"status" validate:"required,attendance_status"`
	}

	MarkAllRequest struct {
		Status string `json:"status" validate:"required,attendance_status"`
	}

	// ConfirmRequest answers the prompts raised by the action.
	ConfirmRequest struct {
		Confirm bool `json:"confirm"`
	}

	SessionResponse struct {
		ID string `json:"id"`
		attendance.View
	}

	AutoFillResponse struct {
		Filled int `json:"filled"`
		attendance.View
	}

	SaveResponse struct {
		Receipt attendance.SaveReceipt `json:"receipt"`
		attendance.View
	}

	DiffResponse struct {
		Dirty bool   `json:"dirty"`
		Diff  string `json:"diff"`
	}
)

func (r *NewSessionRequest) IsEmpty() bool {
	return core.CleanString(r.ClassID) == "" && core.CleanString(r.Date) == ""
}

func (r *NewSessionRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	r.ClassID = core.CleanString(r.ClassID)
	r.Date = core.CleanString(r.Date)
	return validateStruct(validate, translator, r)
}

func (r *NewSessionRequest) Key() attendance.SessionKey {
	return attendance.NewSessionKey(r.ClassID, r.Date)
}

func (r *KeyRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	r.ClassID = core.CleanString(r.ClassID)
	r.Date = core.CleanString(r.Date)
	return validateStruct(validate, translator, r)
}

func (r *KeyRequest) Key() attendance.SessionKey {
	return attendance.NewSessionKey(r.ClassID, r.Date)
}

func (r *StatusRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.Status = core.CleanString(r.Status, true /* lower */)
	return validateStruct(validate, translator, r)
}

func (r *MarkAllRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	r.Status = core.CleanString(r.Status, true /* lower */)
	return validateStruct(validate, translator, r)
}

func validateStruct(validate *validator.Validate, translator ut.Translator, s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}
