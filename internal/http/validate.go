package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"teamdesk/internal/apperr"
)

const notBlankTag = "notblank"

type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Report json names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterTranslation(notBlankTag, translator, func(trans ut.Translator) error {
		return trans.Add(notBlankTag, "{0} is required", true)
	}, func(trans ut.Translator, fe validator.FieldError) string {
		msg, _ := trans.T(notBlankTag, fe.Field())
		return msg
	})
	return &requestValidator{validate: v, translator: translator}
}

// Struct validates a decoded request body. The first failing field becomes
// the message; all of them are listed under "fields".
func (v *requestValidator) Struct(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return apperr.Validation("invalid_request", err.Error())
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Translate(v.translator)
	}
	first := fieldErrs[0]
	return apperr.Validation("invalid_"+toSnake(first.Field()), first.Translate(v.translator)).With("fields", fields)
}
