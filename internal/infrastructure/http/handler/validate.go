package handler

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/infrastructure/http/response"
)

// custom validation tags
const (
	notBlankTag  = "notblank"
	clockTimeTag = "clock"
	ownerIDTag   = "owner_id"
)

// maxOwnerIDLength bounds the owner segment of task URLs.
const maxOwnerIDLength = 128

// requestValidator validates request DTOs and renders failures as field
// errors keyed by their JSON names.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(clockTimeTag, clockTime)
	_ = v.RegisterValidation(ownerIDTag, ownerID)

	messages := map[string]string{
		notBlankTag:  "this field cannot be blank",
		clockTimeTag: "must be a 24-hour HH:MM time",
		ownerIDTag:   "must be 1-128 printable characters without slashes",
	}
	for tag, msg := range messages {
		_ = v.RegisterTranslation(tag, translator,
			func(ut.Translator) error { return nil },
			func(_ ut.Translator, _ validator.FieldError) string { return msg })
	}

	return &requestValidator{validate: v, translator: translator}
}

// Struct validates a request DTO. The returned fields are nil when s is valid.
func (rv *requestValidator) Struct(ctx context.Context, s any) ([]response.ErrorField, error) {
	err := rv.validate.StructCtx(ctx, s)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make([]response.ErrorField, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, response.ErrorField{
			Field: fieldPath(fe.Namespace()),
			Issue: fe.Translate(rv.translator),
		})
	}
	return fields, nil
}

// Owner validates an owner id taken from the URL.
func (rv *requestValidator) Owner(id string) bool {
	return rv.validate.Var(id, ownerIDTag) == nil
}

// fieldPath drops the root struct name from a validator namespace,
// e.g. "createTasksRequest.rule.weekdays[2]" becomes "rule.weekdays[2]".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// Custom Validators

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

func clockTime(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := domain.NewClockTime(s)
	return err == nil
}

func ownerID(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok || s == "" || len(s) > maxOwnerIDLength {
		return false
	}
	for _, r := range s {
		if r < 0x21 || r == 0x7f || r == '/' || r == '\\' {
			return false
		}
	}
	return true
}
