// Package validation checks request structs with go-playground/validator and
// renders failures as readable, per-field English messages.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("invalid input")

var (
	// custom validation tags & texts
	isoDateTag  = "isodate"
	isoDateText = "{0} must be a date in YYYY-MM-DD format"

	requiredText = "{0} is required"
	eqFieldText  = "{0} does not match"
)

// Validator wraps a configured validator and its English translator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(isoDateTag, isoDate)

	val := &Validator{validate: v, translator: trans}
	val.register(isoDateTag, isoDateText, false)
	val.register("required", requiredText, true)
	val.register("required_if", requiredText, true)
	val.register("eqfield", eqFieldText, true)
	return val
}

func (v *Validator) register(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s. A rule violation comes back as *Error; anything else
// (a nil or non-struct argument) is returned unchanged.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = fe.Translate(v.translator)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace, so nested
// fields read as "entries[1].status".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

// Error carries one message per offending field.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Invalid builds an *Error for a rule checked outside struct tags.
func Invalid(field, msg string) *Error {
	return &Error{Fields: map[string]string{field: msg}}
}
