package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// custom validation tags & texts
const (
	TagDate          = "iso_date"
	TagStudentSuffix = "student_suffix"
	TagScore         = "score"
	TagName          = "person_name"
	TagYear          = "year4"
)

var customTags = []struct {
	tag  string
	text string
	fn   validator.Func
}{
	{TagDate, "{0} must be a real date in YYYY-MM-DD form", stringFunc(IsValidDate)},
	{TagStudentSuffix, "{0} must be 4 to 10 digits", stringFunc(IsValidStudentNumber)},
	{TagName, "{0} must be 1 to 20 letters, digits or spaces", stringFunc(IsValidName)},
	{TagYear, "{0} must be a four digit year", stringFunc(IsValidYear)},
	{TagScore, "{0} must be a number between 0 and 100", scoreFunc},
}

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		enLocale := en.New()
		translator, _ = ut.New(enLocale, enLocale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// Use db/toml tag names in errors instead of Go struct names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"toml", "db"} {
				name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})

		for _, ct := range customTags {
			_ = validate.RegisterValidation(ct.tag, ct.fn)
			registerTranslation(ct.tag, ct.text)
		}
	})
	return validate
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s and flattens field errors into one readable error.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func stringFunc(check func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return check(fl.Field().String())
	}
}

func scoreFunc(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return ScoreInRange(field.Float())
	case reflect.String:
		return IsValidScore(field.String())
	default:
		return false
	}
}
