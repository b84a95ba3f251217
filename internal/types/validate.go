package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the YECS custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("business_stage", func(fl validator.FieldLevel) bool {
			return BusinessStage(fl.Field().String()).Valid()
		})
	})
	return validate
}

// FieldError is a single failed field rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports missing or malformed form fields. It is produced at
// the HTTP boundary and never reaches the workflow.
type ValidationError struct {
	Section Section      `json:"section,omitempty"`
	Fields  []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	if e.Section != "" {
		return fmt.Sprintf("invalid %s section: %s", e.Section, strings.Join(parts, "; "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate validates the personal section.
func (p *Personal) Validate() error {
	return validateStruct(SectionPersonal, p)
}

// Validate validates the business section.
func (b *Business) Validate() error {
	return validateStruct(SectionBusiness, b)
}

// Validate validates the financials section.
func (f *Financials) Validate() error {
	return validateStruct(SectionFinancials, f)
}

// Validate validates a document descriptor.
func (d *Document) Validate() error {
	return validateStruct(SectionDocuments, d)
}

func validateStruct(section Section, v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Section: section, Fields: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}

	out := &ValidationError{Section: section}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: describeRule(fe),
		})
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "business_stage":
		return "must be a known business stage"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
