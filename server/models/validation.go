package models

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"github.com/snzark/crm/utils"
)

var (
	validate = newValidator()

	Salutations    = []string{"Mr.", "Mrs.", "Ms.", "Dr.", "Prof."}
	TaskStatuses   = []string{"backlog", "todo", "in progress", "done", "canceled", "impeded"}
	TaskPriorities = []string{"low", "medium", "high", "critical"}
	TaskLabels     = []string{"urgent", "marketing", "document", "internal", "report"}

	enumValidations = map[string][]string{
		"salutation":     Salutations,
		"company_rating": CompanyRatings,
		"task_status":    TaskStatuses,
		"task_priority":  TaskPriorities,
		"task_label":     TaskLabels,
	}
)

// FieldError is a validation failure addressed by a dotted field path, e.g. "address.city".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned when a record fails schema validation.
type ValidationErrors []FieldError

func (errs ValidationErrors) Error() string {
	messages := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		messages = append(messages, fieldErr.Message)
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Fields lists the offending field paths in order.
func (errs ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		fields = append(fields, fieldErr.Field)
	}
	return fields
}

// Prefixed returns a copy of errs with every field path prefixed, e.g. "contacts.3".
func (errs ValidationErrors) Prefixed(prefix string) ValidationErrors {
	prefixed := make(ValidationErrors, 0, len(errs))
	for _, fieldErr := range errs {
		prefixed = append(prefixed, FieldError{
			Field:   prefix + "." + fieldErr.Field,
			Message: fieldErr.Message,
		})
	}
	return prefixed
}

// ValidateStruct runs the struct's `validate` tags and converts failures into ValidationErrors.
func ValidateStruct(value interface{}) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	errs := ValidationErrors{}
	for _, fieldErr := range validationErrs {
		path := fieldPath(fieldErr.Namespace())
		errs = append(errs, FieldError{Field: path, Message: fieldMessage(path, fieldErr)})
	}
	return errs
}

// ValidateVar validates a single value against tag, reporting failures under field.
func ValidateVar(field string, value interface{}, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return err
	}
	return ValidationErrors{{Field: field, Message: fieldMessage(field, validationErrs[0])}}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their json names so paths match the request payload
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		password := fl.Field().String()
		return len(password) >= 8 && !strings.ContainsAny(password, " \t\n")
	})

	for tag, allowed := range enumValidations {
		allowed := allowed
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return utils.Contains(allowed, fl.Field().String())
		})
	}

	return v
}

// fieldPath drops the leading struct name from a validator namespace,
// "Contact.address.city" -> "address.city", "Task.attachments[1].url" -> "attachments.1.url".
func fieldPath(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	path := namespace
	if len(parts) == 2 {
		path = parts[1]
	}

	path = strings.ReplaceAll(path, "[", ".")
	return strings.ReplaceAll(path, "]", "")
}

func fieldMessage(path string, fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", path)
	case "e164":
		return fmt.Sprintf("%s must be an E.164 phone number, e.g. +14165550100", path)
	case "min":
		switch fieldErr.Kind() {
		case reflect.Int, reflect.Int64, reflect.Float64:
			return fmt.Sprintf("%s must be at least %s", path, fieldErr.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", path, fieldErr.Param())
	case "max":
		if fieldErr.Kind() == reflect.Slice || fieldErr.Kind() == reflect.Map {
			return fmt.Sprintf("%s must contain at most %s items", path, fieldErr.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters long", path, fieldErr.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", path)
	case "password":
		return fmt.Sprintf("%s must be at least 8 characters without whitespace", path)
	case "salutation", "company_rating", "task_status", "task_priority", "task_label":
		return fmt.Sprintf("%s must be one of %s", path, strings.Join(enumValidations[fieldErr.Tag()], ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", path, fieldErr.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", path, fieldErr.Tag())
}
