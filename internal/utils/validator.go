// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("report_reason", validateReportReason)
	validate.RegisterValidation("content_type", validateContentType)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateReportReason(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "spam", "abuse", "offtopic", "other":
		return true
	}
	return false
}

func validateContentType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "post", "comment", "review":
		return true
	}
	return false
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "report_reason":
		return "Reason must be one of: spam, abuse, offtopic, other"
	case "content_type":
		return "Content type must be one of: post, comment, review"
	case "uuid":
		return e.Field() + " must be a valid UUID"
	case "url":
		return e.Field() + " must be a valid URL"
	default:
		return "Invalid " + e.Field()
	}
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}
