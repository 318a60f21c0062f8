package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema defines the structure for input/output schemas
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator is a compiled schema, safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
	source JSONSchema
}

// Compile turns a JSONSchema into a reusable validator.
func Compile(schema JSONSchema) (*Validator, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled, source: schema}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schema JSONSchema) *Validator {
	v, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return v
}

// Schema returns the schema the validator was built from.
func (v *Validator) Schema() JSONSchema {
	return v.source
}

// Validate checks input and reports every violation. Errors are ordered by
// field name, then code, so results are stable between runs.
func (v *Validator) Validate(input interface{}) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, toValidationError(re))
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Field != errs[j].Field {
			return errs[i].Field < errs[j].Field
		}
		return errs[i].Code < errs[j].Code
	})

	return &ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// ValidateInput validates input against JSON schema with detailed errors
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	v, err := Compile(schema)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(schema)", Message: err.Error(), Code: "INVALID_SCHEMA"}},
		}
	}
	return v.Validate(input)
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	// required and additionalProperties errors are reported on the parent
	if prop, ok := re.Details()["property"]; ok {
		if field == "(root)" {
			field = fmt.Sprint(prop)
		} else {
			field = fmt.Sprintf("%s.%s", field, prop)
		}
	}
	return ValidationError{
		Field:   field,
		Message: re.Description(),
		Code:    errorCode(re.Type()),
	}
}

func errorCode(t string) string {
	switch t {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "number_gte", "number_gt":
		return "MINIMUM_VIOLATION"
	case "number_lte", "number_lt":
		return "MAXIMUM_VIOLATION"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "pattern":
		return "PATTERN_MISMATCH"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	default:
		return strings.ToUpper(t)
	}
}

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityId string) error {
	namingPattern := regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)
	if !namingPattern.MatchString(activityId) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., clinical.risk.assess)")
	}
	return nil
}

// GetSchemaFromJSON parses JSON schema from string
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidateURL validates URL format
func ValidateURL(url string) bool {
	urlPattern := regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
	return urlPattern.MatchString(url)
}
