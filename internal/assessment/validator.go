package assessment

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strings"

	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/validation"
	"health-risk-workers/internal/models"
)

// Envelope is the physiologically plausible range for one raw input field.
type Envelope struct {
	Field   string
	Min     float64
	Max     float64
	Integer bool
}

// DefaultEnvelopes are checked in this order; the first failing field is
// the one reported.
var DefaultEnvelopes = []Envelope{
	{Field: models.FieldAge, Min: 0, Max: 120, Integer: true},
	{Field: models.FieldSystolicBP, Min: 40, Max: 300},
	{Field: models.FieldDiastolicBP, Min: 20, Max: 200},
	{Field: models.FieldBloodSugar, Min: 0, Max: 50},
	{Field: models.FieldBodyTemp, Min: 25, Max: 45},
	{Field: models.FieldHeartRate, Min: 20, Max: 250},
}

// VitalValidator turns raw key/value input into a VitalSnapshot.
type VitalValidator struct {
	envelopes []Envelope
	schema    *validation.Validator
}

// NewVitalValidator compiles the input schema for the given envelopes.
// Unknown keys are allowed since job variables carry other process data.
func NewVitalValidator(envelopes []Envelope) (*VitalValidator, error) {
	schema := validation.JSONSchema{
		Type:                 "object",
		Properties:           make(map[string]validation.Property, len(envelopes)),
		AdditionalProperties: true,
	}
	for _, env := range envelopes {
		if _, ok := (models.VitalSnapshot{}).Field(env.Field); !ok {
			return nil, fmt.Errorf("unknown vital field %q", env.Field)
		}
		if !(env.Min <= env.Max) {
			return nil, fmt.Errorf("envelope for %s: min %v above max %v", env.Field, env.Min, env.Max)
		}
		lo, hi := env.Min, env.Max
		typ := "number"
		if env.Integer {
			typ = "integer"
		}
		schema.Properties[env.Field] = validation.Property{
			Type:    typ,
			Minimum: &lo,
			Maximum: &hi,
		}
		schema.Required = append(schema.Required, env.Field)
	}

	compiled, err := validation.Compile(schema)
	if err != nil {
		return nil, err
	}
	return &VitalValidator{envelopes: envelopes, schema: compiled}, nil
}

// Schema is the compiled input schema, published in the activity registry.
func (v *VitalValidator) Schema() validation.JSONSchema {
	return v.schema.Schema()
}

// Validate checks that every field is present, numeric and inside its
// envelope. It never returns a partial snapshot.
func (v *VitalValidator) Validate(raw map[string]interface{}) (models.VitalSnapshot, error) {
	doc := make(map[string]interface{}, len(raw))
	for k, val := range raw {
		// NaN and Inf cannot be encoded as JSON; report them as type errors
		if f, ok := toFloat(val); ok && !isFinite(f) {
			doc[k] = fmt.Sprint(f)
			continue
		}
		doc[k] = val
	}

	result := v.schema.Validate(doc)
	if !result.Valid {
		for _, env := range v.envelopes {
			fieldErrs := result.GetErrorsForField(env.Field)
			if len(fieldErrs) == 0 {
				continue
			}
			return models.VitalSnapshot{}, v.fieldError(env, raw[env.Field], fieldErrs[0])
		}
		return models.VitalSnapshot{}, errors.NewInputParsingFailedError(
			stderrors.New(strings.Join(result.GetErrorMessages(), "; ")))
	}

	var snap models.VitalSnapshot
	for _, env := range v.envelopes {
		f, ok := toFloat(raw[env.Field])
		if !ok {
			return models.VitalSnapshot{}, errors.NewValidationError(env.Field, "", raw[env.Field], "value is not numeric")
		}
		setField(&snap, env.Field, f)
	}
	return snap, nil
}

// ValidateSnapshot applies the same envelopes to an already typed snapshot.
func (v *VitalValidator) ValidateSnapshot(snap models.VitalSnapshot) error {
	for _, env := range v.envelopes {
		f, _ := snap.Field(env.Field)
		switch {
		case !isFinite(f):
			return errors.NewValidationError(env.Field, "", f, "value is not a finite number")
		case env.Integer && f != math.Trunc(f):
			return errors.NewValidationError(env.Field, "", f, "value must be a whole number")
		case f < env.Min:
			return errors.NewValidationError(env.Field, fmt.Sprintf(">= %g", env.Min), f,
				fmt.Sprintf("must be greater than or equal to %g", env.Min))
		case f > env.Max:
			return errors.NewValidationError(env.Field, fmt.Sprintf("<= %g", env.Max), f,
				fmt.Sprintf("must be less than or equal to %g", env.Max))
		}
	}
	return nil
}

func (v *VitalValidator) fieldError(env Envelope, value interface{}, fe validation.ValidationError) error {
	switch fe.Code {
	case "MINIMUM_VIOLATION":
		return errors.NewValidationError(env.Field, fmt.Sprintf(">= %g", env.Min), value, fe.Message)
	case "MAXIMUM_VIOLATION":
		return errors.NewValidationError(env.Field, fmt.Sprintf("<= %g", env.Max), value, fe.Message)
	case "REQUIRED_FIELD_MISSING":
		return errors.NewValidationError(env.Field, "", nil, "field is required")
	default:
		return errors.NewValidationError(env.Field, "", value, fe.Message)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func setField(s *models.VitalSnapshot, field string, v float64) {
	switch field {
	case models.FieldAge:
		s.Age = v
	case models.FieldSystolicBP:
		s.SystolicBP = v
	case models.FieldDiastolicBP:
		s.DiastolicBP = v
	case models.FieldBloodSugar:
		s.BloodSugar = v
	case models.FieldBodyTemp:
		s.BodyTemp = v
	case models.FieldHeartRate:
		s.HeartRate = v
	}
}
