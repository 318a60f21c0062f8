// internal/models/vitals.go
package models

import "strconv"

// Vital names a monitored vital sign. The string is the key used in
// vital_signs_analysis.
type Vital string

const (
	VitalBloodPressure Vital = "blood_pressure"
	VitalBloodSugar    Vital = "blood_sugar"
	VitalTemperature   Vital = "temperature"
	VitalHeartRate     Vital = "heart_rate"
)

// VitalOrder is the check order every per-vital list follows.
var VitalOrder = []Vital{
	VitalBloodPressure,
	VitalBloodSugar,
	VitalTemperature,
	VitalHeartRate,
}

// Raw input keys, in feature-vector order.
const (
	FieldAge         = "Age"
	FieldSystolicBP  = "SystolicBP"
	FieldDiastolicBP = "DiastolicBP"
	FieldBloodSugar  = "BS"
	FieldBodyTemp    = "BodyTemp"
	FieldHeartRate   = "HeartRate"
)

// FeatureNames is the order the classifier was trained on.
var FeatureNames = []string{
	FieldAge,
	FieldSystolicBP,
	FieldDiastolicBP,
	FieldBloodSugar,
	FieldBodyTemp,
	FieldHeartRate,
}

// VitalSnapshot is one validated patient reading. Blood sugar is mmol/L,
// temperature °C, heart rate bpm.
type VitalSnapshot struct {
	Age         float64 `json:"Age"`
	SystolicBP  float64 `json:"SystolicBP"`
	DiastolicBP float64 `json:"DiastolicBP"`
	BloodSugar  float64 `json:"BS"`
	BodyTemp    float64 `json:"BodyTemp"`
	HeartRate   float64 `json:"HeartRate"`
}

// Features returns the snapshot in FeatureNames order.
func (s VitalSnapshot) Features() []float64 {
	return []float64{s.Age, s.SystolicBP, s.DiastolicBP, s.BloodSugar, s.BodyTemp, s.HeartRate}
}

// Field returns the value stored under a raw input key.
func (s VitalSnapshot) Field(name string) (float64, bool) {
	switch name {
	case FieldAge:
		return s.Age, true
	case FieldSystolicBP:
		return s.SystolicBP, true
	case FieldDiastolicBP:
		return s.DiastolicBP, true
	case FieldBloodSugar:
		return s.BloodSugar, true
	case FieldBodyTemp:
		return s.BodyTemp, true
	case FieldHeartRate:
		return s.HeartRate, true
	}
	return 0, false
}

// FormatValue renders a reading without trailing zeros: 38.2, 98, 12.5.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBloodPressure renders "systolic/diastolic".
func FormatBloodPressure(systolic, diastolic float64) string {
	return FormatValue(systolic) + "/" + FormatValue(diastolic)
}
