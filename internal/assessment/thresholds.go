package assessment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/models"
)

// Band is one row of a boundary table. A value falls in the first band with
// value < Max, or value == Max when Closed is set.
type Band struct {
	Status models.Status
	Max    float64
	Closed bool
	Detail string
}

func (b Band) contains(v float64) bool {
	return v < b.Max || (b.Closed && v == b.Max)
}

// Scale is an ordered boundary table for one measurement. Bands before the
// first normal band are below the healthy range.
type Scale struct {
	Name  string
	Bands []Band
}

// Lookup returns the band for v and whether v lies below the normal range.
func (s Scale) Lookup(v float64) (Band, bool) {
	below := true
	for _, b := range s.Bands {
		if b.Status == models.StatusNormal {
			below = false
		}
		if b.contains(v) {
			return b, below
		}
	}
	// unreachable for a validated scale
	last := s.Bands[len(s.Bands)-1]
	return last, false
}

// Validate reports a ConfigurationError when the table cannot classify
// every finite value.
func (s Scale) Validate() error {
	if len(s.Bands) == 0 {
		return errors.NewConfigurationError(s.Name, "no bands defined")
	}
	hasNormal := false
	for i, b := range s.Bands {
		if !b.Status.Valid() {
			return errors.NewConfigurationError(s.Name, fmt.Sprintf("band %d: unknown status %q", i, b.Status))
		}
		if strings.TrimSpace(b.Detail) == "" {
			return errors.NewConfigurationError(s.Name, fmt.Sprintf("band %d: empty detail", i))
		}
		if math.IsNaN(b.Max) {
			return errors.NewConfigurationError(s.Name, fmt.Sprintf("band %d: max is NaN", i))
		}
		last := i == len(s.Bands)-1
		if last != math.IsInf(b.Max, 1) {
			return errors.NewConfigurationError(s.Name, "only the last band must be unbounded")
		}
		if i > 0 && !(b.Max > s.Bands[i-1].Max) {
			return errors.NewConfigurationError(s.Name, fmt.Sprintf("band %d: max %v not above previous %v", i, b.Max, s.Bands[i-1].Max))
		}
		if b.Status == models.StatusNormal {
			hasNormal = true
		}
	}
	if !hasNormal {
		return errors.NewConfigurationError(s.Name, "no normal band")
	}
	return nil
}

// Scale names accepted under the thresholds config section.
const (
	ScaleSystolic    = "systolic"
	ScaleDiastolic   = "diastolic"
	ScaleBloodSugar  = "blood_sugar"
	ScaleTemperature = "temperature"
	ScaleHeartRate   = "heart_rate"
)

// ThresholdTable holds one scale per measured value.
type ThresholdTable struct {
	Systolic    Scale
	Diastolic   Scale
	BloodSugar  Scale
	Temperature Scale
	HeartRate   Scale
}

func (t ThresholdTable) scales() []*Scale {
	return []*Scale{&t.Systolic, &t.Diastolic, &t.BloodSugar, &t.Temperature, &t.HeartRate}
}

func (t *ThresholdTable) scale(name string) *Scale {
	switch name {
	case ScaleSystolic:
		return &t.Systolic
	case ScaleDiastolic:
		return &t.Diastolic
	case ScaleBloodSugar:
		return &t.BloodSugar
	case ScaleTemperature:
		return &t.Temperature
	case ScaleHeartRate:
		return &t.HeartRate
	}
	return nil
}

// Validate checks every scale.
func (t ThresholdTable) Validate() error {
	for _, s := range t.scales() {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

const (
	bpHypotension = "Blood pressure is lower than normal (hypotension)."
	bpNormal      = "Blood pressure is within healthy range."
	bpElevated    = "Blood pressure is slightly elevated, indicating pre-hypertension."
	bpHigh        = "Blood pressure is high, indicating hypertension."
	bpCrisis      = "Blood pressure is at crisis levels, requiring immediate medical attention."
)

// DefaultThresholds returns the built-in clinical boundary table.
func DefaultThresholds() ThresholdTable {
	inf := math.Inf(1)
	return ThresholdTable{
		Systolic: Scale{Name: ScaleSystolic, Bands: []Band{
			{Status: models.StatusElevated, Max: 90, Detail: bpHypotension},
			{Status: models.StatusNormal, Max: 120, Detail: bpNormal},
			{Status: models.StatusElevated, Max: 130, Detail: bpElevated},
			{Status: models.StatusHigh, Max: 180, Closed: true, Detail: bpHigh},
			{Status: models.StatusCrisis, Max: inf, Detail: bpCrisis},
		}},
		Diastolic: Scale{Name: ScaleDiastolic, Bands: []Band{
			{Status: models.StatusElevated, Max: 60, Detail: bpHypotension},
			{Status: models.StatusNormal, Max: 80, Detail: bpNormal},
			{Status: models.StatusElevated, Max: 85, Detail: bpElevated},
			{Status: models.StatusHigh, Max: 120, Closed: true, Detail: bpHigh},
			{Status: models.StatusCrisis, Max: inf, Detail: bpCrisis},
		}},
		BloodSugar: Scale{Name: ScaleBloodSugar, Bands: []Band{
			{Status: models.StatusElevated, Max: 3.9, Detail: "Blood sugar levels are below normal (hypoglycaemia)."},
			{Status: models.StatusNormal, Max: 7.0, Detail: "Blood sugar levels are within normal range."},
			{Status: models.StatusElevated, Max: 11.0, Closed: true, Detail: "Blood sugar levels indicate pre-diabetes."},
			{Status: models.StatusHigh, Max: inf, Detail: "Blood sugar levels indicate diabetic range."},
		}},
		Temperature: Scale{Name: ScaleTemperature, Bands: []Band{
			{Status: models.StatusHigh, Max: 35, Detail: "Body temperature is dangerously low."},
			{Status: models.StatusNormal, Max: 37.5, Detail: "Body temperature is within normal range."},
			{Status: models.StatusElevated, Max: 38.5, Closed: true, Detail: "Presence of fever indicates possible infection."},
			{Status: models.StatusHigh, Max: inf, Detail: "High fever requires immediate medical attention."},
		}},
		HeartRate: Scale{Name: ScaleHeartRate, Bands: []Band{
			{Status: models.StatusElevated, Max: 60, Detail: "Heart rate is lower than normal (bradycardia)."},
			{Status: models.StatusNormal, Max: 100, Detail: "Heart rate is within normal range."},
			{Status: models.StatusElevated, Max: 150, Closed: true, Detail: "Heart rate is elevated (mild tachycardia)."},
			{Status: models.StatusHigh, Max: inf, Detail: "Heart rate is significantly elevated (tachycardia)."},
		}},
	}
}

// ThresholdsFromConfig overlays configured scales on the defaults and
// validates the result.
func ThresholdsFromConfig(cfg config.ThresholdsConfig) (ThresholdTable, error) {
	table := DefaultThresholds()

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := table.scale(name)
		if target == nil {
			return ThresholdTable{}, errors.NewConfigurationError(name, "unknown threshold table")
		}
		bands := make([]Band, 0, len(cfg[name]))
		for _, bc := range cfg[name] {
			upper := math.Inf(1)
			if bc.Max != nil {
				upper = *bc.Max
			}
			bands = append(bands, Band{
				Status: models.Status(strings.ToLower(bc.Status)),
				Max:    upper,
				Closed: bc.Closed,
				Detail: bc.Detail,
			})
		}
		target.Bands = bands
	}

	if err := table.Validate(); err != nil {
		return ThresholdTable{}, err
	}
	return table, nil
}

// ThresholdClassifier maps a snapshot onto per-vital statuses.
type ThresholdClassifier struct {
	table ThresholdTable
}

func NewThresholdClassifier(table ThresholdTable) (*ThresholdClassifier, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &ThresholdClassifier{table: table}, nil
}

// Classify returns exactly one status per vital in models.VitalOrder.
func (c *ThresholdClassifier) Classify(s models.VitalSnapshot) []models.VitalStatus {
	return []models.VitalStatus{
		c.bloodPressure(s),
		c.single(models.VitalBloodSugar, c.table.BloodSugar, s.BloodSugar),
		c.single(models.VitalTemperature, c.table.Temperature, s.BodyTemp),
		c.single(models.VitalHeartRate, c.table.HeartRate, s.HeartRate),
	}
}

// bloodPressure takes the worse of the systolic and diastolic bands. On a
// tie the side inside its range wins over a below-range one, then systolic.
func (c *ThresholdClassifier) bloodPressure(s models.VitalSnapshot) models.VitalStatus {
	sys, sysBelow := c.table.Systolic.Lookup(s.SystolicBP)
	dia, diaBelow := c.table.Diastolic.Lookup(s.DiastolicBP)

	band, below := sys, sysBelow
	switch ds, ss := dia.Status.Severity(), sys.Status.Severity(); {
	case ds > ss, ds == ss && sysBelow && !diaBelow:
		band, below = dia, diaBelow
	}
	return models.VitalStatus{
		Vital:      models.VitalBloodPressure,
		Value:      models.FormatBloodPressure(s.SystolicBP, s.DiastolicBP),
		Status:     band.Status,
		Detail:     band.Detail,
		BelowRange: below,
	}
}

func (c *ThresholdClassifier) single(v models.Vital, scale Scale, value float64) models.VitalStatus {
	band, below := scale.Lookup(value)
	return models.VitalStatus{
		Vital:      v,
		Value:      models.FormatValue(value),
		Status:     band.Status,
		Detail:     band.Detail,
		BelowRange: below,
	}
}
