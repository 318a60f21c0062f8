// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"health-risk-workers/internal/common/validation"
)

// LoadRegistry reads a registry file.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// NewRegistry returns an empty registry stamped with the current time.
func NewRegistry(version string) *ActivityRegistry {
	return &ActivityRegistry{
		Version:     version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Activities:  []Activity{},
	}
}

// Save writes the registry as indented JSON, creating parent directories.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity with the given ID.
func (r *ActivityRegistry) Find(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// FindByTaskType returns the activity a job worker of taskType implements.
func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Upsert replaces the activity with the same ID or appends it. It reports
// whether an existing entry was replaced.
func (r *ActivityRegistry) Upsert(a Activity) bool {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if existing, ok := r.Find(a.ID); ok {
		*existing = a
		return true
	}
	r.Activities = append(r.Activities, a)
	return false
}

// Validate checks required fields, ID naming, uniqueness of IDs and task
// types, timeouts and that every declared schema compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]string)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if err := validation.ValidateActivityNaming(activity.ID); err != nil {
			return fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if other, dup := taskTypes[activity.TaskType]; dup {
			return fmt.Errorf("activities %s and %s share task type %s", other, activity.ID, activity.TaskType)
		}
		taskTypes[activity.TaskType] = activity.ID

		if activity.ImplementationStatus != "" && !ValidStatus(activity.ImplementationStatus) {
			return fmt.Errorf("activity %s: unknown implementation status %q", activity.ID, activity.ImplementationStatus)
		}
		if _, err := activity.TimeoutDuration(); err != nil {
			return fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		if activity.Retries < 0 {
			return fmt.Errorf("activity %s: retries must not be negative", activity.ID)
		}
		if err := compileSchema(activity.InputSchema); err != nil {
			return fmt.Errorf("activity %s input schema: %w", activity.ID, err)
		}
		if err := compileSchema(activity.OutputSchema); err != nil {
			return fmt.Errorf("activity %s output schema: %w", activity.ID, err)
		}
	}
	return nil
}

func compileSchema(raw map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	schema, err := validation.GetSchemaFromJSON(string(data))
	if err != nil {
		return err
	}
	_, err = validation.Compile(schema)
	return err
}

// SchemaToMap converts a typed schema into the registry's loose form.
func SchemaToMap(schema validation.JSONSchema) (map[string]interface{}, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	err = json.Unmarshal(data, &out)
	return out, err
}
