// pkg/registry/schema.go
package registry

import (
	"fmt"
	"time"
)

// Implementation states an activity moves through.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusVerified   = "verified"
)

var knownStatuses = map[string]bool{
	StatusPlanned:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusVerified:   true,
}

// ActivityRegistry is the on-disk catalogue of job workers and the process
// variables they read and write.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one Zeebe task type.
type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Workflows            []string               `json:"workflows"`
	Tags                 []string               `json:"tags"`
}

// ValidStatus reports whether s is a known implementation status.
func ValidStatus(s string) bool {
	return knownStatuses[s]
}

// TimeoutDuration parses Timeout. An empty timeout is zero.
func (a Activity) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", a.Timeout)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", a.Timeout)
	}
	return d, nil
}
