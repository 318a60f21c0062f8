// internal/workers/clinical/assess-health-risk/config.go
package assesshealthrisk

import (
	"fmt"
	"time"

	"health-risk-workers/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxRetries    int
	// VitalsVariable names a nested object holding the vitals. Empty means
	// the vitals are top-level process variables.
	VitalsVariable string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appCfg *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}
	wc := config.GetWorkerConfig(appCfg, TaskType)
	cfg.Enabled = wc.Enabled
	cfg.MaxJobsActive = wc.MaxJobsActive
	cfg.Timeout = config.GetDuration(wc.Timeout)
	cfg.MaxRetries = wc.MaxRetries
	return cfg
}
