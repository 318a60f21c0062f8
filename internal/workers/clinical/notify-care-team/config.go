// internal/workers/clinical/notify-care-team/config.go
package notifycareteam

import (
	"fmt"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/models"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxRetries    int
	// MinRiskLevel is the lowest level that triggers an alert without
	// forceNotify.
	MinRiskLevel models.RiskLevel
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		MinRiskLevel:  models.RiskHigh,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if _, err := models.ParseRiskLevel(string(c.MinRiskLevel)); err != nil {
		return fmt.Errorf("min_risk_level: %w", err)
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
