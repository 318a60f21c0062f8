// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Model         ModelConfig             `mapstructure:"model"`
	Thresholds    ThresholdsConfig        `mapstructure:"thresholds"`
	Alerts        AlertsConfig            `mapstructure:"alerts"`
	Escalation    EscalationConfig        `mapstructure:"escalation"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// EscalationConfig, when Message is set, routes high-risk API results into
// a BPMN process by publishing that message instead of alerting directly.
type EscalationConfig struct {
	Message string `mapstructure:"message"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	RetentionDays  int    `mapstructure:"retention_days"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single URL, used when addresses is empty
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Assessment Configuration ---

// ModelConfig selects the classifier runtime. RemoteURL wins over Path when
// both are set.
type ModelConfig struct {
	Path      string `mapstructure:"path"`
	RemoteURL string `mapstructure:"remote_url"`
	Timeout   int    `mapstructure:"timeout"`   // milliseconds, per inference
	CacheTTL  int    `mapstructure:"cache_ttl"` // seconds, 0 disables the prediction cache
	Version   string `mapstructure:"version"`   // overrides the artifact's own version
}

// ThresholdsConfig overrides boundary tables per scale. Keys are systolic,
// diastolic, blood_sugar, temperature and heart_rate; a missing key keeps
// the built-in table.
type ThresholdsConfig map[string][]BandConfig

// BandConfig is one row of a boundary table. Bands are listed in ascending
// order; Max nil marks the open top band.
type BandConfig struct {
	Status string   `mapstructure:"status"`
	Max    *float64 `mapstructure:"max"`
	Closed bool     `mapstructure:"closed"`
	Detail string   `mapstructure:"detail"`
}

// AlertsConfig holds care-team notification settings.
type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	AWS     struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
}

type HTTPConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// RegistryConfig points at the activity registry maintained by registry-updater.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
