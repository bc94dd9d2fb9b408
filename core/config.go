// Package core provides the ambient stack shared by every FlipSync
// component: structured logging, the telemetry/memory seams, the error
// taxonomy, and process-wide configuration. It carries no domain logic.
package core

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every configuration knob used across the runtime:
// analytics/prediction windows, per-marketplace sync tuning, cache TTLs,
// offline-buffer caps, and approval thresholds. Layered precedence is
// defaults (struct tags) -> environment variables (envconfig) -> functional
// Options -> Validate().
type Config struct {
	ServiceName string `envconfig:"FLIPSYNC_SERVICE_NAME" default:"flipsync"`
	Namespace   string `envconfig:"FLIPSYNC_NAMESPACE" default:"default"`

	Logging    LoggingConfig
	Telemetry  TelemetryConfig
	Redis      RedisConfig
	Decision   DecisionConfig
	Approval   ApprovalConfig
	Executive  ExecutiveConfig
	Sync       SyncConfig
	Analytics  AnalyticsConfig
}

type LoggingConfig struct {
	Level  string `envconfig:"FLIPSYNC_LOG_LEVEL" default:"info"`
	Format string `envconfig:"FLIPSYNC_LOG_FORMAT" default:"json"`
	Output string `envconfig:"FLIPSYNC_LOG_OUTPUT" default:"stdout"`
}

type TelemetryConfig struct {
	Enabled      bool    `envconfig:"FLIPSYNC_TELEMETRY_ENABLED" default:"false"`
	ServiceName  string  `envconfig:"FLIPSYNC_TELEMETRY_SERVICE_NAME" default:"flipsync"`
	SamplingRate float64 `envconfig:"FLIPSYNC_TELEMETRY_SAMPLING_RATE" default:"1.0"`
}

// RedisConfig backs the optional distributed memory / offline-buffer
// persistence. Discovery/registry durability is opt-in: when URL is empty
// the agent registry runs without a mirror and the decision offline
// buffers stay in process memory.
type RedisConfig struct {
	URL string `envconfig:"FLIPSYNC_REDIS_URL"`
}

// DecisionConfig configures the Decision Pipeline (component D).
type DecisionConfig struct {
	MaxOfflineBuffer  int           `envconfig:"FLIPSYNC_DECISION_OFFLINE_BUFFER_CAP" default:"10000"`
	DefaultMaxRetries int           `envconfig:"FLIPSYNC_DECISION_MAX_RETRIES" default:"3"`
	HistoryRetention  time.Duration `envconfig:"FLIPSYNC_DECISION_HISTORY_RETENTION" default:"168h"`
}

// ApprovalConfig configures the Approval Router (component E)'s default
// per-agent-type policy thresholds; individual policies can be overridden
// programmatically via approval.Router.SetPolicy.
type ApprovalConfig struct {
	DefaultAutoApproveThreshold float64 `envconfig:"FLIPSYNC_APPROVAL_AUTO_THRESHOLD" default:"0.85"`
	DefaultEscalationThreshold float64 `envconfig:"FLIPSYNC_APPROVAL_ESCALATION_THRESHOLD" default:"0.4"`
}

// ExecutiveConfig configures the Executive Orchestrator (component G).
type ExecutiveConfig struct {
	StrategicCacheTTL      time.Duration `envconfig:"FLIPSYNC_EXECUTIVE_CACHE_TTL" default:"30m"`
	StrategicCacheSize     int           `envconfig:"FLIPSYNC_EXECUTIVE_CACHE_SIZE" default:"256"`
	CoordinationHistoryCap int           `envconfig:"FLIPSYNC_EXECUTIVE_HISTORY_CAP" default:"500"`
	CostCeilingUSD         float64       `envconfig:"FLIPSYNC_EXECUTIVE_COST_CEILING" default:"0.05"`
}

// SyncConfig configures the Cross-Marketplace Sync & Order Engine
// (component I).
type SyncConfig struct {
	SyncInterval         time.Duration `envconfig:"FLIPSYNC_SYNC_INTERVAL" default:"5m"`
	BatchSize            int           `envconfig:"FLIPSYNC_SYNC_BATCH_SIZE" default:"50"`
	RateLimitPerSecond   int           `envconfig:"FLIPSYNC_SYNC_RATE_LIMIT" default:"10"`
	RebalanceInterval    time.Duration `envconfig:"FLIPSYNC_REBALANCE_INTERVAL" default:"1h"`
	FulfillmentQueueSize int           `envconfig:"FLIPSYNC_FULFILLMENT_QUEUE_SIZE" default:"1000"`
	RetentionWindow      time.Duration `envconfig:"FLIPSYNC_SYNC_RETENTION_WINDOW" default:"168h"`
}

// AnalyticsConfig tunes the Sync Engine's correlation and alerting loops
// (syncengine.Engine.StartAnalyticsEngine/StartAlertingSystem).
type AnalyticsConfig struct {
	WindowHours             int           `envconfig:"FLIPSYNC_ANALYTICS_WINDOW_HOURS" default:"24"`
	PredictionHorizon       time.Duration `envconfig:"FLIPSYNC_PREDICTION_HORIZON" default:"24h"`
	CorrelationWindow       time.Duration `envconfig:"FLIPSYNC_CORRELATION_WINDOW" default:"15m"`
	MaxAlertsPerCorrelation int           `envconfig:"FLIPSYNC_MAX_ALERTS_PER_CORRELATION" default:"10"`
	SuppressionWindow       time.Duration `envconfig:"FLIPSYNC_SUPPRESSION_WINDOW" default:"30m"`
}

// Option mutates a Config after environment loading. Options run in order
// and can fail validation collectively at the end of NewConfig.
type Option func(*Config) error

func WithServiceName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("%w: service name must not be empty", ErrInvalidConfig)
		}
		c.ServiceName = name
		return nil
	}
}

func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		return nil
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// DefaultConfig returns a Config populated from struct-tag defaults,
// overlaid with any FLIPSYNC_ environment variables that are set; the
// environment is not bypassed. Unlike NewConfig it applies no Options,
// does not call Validate, and ignores load errors.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = envconfig.Process("", cfg)
	return cfg
}

// NewConfig loads defaults, overlays environment variables (envconfig scans
// FLIPSYNC_ prefixed vars via the explicit envconfig tags above), applies
// functional options, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make downstream components
// misbehave silently (a 0-size queue, a negative threshold).
func (c *Config) Validate() error {
	if c.Approval.DefaultAutoApproveThreshold < 0 || c.Approval.DefaultAutoApproveThreshold > 1 {
		return fmt.Errorf("%w: approval auto-approve threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.Approval.DefaultEscalationThreshold < 0 || c.Approval.DefaultEscalationThreshold > 1 {
		return fmt.Errorf("%w: approval escalation threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.Sync.FulfillmentQueueSize <= 0 {
		return fmt.Errorf("%w: fulfillment queue size must be positive", ErrInvalidConfig)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("%w: sync batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewLogger builds the configured Logger implementation.
func (c *Config) NewLogger() Logger {
	return NewProductionLogger(c.Logging, c.ServiceName)
}
