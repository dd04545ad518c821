package bastion

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bastionpool/bastion/policy"
	"github.com/bastionpool/bastion/types"
)

// PoolConfig holds configuration for the connection pool.
type PoolConfig struct {
	// MinConnections is the number of sessions created eagerly at startup
	// and maintained by backfilling after destroys.
	MinConnections int `yaml:"min_connections"`

	// MaxConnections caps the total number of sessions (idle + active +
	// in-flight creations).
	MaxConnections int `yaml:"max_connections"`

	// AcquireTimeout bounds how long an Acquire waits in the queue before
	// failing with AcquireTimeoutError.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// IdleTimeout is how long a session may sit idle before the eviction
	// sweep destroys it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxLifetime is the maximum age of a session. Sessions past it are
	// destroyed on release or by the eviction sweep, regardless of use.
	MaxLifetime time.Duration `yaml:"max_lifetime"`

	// HealthCheckInterval is how often idle sessions are probed.
	// Zero disables the health sweep.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`

	// EvictionInterval is how often the eviction sweep runs.
	EvictionInterval time.Duration `yaml:"eviction_interval"`

	// DrainTimeout bounds how long Close waits for active sessions before
	// force-closing them. Drain takes its bound from the caller's context
	// instead.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// ValidationQuery is the statement adapters run to verify liveness,
	// e.g. "SELECT 1". Interpreted by the ValidationProbe, not the pool.
	ValidationQuery string `yaml:"validation_query"`

	// MaxPendingAcquires caps the acquire wait queue. When the queue is at
	// this bound, Acquire fails fast with ErrPoolExhausted.
	// Zero means unbounded.
	MaxPendingAcquires int `yaml:"max_pending_acquires"`
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
//
// Defaults: min=2, max=10, acquireTimeout=30s, idleTimeout=10m,
// maxLifetime=30m, healthCheckInterval=1m, evictionInterval=30s,
// drainTimeout=30s, validationQuery="SELECT 1".
//
// Returns:
//   - PoolConfig: Configuration with default settings
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConnections:      2,
		MaxConnections:      10,
		AcquireTimeout:      30 * time.Second,
		IdleTimeout:         10 * time.Minute,
		MaxLifetime:         30 * time.Minute,
		HealthCheckInterval: time.Minute,
		EvictionInterval:    30 * time.Second,
		DrainTimeout:        30 * time.Second,
		ValidationQuery:     "SELECT 1",
	}
}

// Validate checks the configuration for consistency.
//
// Returns:
//   - error: A *types.ConfigurationError describing the first invalid field,
//     or nil if the configuration is valid
func (c PoolConfig) Validate() error {
	if c.MinConnections < 0 {
		return &types.ConfigurationError{Field: "min_connections", Reason: "must not be negative"}
	}
	if c.MaxConnections < 1 {
		return &types.ConfigurationError{Field: "max_connections", Reason: "must be at least 1"}
	}
	if c.MinConnections > c.MaxConnections {
		return &types.ConfigurationError{Field: "min_connections", Reason: "must not exceed max_connections"}
	}
	if c.AcquireTimeout <= 0 {
		return &types.ConfigurationError{Field: "acquire_timeout", Reason: "must be positive"}
	}
	if c.IdleTimeout < 0 {
		return &types.ConfigurationError{Field: "idle_timeout", Reason: "must not be negative"}
	}
	if c.MaxLifetime < 0 {
		return &types.ConfigurationError{Field: "max_lifetime", Reason: "must not be negative"}
	}
	if c.HealthCheckInterval < 0 {
		return &types.ConfigurationError{Field: "health_check_interval", Reason: "must not be negative"}
	}
	if c.EvictionInterval <= 0 {
		return &types.ConfigurationError{Field: "eviction_interval", Reason: "must be positive"}
	}
	if c.MaxPendingAcquires < 0 {
		return &types.ConfigurationError{Field: "max_pending_acquires", Reason: "must not be negative"}
	}

	return nil
}

// BreakerConfig holds circuit breaker configuration for file-based setups.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// Options converts the config into circuit breaker options.
//
// Returns:
//   - []policy.CircuitBreakerOption: Options reflecting non-zero fields
func (c BreakerConfig) Options() []policy.CircuitBreakerOption {
	var opts []policy.CircuitBreakerOption
	if c.FailureThreshold > 0 {
		opts = append(opts, policy.WithFailureThreshold(c.FailureThreshold))
	}
	if c.SuccessThreshold > 0 {
		opts = append(opts, policy.WithSuccessThreshold(c.SuccessThreshold))
	}
	if c.ResetTimeout > 0 {
		opts = append(opts, policy.WithResetTimeout(c.ResetTimeout))
	}

	return opts
}

// RetryConfig holds retry configuration for file-based setups.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       *bool         `yaml:"jitter"`
}

// Options converts the config into retrier options.
//
// Returns:
//   - []policy.RetrierOption: Options reflecting non-zero fields
func (c RetryConfig) Options() []policy.RetrierOption {
	var opts []policy.RetrierOption
	if c.MaxRetries > 0 {
		opts = append(opts, policy.WithMaxRetries(c.MaxRetries))
	}
	if c.InitialDelay > 0 {
		opts = append(opts, policy.WithInitialDelay(c.InitialDelay))
	}
	if c.MaxDelay > 0 {
		opts = append(opts, policy.WithMaxDelay(c.MaxDelay))
	}
	if c.Multiplier > 0 {
		opts = append(opts, policy.WithMultiplier(c.Multiplier))
	}
	if c.Jitter != nil {
		opts = append(opts, policy.WithJitter(*c.Jitter))
	}

	return opts
}

// RateLimitConfig holds rate limiter configuration for file-based setups.
type RateLimitConfig struct {
	Limit     int           `yaml:"limit"`
	Remaining int           `yaml:"remaining"`
	Window    time.Duration `yaml:"window"`
}

// Options converts the config into rate limiter options.
//
// Returns:
//   - []policy.RateLimiterOption: Options reflecting non-zero fields
func (c RateLimitConfig) Options() []policy.RateLimiterOption {
	var opts []policy.RateLimiterOption
	if c.Limit > 0 {
		opts = append(opts, policy.WithLimit(c.Limit))
	}
	if c.Window > 0 {
		opts = append(opts, policy.WithWindow(c.Window))
	}
	if c.Remaining > 0 {
		opts = append(opts, policy.WithInitialRemaining(c.Remaining))
	}

	return opts
}

// Config aggregates all bastion configuration for YAML-based setups.
type Config struct {
	Pool      PoolConfig      `yaml:"pool"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// LoadConfig reads configuration from a YAML file.
//
// Unset pool fields are filled from DefaultPoolConfig; breaker, retry, and
// rate-limit sections fall back to their package defaults when omitted.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: The parsed configuration
//   - error: Read, parse, or validation error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{Pool: DefaultPoolConfig()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Pool.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// settings collects everything configurable on a Pool.
type settings struct {
	config    PoolConfig
	probe     ValidationProbe
	logger    types.Logger
	metrics   types.MetricsCollector
	observers []types.SessionObserver
}

// Option configures a Pool.
type Option func(*settings)

// WithPoolConfig sets the pool configuration.
//
// If not set, DefaultPoolConfig is used.
//
// Parameters:
//   - cfg: The pool configuration
//
// Returns:
//   - Option: Configuration option
func WithPoolConfig(cfg PoolConfig) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

// WithValidationProbe sets the probe used for pre-acquire validation and
// the periodic health sweep.
//
// If not set, idle sessions are handed out without probing and the health
// sweep is a no-op.
//
// Parameters:
//   - probe: The validation probe
//
// Returns:
//   - Option: Configuration option
func WithValidationProbe(probe ValidationProbe) Option {
	return func(s *settings) {
		s.probe = probe
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger; see
// contrib/logging/zap.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(s *settings) {
		s.metrics = collector
	}
}

// WithSessionObserver registers a callback for session lifecycle events
// (created, acquired, released, destroyed, evicted, validation_failed).
//
// Observers are invoked synchronously on the goroutine performing the
// transition, outside the pool's internal lock. May be passed multiple
// times to register several observers.
//
// Parameters:
//   - fn: The observer callback
//
// Returns:
//   - Option: Configuration option
func WithSessionObserver(fn types.SessionObserver) Option {
	return func(s *settings) {
		s.observers = append(s.observers, fn)
	}
}
