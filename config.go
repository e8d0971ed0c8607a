package backline

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modbotlabs/backline/store"
)

// FileConfig is the YAML-loadable configuration for the whole
// communication layer. Durations are millisecond integers so the file
// shape matches the API shape.
type FileConfig struct {
	Client         ClientConfig      `yaml:"client" json:"client"`
	CircuitBreaker BreakerFileConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Cache          CacheFileConfig   `yaml:"cache" json:"cache"`
	Store          store.Config      `yaml:"store" json:"store"`
}

// ClientConfig holds the outbound API client settings.
type ClientConfig struct {
	BaseURL                string  `yaml:"base_url" json:"base_url"`
	APIKey                 string  `yaml:"api_key" json:"api_key"`
	TimeoutMs              int     `yaml:"timeout_ms" json:"timeout_ms"`
	MaxRetries             *int    `yaml:"max_retries" json:"max_retries"`
	RetryDelayMs           int     `yaml:"retry_delay_ms" json:"retry_delay_ms"`
	RetryBackoffMultiplier float64 `yaml:"retry_backoff_multiplier" json:"retry_backoff_multiplier"`
	EnableCircuitBreaker   *bool   `yaml:"enable_circuit_breaker" json:"enable_circuit_breaker"`
	EnableAuditLogging     *bool   `yaml:"enable_audit_logging" json:"enable_audit_logging"`
	// Mock selects the in-memory fake backend instead of real HTTP.
	Mock bool `yaml:"mock" json:"mock"`
}

// BreakerFileConfig holds per-endpoint breaker thresholds.
type BreakerFileConfig struct {
	FailureThreshold   int `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeoutMs  int `yaml:"recovery_timeout_ms" json:"recovery_timeout_ms"`
	SuccessThreshold   int `yaml:"success_threshold" json:"success_threshold"`
	MonitoringWindowMs int `yaml:"monitoring_window_ms" json:"monitoring_window_ms"`
}

// CacheFileConfig holds the lookup cache settings.
type CacheFileConfig struct {
	TTLMs   int    `yaml:"ttl_ms" json:"ttl_ms"`
	MaxSize int    `yaml:"max_size" json:"max_size"`
	Name    string `yaml:"name" json:"name"`
}

// Timeout returns the client timeout, defaulting to 30s.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RetryDelay returns the initial backoff, defaulting to 1s.
func (c ClientConfig) RetryDelay() time.Duration {
	if c.RetryDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Breaker converts the file shape into a BreakerConfig, filling
// defaults for unset fields.
func (b BreakerFileConfig) Breaker() BreakerConfig {
	cfg := DefaultBreakerConfig()
	if b.FailureThreshold > 0 {
		cfg.FailureThreshold = b.FailureThreshold
	}
	if b.RecoveryTimeoutMs > 0 {
		cfg.RecoveryTimeout = time.Duration(b.RecoveryTimeoutMs) * time.Millisecond
	}
	if b.SuccessThreshold > 0 {
		cfg.SuccessThreshold = b.SuccessThreshold
	}
	if b.MonitoringWindowMs > 0 {
		cfg.MonitoringWindow = time.Duration(b.MonitoringWindowMs) * time.Millisecond
	}
	return cfg
}

// CacheConfig converts the file shape into a CacheConfig.
func (c CacheFileConfig) CacheConfig() CacheConfig {
	return CacheConfig{
		TTL:     time.Duration(c.TTLMs) * time.Millisecond,
		MaxSize: c.MaxSize,
		Name:    c.Name,
	}
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable value; unknown variables are left intact.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// LoadConfig reads a YAML configuration file, applies environment
// variable substitution and validates the result.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfigBytes(data)
}

// LoadConfigBytes parses configuration from raw YAML bytes. Useful for
// testing.
func LoadConfigBytes(data []byte) (*FileConfig, error) {
	expanded := expandEnvVars(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (fc *FileConfig) validate() error {
	if fc.Client.BaseURL == "" && !fc.Client.Mock {
		return fmt.Errorf("client.base_url is required unless client.mock is set")
	}
	if fc.Client.MaxRetries != nil && *fc.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must be non-negative")
	}
	if fc.Client.RetryBackoffMultiplier < 0 {
		return fmt.Errorf("client.retry_backoff_multiplier must be non-negative")
	}
	if fc.Store.Type == store.TypeFile && fc.Store.FilePath == "" {
		return fmt.Errorf("store.file_path is required for the file backend")
	}
	return nil
}

// ClientOptions translates the file configuration into client options.
// The caller appends logger, metrics or transport options as needed.
func (fc *FileConfig) ClientOptions() []Option {
	opts := []Option{
		WithAPIKey(fc.Client.APIKey),
		WithTimeout(fc.Client.Timeout()),
		WithRetryDelay(fc.Client.RetryDelay()),
		WithCircuitBreaker(fc.CircuitBreaker.Breaker()),
	}
	if fc.Client.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*fc.Client.MaxRetries))
	}
	if fc.Client.RetryBackoffMultiplier > 0 {
		opts = append(opts, WithBackoffMultiplier(fc.Client.RetryBackoffMultiplier))
	}
	if fc.Client.EnableCircuitBreaker != nil && !*fc.Client.EnableCircuitBreaker {
		opts = append(opts, WithoutCircuitBreaker())
	}
	if fc.Client.EnableAuditLogging != nil {
		opts = append(opts, WithAuditLogging(*fc.Client.EnableAuditLogging))
	}
	if fc.Client.Mock {
		opts = append(opts, WithTransport(NewMockTransport()))
	}
	return opts
}
