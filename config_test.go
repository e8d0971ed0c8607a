package backline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modbotlabs/backline/store"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
client:
  base_url: https://api.example.com
  api_key: secret
  timeout_ms: 5000
  max_retries: 2
  retry_delay_ms: 250
  retry_backoff_multiplier: 1.5
circuit_breaker:
  failure_threshold: 3
  recovery_timeout_ms: 10000
cache:
  ttl_ms: 60000
  max_size: 100
  name: cases
store:
  type: memory
  default_ttl_ms: 30000
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Client.BaseURL != "https://api.example.com" {
		t.Errorf("Expected base_url set, got %q", cfg.Client.BaseURL)
	}
	if cfg.Client.Timeout() != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Client.Timeout())
	}
	if cfg.Client.MaxRetries == nil || *cfg.Client.MaxRetries != 2 {
		t.Errorf("Expected max_retries=2, got %v", cfg.Client.MaxRetries)
	}
	if cfg.Client.RetryDelay() != 250*time.Millisecond {
		t.Errorf("Expected retry delay 250ms, got %v", cfg.Client.RetryDelay())
	}

	breaker := cfg.CircuitBreaker.Breaker()
	if breaker.FailureThreshold != 3 {
		t.Errorf("Expected failure_threshold=3, got %d", breaker.FailureThreshold)
	}
	if breaker.RecoveryTimeout != 10*time.Second {
		t.Errorf("Expected recovery timeout 10s, got %v", breaker.RecoveryTimeout)
	}
	// Unset fields fall back to defaults.
	if breaker.SuccessThreshold != DefaultBreakerConfig().SuccessThreshold {
		t.Errorf("Expected default success threshold, got %d", breaker.SuccessThreshold)
	}

	cacheCfg := cfg.Cache.CacheConfig()
	if cacheCfg.TTL != time.Minute || cacheCfg.MaxSize != 100 || cacheCfg.Name != "cases" {
		t.Errorf("Unexpected cache config: %+v", cacheCfg)
	}

	if cfg.Store.Type != store.TypeMemory {
		t.Errorf("Expected memory store, got %q", cfg.Store.Type)
	}
	if cfg.Store.DefaultTTL() != 30*time.Second {
		t.Errorf("Expected store TTL 30s, got %v", cfg.Store.DefaultTTL())
	}
}

func TestLoadConfigEnvSubstitution(t *testing.T) {
	t.Setenv("BACKLINE_TEST_API_KEY", "from-env")

	cfg, err := LoadConfigBytes([]byte(`
client:
  base_url: https://api.example.com
  api_key: ${BACKLINE_TEST_API_KEY}
`))
	if err != nil {
		t.Fatalf("LoadConfigBytes() error = %v", err)
	}

	if cfg.Client.APIKey != "from-env" {
		t.Errorf("Expected env-substituted api key, got %q", cfg.Client.APIKey)
	}
}

func TestLoadConfigUnknownEnvVarLeftIntact(t *testing.T) {
	cfg, err := LoadConfigBytes([]byte(`
client:
  base_url: https://api.example.com
  api_key: ${BACKLINE_TEST_DOES_NOT_EXIST}
`))
	if err != nil {
		t.Fatalf("LoadConfigBytes() error = %v", err)
	}

	if cfg.Client.APIKey != "${BACKLINE_TEST_DOES_NOT_EXIST}" {
		t.Errorf("Expected unknown variable left intact, got %q", cfg.Client.APIKey)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"missing base url",
			`client: {}`,
			"base_url",
		},
		{
			"negative max retries",
			"client:\n  base_url: https://x\n  max_retries: -1",
			"max_retries",
		},
		{
			"file store without path",
			"client:\n  base_url: https://x\nstore:\n  type: file",
			"file_path",
		},
		{
			"invalid yaml",
			"client: [not a map",
			"parsing config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected %q in error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMockModeSkipsBaseURL(t *testing.T) {
	cfg, err := LoadConfigBytes([]byte("client:\n  mock: true"))
	if err != nil {
		t.Fatalf("Expected mock mode without base_url to pass, got %v", err)
	}
	if !cfg.Client.Mock {
		t.Error("Expected mock flag set")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestClientOptionsFromFileConfig(t *testing.T) {
	cfg, err := LoadConfigBytes([]byte(`
client:
  base_url: https://api.example.com
  api_key: secret
  timeout_ms: 2000
  max_retries: 1
  enable_audit_logging: false
circuit_breaker:
  failure_threshold: 2
  recovery_timeout_ms: 5000
  success_threshold: 1
  monitoring_window_ms: 60000
`))
	if err != nil {
		t.Fatalf("LoadConfigBytes() error = %v", err)
	}

	client := New(cfg.Client.BaseURL, cfg.ClientOptions()...)
	if !client.IsValid() {
		t.Fatalf("Expected valid client from file config, got %v", client.ValidationError())
	}
	if client.apiKey != "secret" {
		t.Errorf("Expected api key applied, got %q", client.apiKey)
	}
	if client.timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", client.timeout)
	}
	if client.maxRetries != 1 {
		t.Errorf("Expected maxRetries=1, got %d", client.maxRetries)
	}
	if client.auditEnabled {
		t.Error("Expected audit logging disabled from file config")
	}
	if client.breakers.config.FailureThreshold != 2 {
		t.Errorf("Expected breaker threshold from file, got %d", client.breakers.config.FailureThreshold)
	}
}

func TestClientOptionsMockSelectsFakeTransport(t *testing.T) {
	cfg, err := LoadConfigBytes([]byte("client:\n  mock: true"))
	if err != nil {
		t.Fatalf("LoadConfigBytes() error = %v", err)
	}

	client := New("https://api.internal", cfg.ClientOptions()...)
	if _, ok := client.transport.(*MockTransport); !ok {
		t.Errorf("Expected mock transport, got %T", client.transport)
	}
}

func TestConfigReloaderSwapsOnChange(t *testing.T) {
	path := writeConfigFile(t, "client:\n  base_url: https://before.example.com\n")

	initial, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	reloader := NewConfigReloader(path, initial, nil)

	var got *FileConfig
	reloader.OnReload(func(cfg *FileConfig) { got = cfg })

	if err := os.WriteFile(path, []byte("client:\n  base_url: https://after.example.com\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	if !reloader.Reload() {
		t.Fatal("Expected reload to succeed")
	}
	if reloader.Current().Client.BaseURL != "https://after.example.com" {
		t.Errorf("Expected new config active, got %q", reloader.Current().Client.BaseURL)
	}
	if got == nil || got.Client.BaseURL != "https://after.example.com" {
		t.Error("Expected callback invoked with new config")
	}
}

func TestConfigReloaderKeepsPreviousOnBadConfig(t *testing.T) {
	path := writeConfigFile(t, "client:\n  base_url: https://good.example.com\n")

	initial, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	reloader := NewConfigReloader(path, initial, nil)

	if err := os.WriteFile(path, []byte("client: [broken"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	if reloader.Reload() {
		t.Fatal("Expected reload of broken config to fail")
	}
	if reloader.Current().Client.BaseURL != "https://good.example.com" {
		t.Errorf("Expected previous config kept, got %q", reloader.Current().Client.BaseURL)
	}
}
