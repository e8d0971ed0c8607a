package backline

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorRecordsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequest("GET", "https://api.example.com/cases", 200, 50*time.Millisecond)
	mc.RecordRequest("GET", "https://api.example.com/cases", 200, 30*time.Millisecond)
	mc.RecordRequest("POST", "https://api.example.com/cases", 500, 10*time.Millisecond)

	got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "https://api.example.com/cases"))
	if got != 2 {
		t.Errorf("Expected 2 GET 200 requests, got %v", got)
	}
	got = testutil.ToFloat64(mc.requestsTotal.WithLabelValues("POST", "500", "https://api.example.com/cases"))
	if got != 1 {
		t.Errorf("Expected 1 POST 500 request, got %v", got)
	}
}

func TestMetricsCollectorInFlight(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequestStart("GET", "https://api.example.com/ping")
	mc.RecordRequestStart("GET", "https://api.example.com/ping")

	gauge := mc.requestsInFlight.WithLabelValues("GET", "https://api.example.com/ping")
	if got := testutil.ToFloat64(gauge); got != 2 {
		t.Errorf("Expected 2 in flight, got %v", got)
	}

	mc.RecordRequestEnd("GET", "https://api.example.com/ping")
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("Expected 1 in flight after end, got %v", got)
	}
}

func TestMetricsCollectorBreakerState(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordCircuitBreakerState("https://api.example.com/ping", StateOpen)

	got := testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("https://api.example.com/ping"))
	if got != float64(StateOpen) {
		t.Errorf("Expected breaker state gauge %v, got %v", float64(StateOpen), got)
	}
}

func TestMetricsCollectorCacheCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordCacheHit("cases")
	mc.RecordCacheHit("cases")
	mc.RecordCacheMiss("cases")
	mc.RecordCacheEviction("cases")
	mc.RecordCacheSize("cases", 7)

	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("cases")); got != 2 {
		t.Errorf("Expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("cases")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheEvictions.WithLabelValues("cases")); got != 1 {
		t.Errorf("Expected 1 eviction, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheSize.WithLabelValues("cases")); got != 7 {
		t.Errorf("Expected cache size 7, got %v", got)
	}
}

func TestMetricsCollectorErrorsByType(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordError(ErrorTypeTimeout, "GET", "https://api.example.com/slow")
	mc.RecordError(ErrorTypeTimeout, "GET", "https://api.example.com/slow")

	got := testutil.ToFloat64(mc.errorsTotal.WithLabelValues(ErrorTypeTimeout, "GET", "https://api.example.com/slow"))
	if got != 2 {
		t.Errorf("Expected 2 timeout errors, got %v", got)
	}
}

func TestMetricsCollectorNilSafe(t *testing.T) {
	var mc *MetricsCollector

	// None of these may panic on a nil collector.
	mc.RecordRequest("GET", "e", 200, time.Second)
	mc.RecordRequestStart("GET", "e")
	mc.RecordRequestEnd("GET", "e")
	mc.RecordRetry("GET", "e", 1)
	mc.RecordCircuitBreakerState("e", StateClosed)
	mc.RecordCacheHit("c")
	mc.RecordCacheMiss("c")
	mc.RecordCacheEviction("c")
	mc.RecordCacheSize("c", 0)
	mc.RecordError(ErrorTypeServer, "GET", "e")
}

func TestCacheMirrorsCountersToMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	c, err := NewCache[string, int](CacheConfig{Name: "perm", Metrics: mc})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	c.Set("u1", 3)
	c.Get("u1")
	c.Get("u2")

	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("perm")); got != 1 {
		t.Errorf("Expected 1 mirrored hit, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("perm")); got != 1 {
		t.Errorf("Expected 1 mirrored miss, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheSize.WithLabelValues("perm")); got != 1 {
		t.Errorf("Expected mirrored size 1, got %v", got)
	}
}
