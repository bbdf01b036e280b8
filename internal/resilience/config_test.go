package resilience

import (
	"testing"
	"time"
)

func TestFromRetryConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg := FromRetryConfig(0, 0, 0, 0, 0)
	def := DefaultRetryConfig()

	if cfg.MaxAttempts != def.MaxAttempts {
		t.Errorf("expected default max attempts %d, got %d", def.MaxAttempts, cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != def.InitialBackoff {
		t.Errorf("expected default initial backoff %v, got %v", def.InitialBackoff, cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != def.MaxBackoff {
		t.Errorf("expected default max backoff %v, got %v", def.MaxBackoff, cfg.MaxBackoff)
	}
	if cfg.Multiplier != def.Multiplier {
		t.Errorf("expected default multiplier %v, got %v", def.Multiplier, cfg.Multiplier)
	}
	if cfg.JitterFraction != def.JitterFraction {
		t.Errorf("expected default jitter %v, got %v", def.JitterFraction, cfg.JitterFraction)
	}
}

func TestFromRetryConfig_Overrides(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 2000, 1.5, 0.1)

	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("expected 100ms initial backoff, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 2*time.Second {
		t.Errorf("expected 2s max backoff, got %v", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 1.5 {
		t.Errorf("expected multiplier 1.5, got %v", cfg.Multiplier)
	}
	if cfg.JitterFraction != 0.1 {
		t.Errorf("expected jitter 0.1, got %v", cfg.JitterFraction)
	}
}

func TestFromRetryConfig_NegativeJitterDisablesJitter(t *testing.T) {
	cfg := FromRetryConfig(0, 0, 0, 0, -1)
	if cfg.JitterFraction != 0 {
		t.Errorf("expected jitter disabled, got %v", cfg.JitterFraction)
	}

	// Backoff must be deterministic with jitter disabled.
	cfg.InitialBackoff = 100 * time.Millisecond
	cfg.Multiplier = 2.0
	cfg = applyDefaults(cfg)
	first := computeBackoff(1, cfg)
	for i := 0; i < 10; i++ {
		if d := computeBackoff(1, cfg); d != first {
			t.Fatalf("expected constant delay %v, got %v", first, d)
		}
	}
}

func TestFromCircuitConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg := FromCircuitConfig(0, 0)
	def := DefaultCircuitBreakerConfig()

	if cfg.FailureThreshold != def.FailureThreshold {
		t.Errorf("expected default failure threshold %d, got %d", def.FailureThreshold, cfg.FailureThreshold)
	}
	if cfg.ResetTimeout != def.ResetTimeout {
		t.Errorf("expected default reset timeout %v, got %v", def.ResetTimeout, cfg.ResetTimeout)
	}
}

func TestFromCircuitConfig_Overrides(t *testing.T) {
	cfg := FromCircuitConfig(2, 5)
	if cfg.FailureThreshold != 2 {
		t.Errorf("expected failure threshold 2, got %d", cfg.FailureThreshold)
	}
	if cfg.ResetTimeout != 5*time.Second {
		t.Errorf("expected 5s reset timeout, got %v", cfg.ResetTimeout)
	}
}
