package extension

import (
	"testing"
	"time"
)

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{StaleAfter: 5 * time.Minute}
	programmatic := Config{
		StaleAfter:        time.Minute,
		ReconcileInterval: time.Hour,
		DisableStart:      true,
	}

	got := mergeConfigurations(yamlCfg, programmatic)

	if got.StaleAfter != 5*time.Minute {
		t.Errorf("StaleAfter = %v, yaml should win", got.StaleAfter)
	}
	if got.ReconcileInterval != time.Hour {
		t.Errorf("ReconcileInterval = %v, programmatic should fill the gap", got.ReconcileInterval)
	}
	if !got.DisableStart {
		t.Error("programmatic DisableStart was dropped")
	}
	if got.CoreTimeout != DefaultConfig().CoreTimeout {
		t.Errorf("CoreTimeout = %v, want default", got.CoreTimeout)
	}
}

func TestMergeWithDefaultsKeepsExplicitValues(t *testing.T) {
	got := mergeWithDefaults(Config{ReconcileConcurrency: 2})
	if got.ReconcileConcurrency != 2 {
		t.Errorf("ReconcileConcurrency = %d, want 2", got.ReconcileConcurrency)
	}
	if got.RecoveryInterval != DefaultConfig().RecoveryInterval {
		t.Errorf("RecoveryInterval = %v, want default", got.RecoveryInterval)
	}
}
