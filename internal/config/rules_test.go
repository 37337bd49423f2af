package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if cfg.Version != "builtin-0" {
		t.Errorf("expected builtin fallback config, got version %q", cfg.Version)
	}
	if cfg.Anomaly.OutlierZScore != DefaultAnomalyThresholds.OutlierZScore {
		t.Errorf("expected default outlier z-score, got %v", cfg.Anomaly.OutlierZScore)
	}
}

func TestLoadAppliesDefaultsForZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	yaml := `
version: "v1"
scoring:
  CRYPTO_RELATED: 25
anomaly:
  outlier_zscore: 3.0
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anomaly.OutlierZScore != 3.0 {
		t.Errorf("expected configured z-score 3.0, got %v", cfg.Anomaly.OutlierZScore)
	}
	if cfg.Anomaly.P2PBurstCount != DefaultAnomalyThresholds.P2PBurstCount {
		t.Errorf("expected default p2p burst count for unset field, got %v", cfg.Anomaly.P2PBurstCount)
	}
}

func TestStoreReloadSwapsConfig(t *testing.T) {
	s := NewStore(defaultRules())
	if s.Get().Version != "builtin-0" {
		t.Fatalf("expected initial builtin config")
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("version: \"v2\"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := s.Reload(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.Get().Version != "v2" {
		t.Errorf("expected reloaded version v2, got %q", s.Get().Version)
	}
}
