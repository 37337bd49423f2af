// Package config loads the rule-engine's declarative configuration (§4.6)
// from YAML, keeping a process-wide cached pointer that hot-reloads via an
// atomic swap, mirroring the teacher's package-level state conventions
// adapted from a single-purpose config to this module's rule config.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// CategoryRules maps subcategory name to its list of regex patterns.
type CategoryRules map[string][]string

// RiskDictionary maps a risk tag name to its list of regex patterns.
type RiskDictionary map[string][]string

// Scoring maps an uppercased tag to its integer score delta.
type Scoring map[string]int

// URLDomainRule is the (category, subcategory) assigned to a known domain.
type URLDomainRule struct {
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
}

// AnomalyThresholds carries the tunable thresholds used by the anomaly
// detector (§4.8); zero values are replaced by DefaultAnomalyThresholds.
type AnomalyThresholds struct {
	OutlierZScore        float64 `yaml:"outlier_zscore"`
	NewCounterpartyPct    float64 `yaml:"new_cp_large_pct"`
	P2PBurstCount         int     `yaml:"p2p_burst_count"`
	CashClusterCount      int     `yaml:"cash_cluster_count"`
	SpendingOverIncomePct float64 `yaml:"spending_over_income_pct"`
}

// RulesConfig is the top-level rule-engine configuration document.
type RulesConfig struct {
	Version        string                   `yaml:"version"`
	Scoring        Scoring                  `yaml:"scoring"`
	Categories     map[string]CategoryRules `yaml:"categories"`
	RiskDictionary RiskDictionary           `yaml:"risk_dictionary"`
	URLDomains     map[string]URLDomainRule `yaml:"url_domains"`
	Anomaly        AnomalyThresholds        `yaml:"anomaly"`
}

// DefaultAnomalyThresholds are applied whenever a config omits the field
// (zero value), matching the Python original's default argument values.
var DefaultAnomalyThresholds = AnomalyThresholds{
	OutlierZScore:         2.5,
	NewCounterpartyPct:    0.3,
	P2PBurstCount:         5,
	CashClusterCount:      3,
	SpendingOverIncomePct: 1.2,
}

// defaultRules is the minimal built-in scoring table used when no config
// file is available, per §4.6's "Missing config falls back to..." clause.
func defaultRules() *RulesConfig {
	return &RulesConfig{
		Version: "builtin-0",
		Scoring: Scoring{
			"CRYPTO_RELATED":         25,
			"GAMBLING":               30,
			"LARGE_OUTLIER":          20,
			"NEW_COUNTERPARTY_LARGE": 15,
			"P2P_BURST":              15,
			"CASH_CLUSTER":           10,
			"SPENDING_OVER_INCOME":   10,
			"WHITELIST_MATCH":        -10,
			"BLACKLIST_MATCH":        30,
		},
		Categories: map[string]CategoryRules{
			"crypto": {
				"exchange": {`(?i)\bzonda\b`, `(?i)\bbinance\b`, `(?i)\bkraken\b`, `(?i)\bcoinbase\b`, `(?i)\bbitbay\b`},
			},
			"gambling": {
				"bookmaker": {`(?i)\bsts\b`, `(?i)betclic`, `(?i)fortuna`, `(?i)totalbet`, `(?i)etoto`},
			},
		},
		RiskDictionary: RiskDictionary{
			"crypto":   {`(?i)krypto`, `(?i)crypto`, `(?i)bitcoin`},
			"gambling": {`(?i)zaklad`, `(?i)kasyno`, `(?i)casino`, `(?i)bukmacher`},
		},
		URLDomains: map[string]URLDomainRule{},
		Anomaly:    DefaultAnomalyThresholds,
	}
}

func applyDefaults(c *RulesConfig) {
	if c.Anomaly.OutlierZScore == 0 {
		c.Anomaly.OutlierZScore = DefaultAnomalyThresholds.OutlierZScore
	}
	if c.Anomaly.NewCounterpartyPct == 0 {
		c.Anomaly.NewCounterpartyPct = DefaultAnomalyThresholds.NewCounterpartyPct
	}
	if c.Anomaly.P2PBurstCount == 0 {
		c.Anomaly.P2PBurstCount = DefaultAnomalyThresholds.P2PBurstCount
	}
	if c.Anomaly.CashClusterCount == 0 {
		c.Anomaly.CashClusterCount = DefaultAnomalyThresholds.CashClusterCount
	}
	if c.Anomaly.SpendingOverIncomePct == 0 {
		c.Anomaly.SpendingOverIncomePct = DefaultAnomalyThresholds.SpendingOverIncomePct
	}
}

// Load reads and parses a rules config file. Missing file or parse error
// both fall back to the built-in table, as spec'd; parse errors are
// returned alongside the fallback so callers can log them.
func Load(path string) (*RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultRules(), fmt.Errorf("config: read %s: %w", path, err)
	}
	var c RulesConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return defaultRules(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&c)
	return &c, nil
}

// Store holds the process-wide rule config behind a read/write lock, with
// reload implemented as an atomic pointer swap per §5's concurrency model.
type Store struct {
	mu  sync.RWMutex
	cfg *RulesConfig
}

// NewStore wraps an already-loaded config.
func NewStore(cfg *RulesConfig) *Store {
	return &Store{cfg: cfg}
}

// Get returns the currently active config.
func (s *Store) Get() *RulesConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload loads path and swaps it in; on error the previous config remains
// active and the error is returned to the caller.
func (s *Store) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
