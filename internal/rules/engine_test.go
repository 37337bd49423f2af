package rules

import (
	"strings"
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.NewStore(defaultRulesForTest()))
}

func defaultRulesForTest() *config.RulesConfig {
	cfg, _ := config.Load("/nonexistent-path-for-fallback")
	return cfg
}

// S3: crypto counterparty produces the crypto category and an explain entry.
func TestClassifyCryptoFlag(t *testing.T) {
	e := testEngine(t)
	tx := &models.NormalizedTransaction{
		CounterpartyClean: "ZONDA SP Z O O",
		Amount:            money.MustParse("-500.00"),
	}
	e.Classify(tx, models.LabelNeutral)

	if !tx.HasRiskTag("crypto") {
		t.Fatalf("expected crypto risk tag, got %v", tx.RiskTags)
	}
	if tx.Category != "crypto" {
		t.Fatalf("expected category crypto, got %q", tx.Category)
	}
	found := false
	for _, ex := range tx.RuleExplains {
		if strings.HasPrefix(ex.Rule, "category:crypto:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a category:crypto: explain entry, got %+v", tx.RuleExplains)
	}
}

// S4: whitelisting the same transaction clamps the score to zero, never negative.
func TestClassifyWhitelistZeroFloor(t *testing.T) {
	e := testEngine(t)
	tx := &models.NormalizedTransaction{
		CounterpartyClean: "ZONDA SP Z O O",
		Amount:            money.MustParse("-500.00"),
	}
	e.Classify(tx, models.LabelWhitelist)

	if !tx.IsWhitelisted {
		t.Fatalf("expected IsWhitelisted=true")
	}
	if tx.RiskScore != 0 {
		t.Fatalf("expected clamped riskScore=0, got %d", tx.RiskScore)
	}
}

func TestLookupWeightFallbackChain(t *testing.T) {
	s := config.Scoring{"CRYPTO": 25}
	if w := lookupWeight(s, "RISK:crypto"); w != 25 {
		t.Fatalf("expected 25 via RISK: prefix strip, got %d", w)
	}
}
