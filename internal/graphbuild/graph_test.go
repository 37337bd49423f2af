package graphbuild

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func TestBuildGraphConsistency(t *testing.T) {
	txs := []*models.NormalizedTransaction{
		{ID: "t1", Date: "2024-01-01", Amount: money.MustParse("-150.00"), Direction: "DEBIT", Channel: models.ChannelTransfer, CounterpartyClean: "ACME SP Z O O"},
		{ID: "t2", Date: "2024-01-02", Amount: money.MustParse("5000.00"), Direction: "CREDIT", Channel: models.ChannelTransfer, CounterpartyClean: "EMPLOYER SA"},
		{ID: "t3", Date: "2024-01-03", Amount: money.MustParse("-800.00"), Direction: "DEBIT", Channel: models.ChannelCard, CounterpartyClean: "ACME SP Z O O"},
	}

	g := Build(txs)

	nodeIDs := make(map[string]struct{})
	for _, n := range g.Nodes {
		nodeIDs[n.ID] = struct{}{}
	}
	totalTxCount := 0
	for _, e := range g.Edges {
		totalTxCount += e.TxCount
		if _, ok := nodeIDs[e.Source]; !ok {
			t.Fatalf("edge source %q not in node set", e.Source)
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			t.Fatalf("edge target %q not in node set", e.Target)
		}
	}
	if g.Stats.TotalEdges > totalTxCount {
		t.Fatalf("total_edges %d exceeds sum of edge tx counts %d", g.Stats.TotalEdges, totalTxCount)
	}
}

func TestRiskLevelMonotonicEscalation(t *testing.T) {
	r := models.RiskNone
	r = r.Escalate(models.RiskLow)
	if r != models.RiskLow {
		t.Fatalf("expected RiskLow, got %s", r)
	}
	r = r.Escalate(models.RiskNone)
	if r != models.RiskLow {
		t.Fatalf("escalate must never lower risk level, got %s", r)
	}
	r = r.Escalate(models.RiskHigh)
	if r != models.RiskHigh {
		t.Fatalf("expected RiskHigh, got %s", r)
	}
}
