package baseline

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// S5: six P2P transactions on 2024-01-01..2024-01-05 yield exactly one
// P2P_BURST alert with at most 10 evidence IDs.
func TestDetectP2PBurst(t *testing.T) {
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-04", "2024-01-05"}
	var txs []*models.NormalizedTransaction
	for i, d := range dates {
		txs = append(txs, &models.NormalizedTransaction{
			ID:      "tx-" + d + "-" + string(rune('a'+i)),
			Date:    d,
			Amount:  money.MustParse("-50.00"),
			Channel: models.ChannelBlikP2P,
		})
	}

	profiles := Build(txs)
	cfg := config.DefaultAnomalyThresholds
	scoring := config.Scoring{"P2P_BURST": 15}

	alerts := DetectAnomalies(txs, profiles, map[string]struct{}{}, &cfg, scoring)

	count := 0
	for _, a := range alerts {
		if a.AlertType == "P2P_BURST" {
			count++
			if len(a.EvidenceTxIDs) > 10 {
				t.Fatalf("expected at most 10 evidence ids, got %d", len(a.EvidenceTxIDs))
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one P2P_BURST alert, got %d", count)
	}
}

func TestStdDevAndP95(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	mean := Mean(values)
	if mean != 30 {
		t.Fatalf("expected mean 30, got %v", mean)
	}
	if sd := StdDev(values, mean); sd <= 0 {
		t.Fatalf("expected positive stddev, got %v", sd)
	}
	if p := P95(values); p != 50 {
		t.Fatalf("expected p95 50, got %v", p)
	}
}
