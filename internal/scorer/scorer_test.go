package scorer

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func TestScoreClamping(t *testing.T) {
	scoring := config.Scoring{"CRYPTO": 25, "GAMBLING": 30}
	txs := []*models.NormalizedTransaction{
		{ID: "t1", Amount: money.MustParse("-100.00"), RiskTags: []string{"CRYPTO"}},
		{ID: "t2", Amount: money.MustParse("-100.00"), RiskTags: []string{"GAMBLING"}},
	}
	score, reasons := Score(txs, scoring)
	if score < 0 || score > 100 {
		t.Fatalf("expected score in [0,100], got %d", score)
	}
	if len(reasons) == 0 {
		t.Fatalf("expected non-empty reasons")
	}
	for i := 1; i < len(reasons); i++ {
		if reasons[i-1].ScoreDelta < reasons[i].ScoreDelta {
			t.Fatalf("reasons not sorted descending by score_delta")
		}
	}
}

func TestScoreEmpty(t *testing.T) {
	score, reasons := Score(nil, config.Scoring{})
	if score != 0 || len(reasons) != 0 {
		t.Fatalf("expected zero score and no reasons for empty input")
	}
}
