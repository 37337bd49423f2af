package parser

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func TestCrossValidateMatchesByDateAndAmount(t *testing.T) {
	mt940 := []models.RawTransaction{
		{Date: "2024-01-02", Amount: money.MustParse("-150.00")},
		{Date: "2024-01-03", Amount: money.MustParse("5000.00")},
	}
	pdf := []models.RawTransaction{
		{Date: "2024-01-02", Amount: money.MustParse("-150.00")},
		{Date: "2024-01-05", Amount: money.MustParse("-800.00")},
	}

	report := CrossValidate(nil, mt940, nil, pdf)
	if report.MatchedCount != 1 {
		t.Fatalf("expected 1 match, got %d", report.MatchedCount)
	}
	if len(report.MT940OnlyDate) != 1 || len(report.PDFOnlyDate) != 1 {
		t.Errorf("expected 1 unmatched on each side, got mt940=%d pdf=%d", len(report.MT940OnlyDate), len(report.PDFOnlyDate))
	}
}
