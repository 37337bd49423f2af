package parser

import (
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// CrossValidationReport compares an MT940 parse against a PDF parse of the
// same statement period, per §10's supplemented cross-validation feature.
type CrossValidationReport struct {
	MT940TxCount  int
	PDFTxCount    int
	MatchedCount  int
	MT940OnlyDate []string
	PDFOnlyDate   []string
	BalanceChecks map[string]BalanceCheck
	MatchRatePct  float64
}

// BalanceCheck records whether an MT940 balance field agrees with the
// corresponding PDF-declared value.
type BalanceCheck struct {
	MT940  float64
	PDF    float64
	Match  bool
}

// CrossValidate matches MT940 and PDF transactions by (date, amount) and
// reports balance agreement, mirroring the original implementation's
// cross_validate but returning a typed report instead of a loose dict.
func CrossValidate(mt940Info *models.StatementInfo, mt940Txns []models.RawTransaction, pdfInfo *models.StatementInfo, pdfTxns []models.RawTransaction) CrossValidationReport {
	report := CrossValidationReport{
		MT940TxCount:  len(mt940Txns),
		PDFTxCount:    len(pdfTxns),
		BalanceChecks: make(map[string]BalanceCheck),
	}

	if mt940Info != nil && pdfInfo != nil {
		report.BalanceChecks["opening_balance"] = checkBalance(mt940Info.OpeningBalance, pdfInfo.OpeningBalance)
		report.BalanceChecks["closing_balance"] = checkBalance(mt940Info.ClosingBalance, pdfInfo.ClosingBalance)
	}

	used := make(map[int]bool)
	for _, mt := range mt940Txns {
		found := false
		for j, pdf := range pdfTxns {
			if used[j] {
				continue
			}
			if pdf.Date == mt.Date && pdf.Amount.WithinTolerance(mt.Amount, money.Tolerance01) {
				used[j] = true
				found = true
				report.MatchedCount++
				break
			}
		}
		if !found {
			report.MT940OnlyDate = append(report.MT940OnlyDate, mt.Date)
		}
	}
	for j, pdf := range pdfTxns {
		if !used[j] {
			report.PDFOnlyDate = append(report.PDFOnlyDate, pdf.Date)
		}
	}

	if len(mt940Txns) > 0 {
		report.MatchRatePct = float64(report.MatchedCount) / float64(len(mt940Txns)) * 100
	}
	return report
}

func checkBalance(mt940, pdf money.Money) BalanceCheck {
	return BalanceCheck{
		MT940: mt940.Float64(),
		PDF:   pdf.Float64(),
		Match: mt940.WithinTolerance(pdf, money.Tolerance01),
	}
}
