// Package reconcile implements §4.3: verifying parsed statement invariants
// and producing human-readable warnings without ever blocking the pipeline.
package reconcile

import (
	"fmt"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

const maxDetailedMismatches = 5

// Result is the outcome of reconciling one statement.
type Result struct {
	Valid    bool
	Warnings []string
}

// Run checks the four invariants of §4.3 against the parsed transactions
// and statement info, all within money.Tolerance02 (±0.02).
func Run(info models.StatementInfo, txs []models.RawTransaction) Result {
	var warnings []string
	valid := true

	sum := money.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	expectedClosing := info.OpeningBalance.Add(sum)
	if !expectedClosing.WithinTolerance(info.ClosingBalance, money.Tolerance02) {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"opening %s + sum %s = %s does not match closing %s",
			info.OpeningBalance, sum, expectedClosing, info.ClosingBalance))
	}

	mismatchCount := 0
	var prevBalance money.Money
	havePrev := false
	for i, tx := range txs {
		if !tx.HasBalance {
			continue
		}
		if havePrev {
			expected := prevBalance.Add(tx.Amount)
			if !expected.WithinTolerance(tx.BalanceAfter, money.Tolerance02) {
				mismatchCount++
				if mismatchCount <= maxDetailedMismatches {
					warnings = append(warnings, fmt.Sprintf(
						"transaction %d: expected balance %s, got %s", i, expected, tx.BalanceAfter))
				}
				valid = false
			}
		}
		prevBalance = tx.BalanceAfter
		havePrev = true
	}
	if mismatchCount > maxDetailedMismatches {
		warnings = append(warnings, fmt.Sprintf(
			"%d additional balance-chain mismatches not shown", mismatchCount-maxDetailedMismatches))
	}

	creditSum, debitSum := money.Zero, money.Zero
	creditCount, debitCount := 0, 0
	for _, tx := range txs {
		if tx.Amount.IsCredit() {
			creditSum = creditSum.Add(tx.Amount)
			creditCount++
		} else {
			debitSum = debitSum.Add(tx.Amount.Abs())
			debitCount++
		}
	}
	if info.DeclaredCreditsHas && !creditSum.WithinTolerance(info.DeclaredCreditsSum, money.Tolerance02) {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"sum of credits %s does not match declared %s", creditSum, info.DeclaredCreditsSum))
	}
	if info.DeclaredDebitsHas && !debitSum.WithinTolerance(info.DeclaredDebitsSum, money.Tolerance02) {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"sum of debits %s does not match declared %s", debitSum, info.DeclaredDebitsSum))
	}
	if info.DeclaredCreditsHas && creditCount != info.DeclaredCreditsCnt {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"credit count %d does not match declared %d", creditCount, info.DeclaredCreditsCnt))
	}
	if info.DeclaredDebitsHas && debitCount != info.DeclaredDebitsCnt {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"debit count %d does not match declared %d", debitCount, info.DeclaredDebitsCnt))
	}

	return Result{Valid: valid, Warnings: warnings}
}
