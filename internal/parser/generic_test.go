package parser

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func TestParseGenericRowsBasic(t *testing.T) {
	page := "Data księgowania Kontrahent Tytuł Kwota Saldo\n" +
		"01.01.2024 JAN KOWALSKI Przelew własny -150,00 850,00\n" +
		"02.01.2024 ZUS SKŁADKI Płatność ZUS -500,00 350,00\n"

	info, txns, err := ParseGenericRows([]string{page})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil {
		t.Fatalf("expected non-nil info")
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Amount >= 0 {
		t.Errorf("expected first transaction to be a debit, got %s", txns[0].Amount)
	}
}

func TestResolveSignByBalanceDebitWhenBalanceFalls(t *testing.T) {
	amt := money.MustParse("150.00")
	balance := money.MustParse("850.00")
	prevBalance := money.MustParse("1000.00")

	got := resolveSignByBalance(amt, balance, prevBalance)
	if got.Float64() != -150.00 {
		t.Errorf("expected debit -150.00 when balance falls by the amount, got %v", got.Float64())
	}
}

func TestResolveSignByBalanceCreditWhenBalanceRises(t *testing.T) {
	amt := money.MustParse("150.00")
	balance := money.MustParse("1150.00")
	prevBalance := money.MustParse("1000.00")

	got := resolveSignByBalance(amt, balance, prevBalance)
	if got.Float64() != 150.00 {
		t.Errorf("expected credit 150.00 when balance rises by the amount, got %v", got.Float64())
	}
}

func TestParseGenericRowsNoDate(t *testing.T) {
	_, txns, err := ParseGenericRows([]string{"no transactions here at all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected no transactions, got %d", len(txns))
	}
}
