package parser

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/extractor"
)

func TestDeriveColumnsOrdersByX(t *testing.T) {
	header := []extractor.WordBox{
		{Text: "Kwota", X: 300, Y: 700},
		{Text: "Data", X: 50, Y: 700},
		{Text: "Kontrahent", X: 150, Y: 700},
	}
	cols := deriveColumns(header)
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	if cols[0].label != "Data" || cols[1].label != "Kontrahent" || cols[2].label != "Kwota" {
		t.Errorf("columns not sorted by X: %+v", cols)
	}
	if cols[0].typ != colDate {
		t.Errorf("expected first column type date, got %v", cols[0].typ)
	}
}

func TestLocateHeaderFindsKeywordRow(t *testing.T) {
	pages := [][]extractor.WordBox{
		{
			{Text: "Wyciąg", X: 10, Y: 800},
			{Text: "Data", X: 50, Y: 700},
			{Text: "Kontrahent", X: 150, Y: 700},
			{Text: "Kwota", X: 300, Y: 700},
			{Text: "01.01.2024", X: 50, Y: 650},
		},
	}
	header, y, err := locateHeader(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if y != 700 {
		t.Errorf("expected header row at Y=700, got %v", y)
	}
	if len(header) != 3 {
		t.Errorf("expected 3 header words, got %d", len(header))
	}
}

func TestResolveAmountCreditWins(t *testing.T) {
	cells := map[colType]string{colCredit: "100,00", colDebit: ""}
	amt, ok := resolveAmount(cells)
	if !ok || amt <= 0 {
		t.Fatalf("expected positive credit amount, got %v ok=%v", amt, ok)
	}
}

func TestResolveAmountDebitNegates(t *testing.T) {
	cells := map[colType]string{colDebit: "50,00"}
	amt, ok := resolveAmount(cells)
	if !ok || amt >= 0 {
		t.Fatalf("expected negative debit amount, got %v ok=%v", amt, ok)
	}
}

func TestNormalizedHeaderCellsLowercasesAndJoins(t *testing.T) {
	got := NormalizedHeaderCells([]string{" Data ", "KONTRAHENT", "Kwota"})
	want := "data|kontrahent|kwota"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestColumnSpecZoneFallsBackToSkipForUnknownType(t *testing.T) {
	spec := ColumnSpec{Label: "Mystery", Type: "not_a_real_type", XMin: 10, XMax: 50}
	zone := spec.zone()
	if zone.typ != colSkip {
		t.Errorf("expected unrecognized column type to map to skip, got %v", zone.typ)
	}
}

func TestColumnSpecZonePreservesKnownType(t *testing.T) {
	spec := ColumnSpec{Label: "Kwota", Type: string(colAmount), XMin: 10, XMax: 50}
	zone := spec.zone()
	if zone.typ != colAmount || zone.label != "Kwota" || zone.xMin != 10 || zone.xMax != 50 {
		t.Errorf("zone conversion lost fields: %+v", zone)
	}
}

// TestBuildTransactionsWithConfirmedMapping exercises the same
// buildTransactions path ParseWithMapping re-runs against a user-confirmed
// mapping, without needing a real PDF file on disk.
func TestBuildTransactionsWithConfirmedMapping(t *testing.T) {
	mapping := []ColumnSpec{
		{Label: "Data", Type: string(colDate), XMin: 0, XMax: 90},
		{Label: "Kontrahent", Type: string(colCounterparty), XMin: 90, XMax: 250},
		{Label: "Kwota", Type: string(colAmount), XMin: 250, XMax: 350},
	}
	columns := make([]columnZone, len(mapping))
	for i, m := range mapping {
		columns[i] = m.zone()
	}

	pages := [][]extractor.WordBox{
		{
			{Text: "01.01.2024", X: 20, Y: 650},
			{Text: "JAN", X: 100, Y: 650},
			{Text: "KOWALSKI", X: 140, Y: 650},
			{Text: "-150,00", X: 280, Y: 650},
		},
	}

	p := &SpatialParser{bankID: BankGeneric, bankName: "Generic"}
	txns := p.buildTransactions(pages, columns, 700)
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	if txns[0].Date != "2024-01-01" {
		t.Errorf("expected normalized date 2024-01-01, got %s", txns[0].Date)
	}
	if txns[0].CounterpartyRaw != "JAN KOWALSKI" {
		t.Errorf("expected counterparty 'JAN KOWALSKI', got %q", txns[0].CounterpartyRaw)
	}
	if txns[0].Amount.Float64() != -150.00 {
		t.Errorf("expected amount -150.00, got %v", txns[0].Amount.Float64())
	}
}
