package parser

import "testing"

const sampleMT940 = `:20:REF123
:25:PL61109010140000071219812874
:28C:1
:60F:C240101PLN1000,00
:61:2401020102D150,00S202ST.ZLEC
:86:073~00ST.ZLEC~20PRZELEW WLASNY~32JAN KOWALSKI
:61:2401030103C5000,00S051PRZELEW
:86:051~00PRZELEW~20WYPLATA WYNAGRODZENIA~32PRACODAWCA SP Z O O
:62F:C240131PLN5850,00
`

func TestParseMT940TextBasic(t *testing.T) {
	info, txns, err := ParseMT940Text(sampleMT940)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OpeningBalance.Float64() != 1000.00 {
		t.Errorf("expected opening 1000.00, got %v", info.OpeningBalance.Float64())
	}
	if info.ClosingBalance.Float64() != 5850.00 {
		t.Errorf("expected closing 5850.00, got %v", info.ClosingBalance.Float64())
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Amount.Float64() != -150.00 {
		t.Errorf("expected first tx -150.00, got %v", txns[0].Amount.Float64())
	}
	if txns[0].Date != "2024-01-02" {
		t.Errorf("expected date 2024-01-02, got %q", txns[0].Date)
	}
	if txns[1].Amount.Float64() != 5000.00 {
		t.Errorf("expected second tx 5000.00, got %v", txns[1].Amount.Float64())
	}
	if txns[1].CounterpartyRaw == "" {
		t.Errorf("expected counterparty to be populated")
	}
}

func TestParseYYMMDD(t *testing.T) {
	if got := parseYYMMDD("240115"); got != "2024-01-15" {
		t.Errorf("got %q", got)
	}
	if got := parseYYMMDD("990115"); got != "1999-01-15" {
		t.Errorf("got %q", got)
	}
}

func TestParseMMDDWithYearUsesValueDateYear(t *testing.T) {
	got := parseMMDDWithYear("0215", "2024-01-10", "")
	if got != "2024-02-15" {
		t.Errorf("expected year from value date, got %q", got)
	}
}

func TestParseMMDDWithYearFallsBackToPeriodEnd(t *testing.T) {
	got := parseMMDDWithYear("0215", "", "2025-01-31")
	if got != "2025-02-15" {
		t.Errorf("expected year from period end, got %q", got)
	}
}
