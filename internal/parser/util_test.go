package parser

import "testing"

func TestIsDateCell(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"15.01.2024", true},
		{"15/01/24", true},
		{"Jan Kowalski", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDateCell(tt.input); got != tt.want {
			t.Errorf("isDateCell(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsAmountCell(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1 234,56", true},
		{"-150,00 PLN", true},
		{"Jan Kowalski", false},
	}
	for _, tt := range tests {
		if got := isAmountCell(tt.input); got != tt.want {
			t.Errorf("isAmountCell(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFindIBAN(t *testing.T) {
	text := "Numer rachunku: PL61 1090 1014 0000 0712 1981 2874 dalszy tekst"
	got := findIBAN(text)
	if len(got) != 26 {
		t.Fatalf("expected 26-digit IBAN, got %q (len %d)", got, len(got))
	}
}

func TestMaskIBAN(t *testing.T) {
	masked := maskIBAN("11090101400007121981287")
	if masked == "" {
		t.Fatalf("expected non-empty masked IBAN")
	}
}

func TestIsHeaderKeyword(t *testing.T) {
	if !isHeaderKeyword("Kwota") {
		t.Errorf("expected Kwota to be a header keyword")
	}
	if isHeaderKeyword("xyz") {
		t.Errorf("did not expect xyz to be a header keyword")
	}
}
