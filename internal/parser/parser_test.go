package parser

import "testing"

func TestAutoDetect(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  BankID
	}{
		{"detects mBank", []string{"mBank S.A.\nWyciąg z rachunku\n15.01.2024"}, BankMBank},
		{"detects PKO BP", []string{"PKO Bank Polski\nWyciąg\n15.01.2024"}, BankPKOBP},
		{"detects ING", []string{"ING Bank Śląski S.A.\nWyciąg"}, BankING},
		{"unknown bank falls back to generic", []string{"Some Unknown Bank\nStatement"}, BankGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AutoDetect(tt.pages)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewReturnsSpatialParser(t *testing.T) {
	p, err := New(BankMBank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BankName() != "mBank" {
		t.Errorf("got %q, want mBank", p.BankName())
	}
}
