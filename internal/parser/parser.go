package parser

import (
	"github.com/insightdelivered/aml-statement-core/internal/models"
)

// Parser turns a statement document into structured statement metadata
// plus its transactions. filePath is needed alongside the already
// -extracted page text because the spatial algorithm (§4.1) requires
// word bounding boxes, not just joined lines. Implementations never
// mutate their input.
type Parser interface {
	Parse(filePath string, pages []string) (*models.StatementInfo, []models.RawTransaction, error)
	BankName() string
}

// BankID identifies a known bank template for the spatial parser; the
// spatial algorithm itself is bank-agnostic (§4.1), but a confirmed bank_id
// lets the parse-template cache key on (bank_id, normalized_header_cells).
type BankID = string

const (
	BankGeneric    BankID = "generic"
	BankMBank      BankID = "mbank"
	BankPKOBP      BankID = "pkobp"
	BankING        BankID = "ing"
	BankSantander  BankID = "santander"
	BankPekao      BankID = "pekao"
	BankMillennium BankID = "millennium"
	BankAlior      BankID = "alior"
)

// New returns a spatial parser configured for the given (optional) bank
// hint. The parsing algorithm is the same regardless of bank id; the hint
// only seeds the template lookup and the bank name surfaced in results.
func New(bankID BankID) (Parser, error) {
	if bankID == "" {
		bankID = BankGeneric
	}
	return &SpatialParser{bankID: bankID, bankName: bankDisplayName(bankID)}, nil
}

func bankDisplayName(id BankID) string {
	switch id {
	case BankMBank:
		return "mBank"
	case BankPKOBP:
		return "PKO BP"
	case BankING:
		return "ING Bank Śląski"
	case BankSantander:
		return "Santander Bank Polska"
	case BankPekao:
		return "Bank Pekao"
	case BankMillennium:
		return "Bank Millennium"
	case BankAlior:
		return "Alior Bank"
	default:
		return "Generic (Polish bank statement)"
	}
}

// AutoDetect tries to identify the issuing bank from statement text, using
// hand-rolled case-insensitive matching in the teacher's style rather than
// strings.Contains/strings.ToLower chains.
func AutoDetect(pages []string) (BankID, error) {
	combined := ""
	for _, p := range pages {
		combined += p + "\n"
	}

	if containsAny(combined, []string{"mBank S.A.", "mbank.pl"}) {
		return BankMBank, nil
	}
	if containsAny(combined, []string{"PKO Bank Polski", "PKO BP", "pkobp.pl"}) {
		return BankPKOBP, nil
	}
	if containsAny(combined, []string{"ING Bank Śląski", "ing.pl"}) {
		return BankING, nil
	}
	if containsAny(combined, []string{"Santander Bank Polska", "santander.pl"}) {
		return BankSantander, nil
	}
	if containsAny(combined, []string{"Bank Pekao", "pekao.com.pl"}) {
		return BankPekao, nil
	}
	if containsAny(combined, []string{"Bank Millennium", "millennium.pl"}) {
		return BankMillennium, nil
	}
	if containsAny(combined, []string{"Alior Bank", "aliorbank.pl"}) {
		return BankAlior, nil
	}

	return BankGeneric, nil
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if containsIgnoreCase(text, needle) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(text, substr string) bool {
	textLower := toLower(text)
	substrLower := toLower(substr)
	return len(substrLower) > 0 && indexOf(textLower, substrLower) >= 0
}

func toLower(s string) string {
	b := make([]byte, len(s))
	for i := range s {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

func indexOf(s, substr string) int {
	if len(substr) > len(s) {
		return -1
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
