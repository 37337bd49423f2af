package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// dateRE matches the Polish statement date format DD.MM.YYYY (and the
// "/"/"-" variants), per §4.1 step 4's band-boundary rule.
var dateRE = regexp.MustCompile(`\d{2}[./-]\d{2}[./-]\d{2,4}`)

// amountRE matches a signed decimal amount with an optional trailing
// currency code, per §4.1's column-cell parsing.
var amountRE = regexp.MustCompile(`^-?\s*\d[\d\s]*[,.]\d{2}(\s*(PLN|EUR|USD|GBP|CHF))?$`)

// ibanRE matches a 26-digit Polish IBAN, whitespace-tolerant.
var ibanRE = regexp.MustCompile(`\b(?:PL\s?)?(\d[\d\s]{25,40}\d)\b`)

func isDateCell(s string) bool {
	return dateRE.MatchString(strings.TrimSpace(s))
}

func isAmountCell(s string) bool {
	return amountRE.MatchString(strings.TrimSpace(s))
}

// maskIBAN renders only the last four digits of an IBAN, masking the rest.
func maskIBAN(iban string) string {
	digits := stripNonDigits(iban)
	if len(digits) < 4 {
		return iban
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func findIBAN(text string) string {
	m := ibanRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	digits := stripNonDigits(m[1])
	if len(digits) != 26 {
		return ""
	}
	return digits
}

// headerKeywords is used by the spatial parser to locate the column
// header row; matched case-insensitively against word text.
var headerKeywords = []string{
	"data", "księgowania", "ksiegowania", "transakcji", "kontrahent",
	"kontrahenta", "tytuł", "tytul", "kwota", "saldo", "szczegół",
	"szczegoly", "opis", "operacji", "obciążeni", "obciazeni",
	"uznani", "nadawca", "odbiorca", "walut", "numer",
}

func isHeaderKeyword(word string) bool {
	w := strings.ToLower(strings.Trim(word, ":.,"))
	for _, k := range headerKeywords {
		if strings.Contains(w, k) {
			return true
		}
	}
	return false
}

func collapseWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var periodRE = regexp.MustCompile(`\d{2}[./-]\d{2}[./-]\d{2,4}`)

// accountHolderLabels are the Polish label phrases a statement header uses
// to introduce the account owner's name.
var accountHolderLabels = []string{
	"posiadacz rachunku", "właściciel rachunku", "wlasciciel rachunku",
	"imię i nazwisko", "imie i nazwisko", "klient",
}

var declaredLabels = []struct {
	labels  []string
	field   string // "credit_sum", "credit_cnt", "debit_sum", "debit_cnt"
}{
	{[]string{"suma uznań", "suma uznan", "suma wpływów", "suma wplywow"}, "credit_sum"},
	{[]string{"liczba uznań", "liczba uznan"}, "credit_cnt"},
	{[]string{"suma obciążeń", "suma obciazen"}, "debit_sum"},
	{[]string{"liczba obciążeń", "liczba obciazen"}, "debit_cnt"},
}

// extractInfoCommon scans the joined statement text for header/footer
// metadata shared across bank layouts: IBAN, holder name, period, opening
// and closing balance, and any declared credit/debit sums and counts used
// by the reconciler (§4.3). Mirrors the teacher's label-proximity search
// (extractNameNearLabel, extractPeriod, extractOpeningBalance) rather than
// one big regex.
func extractInfoCommon(text string) *models.StatementInfo {
	info := &models.StatementInfo{Currency: "PLN"}

	if iban := findIBAN(text); iban != "" {
		info.AccountIBANMasked = maskIBAN(iban)
	}
	info.AccountHolder = extractNameNearLabel(text, accountHolderLabels)

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		lower := strings.ToLower(line)

		if strings.Contains(lower, "okres") {
			dates := periodRE.FindAllString(line, 2)
			if len(dates) == 2 {
				info.PeriodStart = normalizeDate(dates[0])
				info.PeriodEnd = normalizeDate(dates[1])
			}
		}

		if strings.Contains(lower, "saldo początkowe") || strings.Contains(lower, "saldo poczatkowe") || strings.Contains(lower, "bilans otwarcia") {
			if amt, ok := lastAmountOnLine(line); ok {
				info.OpeningBalance = amt
			}
		}
		if strings.Contains(lower, "saldo końcowe") || strings.Contains(lower, "saldo koncowe") || strings.Contains(lower, "bilans zamknięcia") || strings.Contains(lower, "bilans zamkniecia") {
			if amt, ok := lastAmountOnLine(line); ok {
				info.ClosingBalance = amt
			}
		}
		if strings.Contains(lower, "saldo dostępne") || strings.Contains(lower, "saldo dostepne") {
			if amt, ok := lastAmountOnLine(line); ok {
				info.AvailableBalance = amt
				info.HasAvailableBalance = true
			}
		}

		for _, d := range declaredLabels {
			for _, lbl := range d.labels {
				if !strings.Contains(lower, lbl) {
					continue
				}
				switch d.field {
				case "credit_sum":
					if amt, ok := lastAmountOnLine(line); ok {
						info.DeclaredCreditsSum = amt
						info.DeclaredCreditsHas = true
					}
				case "debit_sum":
					if amt, ok := lastAmountOnLine(line); ok {
						info.DeclaredDebitsSum = amt
						info.DeclaredDebitsHas = true
					}
				case "credit_cnt":
					if n, ok := lastIntOnLine(line); ok {
						info.DeclaredCreditsCnt = n
					}
				case "debit_cnt":
					if n, ok := lastIntOnLine(line); ok {
						info.DeclaredDebitsCnt = n
					}
				}
			}
		}
	}

	return info
}

func extractNameNearLabel(text string, labels []string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		lowerLine := strings.ToLower(line)
		for _, label := range labels {
			idx := strings.Index(lowerLine, label)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(label):])
			rest = strings.TrimPrefix(rest, ":")
			rest = strings.TrimSpace(rest)
			if rest != "" {
				parts := strings.SplitN(rest, "  ", 2)
				return strings.TrimSpace(parts[0])
			}
		}
	}
	return ""
}

func lastAmountOnLine(line string) (money.Money, bool) {
	matches := amountAnywhereRE.FindAllString(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	amt, err := money.Parse(matches[len(matches)-1])
	if err != nil {
		return 0, false
	}
	return amt, true
}

var amountAnywhereRE = regexp.MustCompile(`-?\d[\d\s]*[,.]\d{2}`)

func lastIntOnLine(line string) (int, bool) {
	matches := intRE.FindAllString(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range matches[len(matches)-1] {
		n = n*10 + int(c-'0')
	}
	return n, true
}

var intRE = regexp.MustCompile(`\d+`)
