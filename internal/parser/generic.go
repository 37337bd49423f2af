package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// ParseGenericRows is the line-based fallback used when a statement's PDF
// carries no usable word-coordinate data (scanned image, OCR-only text
// layer). It consolidates the column state-machine approach used across
// several UK bank layouts into one bank-agnostic parser over Polish date
// and amount formats, inferring debit/credit by balance progression when
// two amount columns can't be told apart from position alone.
func ParseGenericRows(pages []string) (*models.StatementInfo, []models.RawTransaction, error) {
	allText := strings.Join(pages, "\n")
	info := extractInfoCommon(allText)

	var txns []models.RawTransaction
	var lastBalance money.Money
	haveBalance := false
	rowIdx := 0

	for _, page := range pages {
		lines := strings.Split(page, "\n")
		inSection := false

		for i := 0; i < len(lines); i++ {
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}

			if isGenericHeaderLine(line) {
				inSection = true
				continue
			}
			if !inSection && !isDateCell(firstToken(line, dateRE)) {
				continue
			}

			m := genericTxnPattern.FindStringSubmatch(line)
			if m == nil {
				// Multi-line description continuation.
				if len(txns) > 0 && rowIdx > 0 && !isSummaryLine(line) {
					last := &txns[len(txns)-1]
					last.Title = strings.TrimSpace(last.Title + " " + line)
				}
				continue
			}
			inSection = true

			date := normalizeDate(m[1])
			desc := collapseWS(m[2])
			a1 := strings.TrimSpace(m[3])
			a2 := strings.TrimSpace(m[4])
			bal := strings.TrimSpace(m[5])

			raw := models.RawTransaction{
				Date:            date,
				CounterpartyRaw: desc,
				Title:           desc,
				RawText:         desc,
				SourceRowIndex:  rowIdx,
			}

			if bal != "" {
				if b, err := money.Parse(bal); err == nil {
					raw.BalanceAfter = b
					raw.HasBalance = true
				}
			}

			switch {
			case a1 != "" && a2 != "":
				// Both debit and credit columns present: non-zero one wins.
				debit, _ := money.Parse(a1)
				credit, _ := money.Parse(a2)
				if debit.Abs() > 0 {
					raw.Amount = debit.Abs().Neg()
				} else {
					raw.Amount = credit.Abs()
				}
			case a1 != "":
				amt, _ := money.Parse(a1)
				switch {
				case strings.HasPrefix(a1, "-"):
					// Already signed in the source text.
					raw.Amount = amt
				case raw.HasBalance && haveBalance:
					raw.Amount = resolveSignByBalance(amt.Abs(), raw.BalanceAfter, lastBalance)
				case isDebitDescription(desc):
					raw.Amount = amt.Abs().Neg()
				default:
					raw.Amount = amt.Abs()
				}
			default:
				continue // no amount: discard silently
			}

			if raw.HasBalance {
				lastBalance = raw.BalanceAfter
				haveBalance = true
			} else if haveBalance {
				raw.BalanceAfter = lastBalance.Add(raw.Amount)
				lastBalance = raw.BalanceAfter
				raw.HasBalance = true
			}

			txns = append(txns, raw)
			rowIdx++
		}
	}

	return info, txns, nil
}

// genericTxnPattern: date, description, optional amount, optional second
// amount, trailing balance. Groups: 1=date 2=desc 3=amount1 4=amount2 5=balance.
var genericTxnPattern = regexp.MustCompile(
	`^(\d{2}[./-]\d{2}[./-]\d{2,4})\s+(.+?)\s+` +
		`(-?\d[\d\s]*[,.]\d{2})?\s*(-?\d[\d\s]*[,.]\d{2})?\s+(-?\d[\d\s]*[,.]\d{2})\s*$`,
)

func firstToken(line string, re *regexp.Regexp) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	if re.MatchString(fields[0]) {
		return fields[0]
	}
	return ""
}

func isGenericHeaderLine(line string) bool {
	hits := 0
	for _, f := range strings.Fields(line) {
		if isHeaderKeyword(f) {
			hits++
		}
	}
	return hits >= 3
}

func isDebitDescription(desc string) bool {
	lower := strings.ToLower(desc)
	for _, kw := range []string{
		"przelew wych", "płatność", "platnosc", "obciążenie", "obciazenie",
		"prowizja", "opłata", "oplata", "wypłata", "wyplata", "zakup",
	} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isSummaryLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range []string{
		"saldo początkowe", "saldo koncowe", "saldo końcowe", "suma obciążeń",
		"suma uznań", "strona ", "wygenerowano", "okres wyciągu",
	} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// resolveSignByBalance compares the signed balance delta against the
// amount magnitude to decide debit vs credit, the same accounting check
// the teacher's balance-progression inference uses instead of keyword
// guessing wherever a reliable balance chain is available. amt is always
// passed in as a positive magnitude; the sign comes entirely from which
// direction the balance actually moved.
func resolveSignByBalance(amt, balance, prevBalance money.Money) money.Money {
	delta := balance.Sub(prevBalance)
	if delta.WithinTolerance(amt, money.Tolerance02) {
		return amt
	}
	if delta.WithinTolerance(amt.Neg(), money.Tolerance02) {
		return amt.Neg()
	}
	// Neither sign matches the observed balance move within tolerance
	// (a gap in the balance chain); fall back to whichever is closer.
	creditDiff := delta.Sub(amt).Abs()
	debitDiff := delta.Sub(amt.Neg()).Abs()
	if creditDiff <= debitDiff {
		return amt
	}
	return amt.Neg()
}
