package parser

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// ParseMT940File reads an MT940/STA file, auto-detecting its encoding from
// the cascade used by Polish banks (UTF-8, CP1250, ISO-8859-2, Latin-1),
// and parses it per §4.2.
func ParseMT940File(filePath string) (*models.StatementInfo, []models.RawTransaction, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("mt940: read %s: %w", filePath, err)
	}
	text := decodeMT940(raw)
	return ParseMT940Text(text)
}

// decodeMT940 tries each candidate encoding in turn and keeps the first
// decode that yields valid UTF-8 containing an early MT940 tag, falling
// back to Latin-1 (which never fails to decode a byte stream).
func decodeMT940(raw []byte) string {
	head := raw
	if len(head) > 200 {
		head = head[:200]
	}

	if s, ok := tryDecodeUTF8(raw); ok && utf8.Valid(raw) && looksLikeMT940(string(head)) {
		return s
	}
	if s, ok := tryDecode(charmap.Windows1250, raw); ok && looksLikeMT940(string(head)) {
		return s
	}
	if s, ok := tryDecode(charmap.ISO8859_2, raw); ok && looksLikeMT940(string(head)) {
		return s
	}
	s, _ := tryDecode(charmap.ISO8859_1, raw)
	return s
}

func looksLikeMT940(head string) bool {
	return strings.Contains(head, ":20:") || strings.Contains(head, ":25:")
}

func tryDecodeUTF8(raw []byte) (string, bool) {
	dec := unicode.UTF8.NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func tryDecode(cm *charmap.Charmap, raw []byte) (string, bool) {
	out, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// ParseMT940Text parses already-decoded MT940 content.
func ParseMT940Text(text string) (*models.StatementInfo, []models.RawTransaction, error) {
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")

	info := &models.StatementInfo{Currency: "PLN", BankID: "mt940"}

	account := strings.TrimPrefix(strings.TrimSpace(extractTag(text, "25")), "/")
	if iban := findIBAN(account); iban != "" {
		info.AccountIBANMasked = maskIBAN(iban)
	}

	openingRaw := firstNonEmpty(extractTag(text, "60F"), extractTag(text, "60M"))
	opening, currency, periodStart := parseBalanceField(openingRaw)
	info.OpeningBalance = opening
	if currency != "" {
		info.Currency = currency
	}
	info.PeriodStart = periodStart

	closingRaw := firstNonEmpty(extractTag(text, "62F"), extractTag(text, "62M"))
	closing, _, periodEnd := parseBalanceField(closingRaw)
	info.ClosingBalance = closing
	info.PeriodEnd = periodEnd

	if availRaw := extractTag(text, "64"); availRaw != "" {
		avail, _, _ := parseBalanceField(availRaw)
		info.AvailableBalance = avail
		info.HasAvailableBalance = true
	}

	if m := holderRE.FindStringSubmatch(text); m != nil {
		info.AccountHolder = strings.TrimSpace(m[1])
	}

	txns := parseMT940Transactions(text, periodEnd)

	var creditSum, debitSum money.Money
	var creditCnt, debitCnt int
	for _, t := range txns {
		if t.Amount.IsCredit() {
			creditSum = creditSum.Add(t.Amount)
			creditCnt++
		} else {
			debitSum = debitSum.Add(t.Amount)
			debitCnt++
		}
	}
	info.DeclaredCreditsSum, info.DeclaredCreditsHas, info.DeclaredCreditsCnt = creditSum, true, creditCnt
	info.DeclaredDebitsSum, info.DeclaredDebitsHas, info.DeclaredDebitsCnt = debitSum, true, debitCnt

	return info, txns, nil
}

var holderRE = regexp.MustCompile(`:86:NAME ACCOUNT OWNER:(.+?)(?:\n|$)`)

// re61 matches a :61: statement line:
//
//	YYMMDD(value date) MMDD(entry date) [D|C|RD|RC](direction) amount,dec S swiftcode reference
var re61 = regexp.MustCompile(
	`^:61:(\d{6})(\d{4})(R?[DC])(\d+,\d{2})S(\d+)(.*)$`,
)

func parseMT940Transactions(text, periodEndFallback string) []models.RawTransaction {
	lines := strings.Split(text, "\n")
	var txns []models.RawTransaction
	rowIdx := 0

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, ":61:") {
			continue
		}
		m := re61.FindStringSubmatch(line)
		if m == nil {
			continue // malformed :61: line: discard with a warning logged upstream
		}

		valueDateRaw, entryDateRaw, dirRaw, amountRaw := m[1], m[2], m[3], m[4]

		valueDate := parseYYMMDD(valueDateRaw)
		entryDate := parseMMDDWithYear(entryDateRaw, valueDate, periodEndFallback)

		amt, _ := money.Parse(strings.Replace(amountRaw, ",", ".", 1))
		amt = amt.Abs()
		if dirRaw == "D" || dirRaw == "RC" {
			amt = amt.Neg()
		}

		// Collect the following :86: block (possibly multi-line, continuations
		// start with "~" or plain text once inside the block).
		var raw86Lines []string
		i++
		for i < len(lines) {
			l := strings.TrimSpace(lines[i])
			switch {
			case strings.HasPrefix(l, ":86:"):
				raw86Lines = append(raw86Lines, l[4:])
				i++
			case strings.HasPrefix(l, ":61:") || strings.HasPrefix(l, ":62") || strings.HasPrefix(l, ":64:"):
				i-- // let the outer loop see this tag again
				goto doneBlock
			case strings.HasPrefix(l, "~") || (len(raw86Lines) > 0 && !strings.HasPrefix(l, ":")):
				raw86Lines = append(raw86Lines, l)
				i++
			default:
				goto doneBlock
			}
		}
	doneBlock:

		raw86 := strings.Join(raw86Lines, "\n")
		sub := parse86Subfields(raw86)
		counterparty := strings.TrimSpace(strings.TrimSpace(sub["32"]) + " " + strings.TrimSpace(sub["33"]))
		var titleParts []string
		for k := 20; k <= 25; k++ {
			if v := sub[strconv.Itoa(k)]; v != "" {
				titleParts = append(titleParts, v)
			}
		}
		title := strings.TrimSpace(strings.Join(titleParts, " "))

		txns = append(txns, models.RawTransaction{
			Date:            entryDate,
			ValueDate:       valueDate,
			Amount:          amt,
			CounterpartyRaw: counterparty,
			Title:           title,
			RawText:         raw86,
			BankCategory:    sub["type_prefix"],
			SourceRowIndex:  rowIdx,
		})
		rowIdx++
	}
	return txns
}

// parse86Subfields splits ING-style ~XX subfield notation:
//
//	~00code~20line1~21line2~30bankcode~31account~32name~33address~38iban
func parse86Subfields(raw string) map[string]string {
	out := make(map[string]string)
	parts := tildeFieldRE.Split(raw, -1)
	keys := tildeFieldRE.FindAllStringSubmatch(raw, -1)

	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		out["type_prefix"] = strings.TrimSpace(parts[0])
	}
	for j, km := range keys {
		key := km[1]
		var val string
		if j+1 < len(parts) {
			val = strings.TrimSpace(parts[j+1])
		}
		if existing, ok := out[key]; ok {
			out[key] = existing + " " + val
		} else {
			out[key] = val
		}
	}
	return out
}

var tildeFieldRE = regexp.MustCompile(`~(\d{2})`)

func extractTag(text, tag string) string {
	re := regexp.MustCompile(`:` + regexp.QuoteMeta(tag) + `:(.*?)(?:\n|$)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var balanceFieldRE = regexp.MustCompile(`^([CD])(\d{6})([A-Z]{3})(\d+,\d{2})$`)

// parseBalanceField parses a balance field like "C260131PLN4200,82" into
// (signed amount, currency, ISO date).
func parseBalanceField(raw string) (money.Money, string, string) {
	m := balanceFieldRE.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", ""
	}
	amt, _ := money.Parse(strings.Replace(m[4], ",", ".", 1))
	if m[1] == "D" {
		amt = amt.Neg()
	}
	return amt, m[3], parseYYMMDD(m[2])
}

func parseYYMMDD(s string) string {
	if len(s) != 6 {
		return ""
	}
	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return ""
	}
	yyyy := 2000 + yy
	if yy >= 80 {
		yyyy = 1900 + yy
	}
	return fmt.Sprintf("%04d-%s-%s", yyyy, s[2:4], s[4:6])
}

// parseMMDDWithYear resolves a bare MMDD entry date using the value date's
// own year, falling back to the statement period's end year when the value
// date is unavailable — rather than a hardcoded year, which silently
// mis-dates every transaction once the statement crosses into a new year.
func parseMMDDWithYear(s, valueDateISO, periodEndISO string) string {
	if len(s) != 4 {
		return ""
	}
	mm, dd := s[:2], s[2:]

	year := ""
	if len(valueDateISO) >= 4 {
		year = valueDateISO[:4]
	} else if len(periodEndISO) >= 4 {
		year = periodEndISO[:4]
	}
	if year == "" {
		return ""
	}
	return year + "-" + mm + "-" + dd
}
