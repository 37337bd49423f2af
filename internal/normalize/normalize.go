// Package normalize implements §4.4 (Normalizer) and §4.5 (channel
// detection): turning RawTransactions into deduplicated, hashed,
// channel-tagged NormalizedTransactions.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/insightdelivered/aml-statement-core/internal/models"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace and trims, matching the Python
// original's clean_text.
func CleanText(s string) string {
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// polishFold maps diacritic runes to their ASCII equivalents. NFKD
// decomposition isn't available from any library in the retrieval pack, so
// this is a direct table, matching the bounded Polish alphabet the source
// actually needs.
var polishFold = strings.NewReplacer(
	"ą", "a", "Ą", "A", "ć", "c", "Ć", "C", "ę", "e", "Ę", "E",
	"ł", "l", "Ł", "L", "ń", "n", "Ń", "N", "ó", "o", "Ó", "O",
	"ś", "s", "Ś", "S", "ź", "z", "Ź", "Z", "ż", "z", "Ż", "Z",
)

// StripDiacritics removes Polish diacritics for fuzzy/ascii-folded search.
func StripDiacritics(s string) string {
	return polishFold.Replace(s)
}

var urlRE = regexp.MustCompile(`(?i)https?://[^\s,;"'<>]+`)

// ExtractURLs returns every URL found in text, in order of appearance.
func ExtractURLs(text string) []string {
	return urlRE.FindAllString(text, -1)
}

// ComputeTxHash implements sha256(date|amount|cp[:50]|title[:100])[:16].
func ComputeTxHash(date string, amount string, counterparty, title string) string {
	cp := counterparty
	if len(cp) > 50 {
		cp = cp[:50]
	}
	t := title
	if len(t) > 100 {
		t = t[:100]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", date, amount, cp, t)))
	return hex.EncodeToString(sum[:])[:16]
}

var longDigitRunRE = regexp.MustCompile(`\d{10,}`)

// CleanCounterparty implements counterpartyClean: uppercase, collapse
// whitespace, strip runs of 10+ digits (account numbers).
func CleanCounterparty(raw string) string {
	s := longDigitRunRE.ReplaceAllString(raw, "")
	s = CleanText(s)
	return strings.ToUpper(s)
}

// bankCategoryChannels is evaluated as case-insensitive substring matches
// against bankCategory, in priority order, per §4.5.
type bankCategoryRule struct {
	substr  string
	channel models.Channel
}

var bankCategoryRules = []bankCategoryRule{
	{"TR.KART", models.ChannelCard},
	{"PRZELEW", models.ChannelTransfer},
	{"ST.ZLEC", models.ChannelTransfer},
	{"TR.BLIK", models.ChannelBlikMerchant},
	{"OPŁATA", models.ChannelFee},
	{"OPLATA", models.ChannelFee},
	{"PROWIZJA", models.ChannelFee},
	{"ODSETKI", models.ChannelFee},
}

var blikP2PRE = regexp.MustCompile(`(?i)przelew (na|z) telefon`)

var fallbackChannelRules = []struct {
	re      *regexp.Regexp
	channel models.Channel
}{
	{regexp.MustCompile(`(?i)blik`), models.ChannelBlikP2P},
	{regexp.MustCompile(`(?i)kart[aąy]|visa|mastercard|maestro`), models.ChannelCard},
	{regexp.MustCompile(`(?i)bankomat|atm|wypłata|wplata|wpłata gotówk|wplata gotowk`), models.ChannelCash},
	{regexp.MustCompile(`(?i)zwrot|refund|korekta`), models.ChannelRefund},
	{regexp.MustCompile(`(?i)opłata|oplata|prowizja|odsetki|fee`), models.ChannelFee},
	{regexp.MustCompile(`(?i)przelew|transfer|zleceni`), models.ChannelTransfer},
}

// DetectChannel implements §4.5: bankCategory substrings first, then a
// fallback text regex cascade over title+counterparty.
func DetectChannel(bankCategory, title, counterparty string) models.Channel {
	upper := strings.ToUpper(bankCategory)
	for _, r := range bankCategoryRules {
		if strings.Contains(upper, r.substr) {
			return r.channel
		}
	}
	if strings.Contains(upper, "P.BLIK") {
		if blikP2PRE.MatchString(title) {
			return models.ChannelBlikP2P
		}
		return models.ChannelBlikMerchant
	}

	text := title + " " + counterparty
	for _, r := range fallbackChannelRules {
		if r.re.MatchString(text) {
			return r.channel
		}
	}
	return models.ChannelOther
}

// Normalizer holds the seen-hash set for one statement's dedup pass.
type Normalizer struct {
	seen map[string]struct{}
}

// NewNormalizer returns a fresh normalizer for one statement.
func NewNormalizer() *Normalizer {
	return &Normalizer{seen: make(map[string]struct{})}
}

// Normalize converts one RawTransaction into a NormalizedTransaction. It
// returns (nil, false) when the transaction is a duplicate within this
// statement (txHash already seen), implementing the "first wins" dedup
// invariant.
func (n *Normalizer) Normalize(raw models.RawTransaction, statementID string) (*models.NormalizedTransaction, bool) {
	amountStr := raw.Amount.String()
	cpClean := CleanCounterparty(raw.CounterpartyRaw)
	titleClean := CleanText(raw.Title)

	hash := ComputeTxHash(raw.Date, amountStr, cpClean, titleClean)
	if _, dup := n.seen[hash]; dup {
		return nil, false
	}
	n.seen[hash] = struct{}{}

	rawText := raw.RawText
	if len(rawText) > 500 {
		rawText = rawText[:500]
	}

	currency := raw.Currency
	if currency == "" {
		currency = "PLN"
	}

	nt := &models.NormalizedTransaction{
		ID:                uuid.NewString(),
		StatementID:       statementID,
		Date:              raw.Date,
		ValueDate:         raw.ValueDate,
		Amount:            raw.Amount,
		Currency:          currency,
		Direction:         raw.Direction(),
		BalanceAfter:      raw.BalanceAfter,
		HasBalance:        raw.HasBalance,
		CounterpartyRaw:   raw.CounterpartyRaw,
		CounterpartyClean: cpClean,
		Title:             raw.Title,
		TitleClean:        titleClean,
		BankCategory:      raw.BankCategory,
		RawText:           rawText,
		Channel:           DetectChannel(raw.BankCategory, titleClean, cpClean),
		URLs:              ExtractURLs(raw.CounterpartyRaw + " " + raw.Title + " " + raw.RawText),
		TxHash:            hash,
		SourceRowIndex:    raw.SourceRowIndex,
	}
	return nt, true
}

// NormalizeAll normalizes an ordered slice of RawTransactions for one
// statement, dropping duplicates and preserving parser emission order.
func NormalizeAll(raws []models.RawTransaction, statementID string) []*models.NormalizedTransaction {
	n := NewNormalizer()
	out := make([]*models.NormalizedTransaction, 0, len(raws))
	for _, r := range raws {
		if nt, ok := n.Normalize(r, statementID); ok {
			out = append(out, nt)
		}
	}
	return out
}
