// Package baseline implements §4.8: building monthly statistical profiles
// and detecting anomalies against them.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/models"
)

const dateLayout = "2006-01-02"

// Build groups transactions by YYYY-MM of date and accumulates the
// per-month statistics spec'd in §4.8.
func Build(txs []*models.NormalizedTransaction) map[string]*models.MonthlyProfile {
	profiles := make(map[string]*models.MonthlyProfile)
	for _, tx := range txs {
		month := monthKey(tx.Date)
		p, ok := profiles[month]
		if !ok {
			p = models.NewMonthlyProfile(month)
			profiles[month] = p
		}
		p.Count++
		if tx.Amount.IsCredit() {
			p.TotalCredit = p.TotalCredit.Add(tx.Amount)
		} else {
			p.TotalDebit = p.TotalDebit.Add(tx.Amount.Abs())
		}
		p.Amounts = append(p.Amounts, tx.Amount.Abs())

		cp := tx.CounterpartyClean
		if len(cp) > 50 {
			cp = cp[:50]
		}
		if cp != "" {
			p.Counterparties[cp] = struct{}{}
		}
		p.ChannelHistogram[tx.Channel]++
		if tx.Category != "" {
			p.CategoryTotals[tx.Category] = p.CategoryTotals[tx.Category].Add(tx.Amount.Abs())
		}
	}
	return profiles
}

func monthKey(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// SortedMonths returns profile month keys in lexicographic (chronological)
// order, per §5's determinism requirement.
func SortedMonths(profiles map[string]*models.MonthlyProfile) []string {
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mean returns the arithmetic mean of a float slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the sample median of an already-sorted slice.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the sample standard deviation (n-1 denominator).
func StdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// P95 returns the 95th percentile using int(0.95*len(sorted)) indexing,
// matching the Python original exactly.
func P95(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(0.95 * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Stats bundles the derived statistics for one MonthlyProfile's amounts.
type Stats struct {
	Mean   float64
	Median float64
	StdDev float64
	P95    float64
}

// ComputeStats derives Stats from a profile's amount vector.
func ComputeStats(p *models.MonthlyProfile) Stats {
	floats := make([]float64, len(p.Amounts))
	for i, a := range p.Amounts {
		floats[i] = a.Float64()
	}
	sorted := append([]float64(nil), floats...)
	sort.Float64s(sorted)
	mean := Mean(floats)
	return Stats{
		Mean:   mean,
		Median: Median(sorted),
		StdDev: StdDev(floats, mean),
		P95:    P95(sorted),
	}
}

// GlobalStats computes mean/stddev over the absolute amounts of every
// transaction across all months, used by the LARGE_OUTLIER detector.
func GlobalStats(txs []*models.NormalizedTransaction) (mean, stddev float64) {
	floats := make([]float64, len(txs))
	for i, tx := range txs {
		floats[i] = tx.Amount.Abs().Float64()
	}
	mean = Mean(floats)
	stddev = StdDev(floats, mean)
	return
}

// evidenceCap is the maximum number of evidence transaction IDs recorded
// per alert, per §4.8.
const evidenceCap = 10

func capEvidence(ids []string) []string {
	if len(ids) > evidenceCap {
		return ids[:evidenceCap]
	}
	return ids
}

func weightOf(scoring config.Scoring, alertType string) float64 {
	return float64(scoring[alertType])
}

// DetectAnomalies runs all five detectors from §4.8 against the given
// transactions and their monthly profiles, using thresholds from cfg.
// knownCounterparties is the union of historical and already-labeled
// counterparties (normalized, cleaned names).
func DetectAnomalies(txs []*models.NormalizedTransaction, profiles map[string]*models.MonthlyProfile, knownCounterparties map[string]struct{}, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	var alerts []models.Alert
	alerts = append(alerts, detectLargeOutlier(txs, cfg, scoring)...)
	alerts = append(alerts, detectNewCounterpartyLarge(txs, profiles, knownCounterparties, cfg, scoring)...)
	alerts = append(alerts, detectP2PBurst(txs, cfg, scoring)...)
	alerts = append(alerts, detectCashCluster(txs, cfg, scoring)...)
	alerts = append(alerts, detectSpendingOverIncome(profiles, cfg, scoring)...)
	return alerts
}

func detectLargeOutlier(txs []*models.NormalizedTransaction, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	if len(txs) == 0 {
		return nil
	}
	mean, stddev := GlobalStats(txs)
	if stddev == 0 {
		return nil
	}
	var alerts []models.Alert
	for _, tx := range txs {
		amt := tx.Amount.Abs().Float64()
		z := (amt - mean) / stddev
		if z > cfg.OutlierZScore {
			severity := models.SeverityMedium
			if z > 4 {
				severity = models.SeverityHigh
			}
			alerts = append(alerts, models.Alert{
				AlertType:     "LARGE_OUTLIER",
				Severity:      severity,
				ScoreDelta:    weightOf(scoring, "LARGE_OUTLIER"),
				Explain:       fmt.Sprintf("Kwota %.2f odbiega od średniej (z=%.2f)", amt, z),
				EvidenceTxIDs: capEvidence([]string{tx.ID}),
			})
		}
	}
	return alerts
}

func detectNewCounterpartyLarge(txs []*models.NormalizedTransaction, profiles map[string]*models.MonthlyProfile, known map[string]struct{}, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	months := SortedMonths(profiles)
	if len(months) == 0 {
		return nil
	}
	var debitSum float64
	for _, m := range months {
		debitSum += profiles[m].TotalDebit.Float64()
	}
	avgMonthlyDebit := debitSum / float64(len(months))
	threshold := cfg.NewCounterpartyPct * avgMonthlyDebit

	seen := make(map[string]struct{}, len(known))
	for k := range known {
		seen[k] = struct{}{}
	}

	var alerts []models.Alert
	for _, tx := range txs {
		cp := tx.CounterpartyClean
		if cp == "" {
			continue
		}
		_, isKnown := seen[cp]
		amt := tx.Amount.Abs().Float64()
		if !isKnown && threshold > 0 && amt > threshold {
			alerts = append(alerts, models.Alert{
				AlertType:     "NEW_COUNTERPARTY_LARGE",
				Severity:      models.SeverityMedium,
				ScoreDelta:    weightOf(scoring, "NEW_COUNTERPARTY_LARGE"),
				Explain:       fmt.Sprintf("Nowy kontrahent %s z dużą kwotą %.2f", cp, amt),
				EvidenceTxIDs: capEvidence([]string{tx.ID}),
			})
		}
		seen[cp] = struct{}{}
	}
	return alerts
}

// slideWindow returns the first sorted-by-date run of transactions on the
// given channel whose span fits within windowDays and whose count reaches
// minCount, or nil if no such window exists.
func slideWindow(txs []*models.NormalizedTransaction, channel models.Channel, windowDays int, minCount int) []*models.NormalizedTransaction {
	var filtered []*models.NormalizedTransaction
	for _, tx := range txs {
		if tx.Channel == channel {
			filtered = append(filtered, tx)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Date < filtered[j].Date })

	for i := range filtered {
		start, err := time.Parse(dateLayout, filtered[i].Date)
		if err != nil {
			continue
		}
		windowEnd := start.AddDate(0, 0, windowDays-1)
		var group []*models.NormalizedTransaction
		for j := i; j < len(filtered); j++ {
			d, err := time.Parse(dateLayout, filtered[j].Date)
			if err != nil {
				continue
			}
			if d.After(windowEnd) {
				break
			}
			group = append(group, filtered[j])
		}
		if len(group) >= minCount {
			return group
		}
	}
	return nil
}

func detectP2PBurst(txs []*models.NormalizedTransaction, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	group := slideWindow(txs, models.ChannelBlikP2P, 7, cfg.P2PBurstCount)
	if group == nil {
		return nil
	}
	ids := make([]string, len(group))
	for i, tx := range group {
		ids[i] = tx.ID
	}
	return []models.Alert{{
		AlertType:     "P2P_BURST",
		Severity:      models.SeverityMedium,
		ScoreDelta:    weightOf(scoring, "P2P_BURST"),
		Explain:       fmt.Sprintf("%d transakcji BLIK P2P w ciągu 7 dni", len(group)),
		EvidenceTxIDs: capEvidence(ids),
	}}
}

func detectCashCluster(txs []*models.NormalizedTransaction, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	group := slideWindow(txs, models.ChannelCash, 3, cfg.CashClusterCount)
	if group == nil {
		return nil
	}
	ids := make([]string, len(group))
	for i, tx := range group {
		ids[i] = tx.ID
	}
	return []models.Alert{{
		AlertType:     "CASH_CLUSTER",
		Severity:      models.SeverityMedium,
		ScoreDelta:    weightOf(scoring, "CASH_CLUSTER"),
		Explain:       fmt.Sprintf("%d transakcji gotówkowych w ciągu 3 dni", len(group)),
		EvidenceTxIDs: capEvidence(ids),
	}}
}

func detectSpendingOverIncome(profiles map[string]*models.MonthlyProfile, cfg *config.AnomalyThresholds, scoring config.Scoring) []models.Alert {
	var alerts []models.Alert
	for _, month := range SortedMonths(profiles) {
		p := profiles[month]
		credit := p.TotalCredit.Float64()
		if credit <= 0 {
			continue
		}
		ratio := p.TotalDebit.Float64() / credit
		if ratio > cfg.SpendingOverIncomePct {
			severity := models.SeverityMedium
			if ratio > 1.5 {
				severity = models.SeverityHigh
			}
			alerts = append(alerts, models.Alert{
				AlertType:  "SPENDING_OVER_INCOME",
				Severity:   severity,
				ScoreDelta: weightOf(scoring, "SPENDING_OVER_INCOME"),
				Explain:    fmt.Sprintf("Wydatki %.2fx przychodów w miesiącu %s", ratio, month),
			})
		}
	}
	return alerts
}
