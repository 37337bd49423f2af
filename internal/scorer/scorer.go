// Package scorer implements §4.10: the weighted aggregate risk score
// derived from classified transactions and the rule config.
package scorer

import (
	"sort"
	"strings"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

type tagAccumulator struct {
	count     int
	amount    float64
	evidence  []string
}

// Score computes the aggregate 0-100 risk score and per-tag reasons, per
// §4.10's diminishing-returns-below-10%-share formula.
func Score(txs []*models.NormalizedTransaction, scoring config.Scoring) (int, []models.RiskReason) {
	totalAbs := 0.0
	tagData := make(map[string]*tagAccumulator)

	for _, tx := range txs {
		amt := tx.Amount.Abs().Float64()
		totalAbs += amt
		for _, tag := range tx.RiskTags {
			acc, ok := tagData[tag]
			if !ok {
				acc = &tagAccumulator{}
				tagData[tag] = acc
			}
			acc.count++
			acc.amount += amt
			if len(acc.evidence) < 10 {
				acc.evidence = append(acc.evidence, tx.ID)
			}
		}
	}

	tags := make([]string, 0, len(tagData))
	for tag := range tagData {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var reasons []models.RiskReason
	score := 0.0
	for _, tag := range tags {
		acc := tagData[tag]
		weight, ok := lookupWeight(scoring, tag)
		if !ok {
			continue
		}
		pct := 0.0
		if totalAbs > 0 {
			pct = 100 * acc.amount / totalAbs
		}
		effective := float64(weight)
		if pct < 10 {
			scaled := float64(weight) * pct / 10
			if scaled < effective {
				effective = scaled
			}
		}
		score += effective
		reasons = append(reasons, models.RiskReason{
			Tag:           tag,
			Count:         acc.count,
			Amount:        money.FromFloat(acc.amount),
			PctOfTotal:    pct,
			ScoreDelta:    effective,
			EvidenceTxIDs: acc.evidence,
		})
	}

	sort.Slice(reasons, func(i, j int) bool { return reasons[i].ScoreDelta > reasons[j].ScoreDelta })

	clamped := int(score)
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}
	return clamped, reasons
}

func lookupWeight(scoring config.Scoring, tag string) (int, bool) {
	upper := strings.ToUpper(tag)
	if w, ok := scoring[upper]; ok {
		return w, true
	}
	underscored := strings.ReplaceAll(upper, ":", "_")
	if w, ok := scoring[underscored]; ok {
		return w, true
	}
	stripped := strings.TrimPrefix(strings.TrimPrefix(underscored, "RISK_"), "RISK:")
	if w, ok := scoring[stripped]; ok {
		return w, true
	}
	return 0, false
}
