// Package rules implements §4.6, the rule engine: classifying a normalized
// transaction against a config.RulesConfig with full explainability.
package rules

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/logging"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/normalize"
)

// compiledCache memoizes regexp.Compile results across classify calls so a
// rule set's patterns are compiled once per process, guarded the way the
// teacher guards its shared parser state.
type compiledCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

var regexCache = &compiledCache{cache: make(map[string]*regexp.Regexp)}

func (c *compiledCache) compile(pattern string) (*regexp.Regexp, bool) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, re != nil
	}
	compiled, err := regexp.Compile(pattern)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.Default().Warn("rules: malformed regex skipped", "pattern", pattern, "err", err)
		c.cache[pattern] = nil
		return nil, false
	}
	c.cache[pattern] = compiled
	return compiled, true
}

// Engine classifies transactions against a live config.Store and the
// counterparty-label snapshot supplied by the memory package.
type Engine struct {
	store *config.Store
}

// NewEngine builds an Engine over a rule config store.
func NewEngine(store *config.Store) *Engine {
	return &Engine{store: store}
}

// Classify runs §4.6 against one transaction, mutating it in place and
// storing the resulting clamped risk score in tx.RiskScore.
func (e *Engine) Classify(tx *models.NormalizedTransaction, counterpartyLabel models.CounterpartyLabel) {
	cfg := e.store.Get()
	search := strings.ToLower(tx.CounterpartyClean + " " + tx.TitleClean + " " + tx.RawText)
	searchAscii := normalize.StripDiacritics(search)

	categoryFixed := false
	for catName, subs := range cfg.Categories {
		if categoryFixed {
			break
		}
		for subName, patterns := range subs {
			matched := false
			var matchedPattern string
			for _, p := range patterns {
				re, ok := regexCache.compile(p)
				if !ok {
					continue
				}
				if re.MatchString(search) || re.MatchString(searchAscii) {
					matched = true
					matchedPattern = p
					break
				}
			}
			if matched {
				tx.Category = catName
				tx.Subcategory = catName + ":" + subName
				tx.RiskTags = appendUnique(tx.RiskTags, catName)
				tx.RuleExplains = append(tx.RuleExplains, models.RuleExplain{
					Rule:    "category:" + catName + ":" + subName,
					Pattern: matchedPattern,
					Matched: catName,
				})
				categoryFixed = true
				break
			}
		}
	}

	for riskName, patterns := range cfg.RiskDictionary {
		for _, p := range patterns {
			re, ok := regexCache.compile(p)
			if !ok {
				continue
			}
			if re.MatchString(search) || re.MatchString(searchAscii) {
				tag := "RISK:" + riskName
				tx.RiskTags = appendUnique(tx.RiskTags, tag)
				tx.RuleExplains = append(tx.RuleExplains, models.RuleExplain{
					Rule:    "risk:" + riskName,
					Pattern: p,
					Matched: tag,
				})
				break
			}
		}
	}

	for _, u := range tx.URLs {
		domain := extractDomain(u)
		if domain == "" {
			continue
		}
		if rule, ok := cfg.URLDomains[domain]; ok {
			tx.Category = rule.Category
			tx.Subcategory = rule.Category + ":" + rule.Subcategory
			tx.RiskTags = appendUnique(tx.RiskTags, rule.Category)
			tx.RuleExplains = append(tx.RuleExplains, models.RuleExplain{
				Rule:    "url_domain:" + domain,
				Pattern: domain,
				Matched: rule.Category,
			})
		}
	}

	switch counterpartyLabel {
	case models.LabelWhitelist:
		tx.IsWhitelisted = true
		tx.RuleExplains = append(tx.RuleExplains, models.RuleExplain{
			Rule: "memory:whitelist", Matched: "WHITELIST_MATCH",
		})
	case models.LabelBlacklist:
		tx.IsBlacklisted = true
		tx.RiskTags = appendUnique(tx.RiskTags, "BLACKLISTED")
		tx.RuleExplains = append(tx.RuleExplains, models.RuleExplain{
			Rule: "memory:blacklist", Matched: "BLACKLIST_MATCH",
		})
	}

	score := 0
	for _, tag := range tx.RiskTags {
		score += lookupWeight(cfg.Scoring, tag)
	}
	if tx.IsWhitelisted {
		score += cfg.Scoring["WHITELIST_MATCH"]
	}
	if tx.IsBlacklisted {
		score += cfg.Scoring["BLACKLIST_MATCH"]
	}
	tx.RiskScore = clamp(score, 0, 100)
}

// lookupWeight resolves a tag's scoring weight by exact upper match, then
// colon->underscore, then with a RISK_/RISK: prefix stripped, per §4.6 step 6.
func lookupWeight(scoring config.Scoring, tag string) int {
	upper := strings.ToUpper(tag)
	if w, ok := scoring[upper]; ok {
		return w
	}
	underscored := strings.ReplaceAll(upper, ":", "_")
	if w, ok := scoring[underscored]; ok {
		return w
	}
	stripped := strings.TrimPrefix(strings.TrimPrefix(underscored, "RISK_"), "RISK:")
	if w, ok := scoring[stripped]; ok {
		return w
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	return strings.ToLower(strings.TrimPrefix(host, "www."))
}

// ClassifyAll runs Classify across every transaction, resolving each
// counterparty's label via the supplied lookup function.
func (e *Engine) ClassifyAll(txs []*models.NormalizedTransaction, labelOf func(counterpartyClean string) models.CounterpartyLabel) {
	for _, tx := range txs {
		label := models.LabelNeutral
		if labelOf != nil {
			label = labelOf(tx.CounterpartyClean)
		}
		e.Classify(tx, label)
	}
}
