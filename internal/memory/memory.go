// Package memory implements §4.7: the cross-statement counterparty
// knowledge base, entity resolution via exact/fuzzy matching, and the
// human-review learning queue.
package memory

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

// LinkThreshold is the fuzzy-match score at or above which a name links to
// an existing profile (Open Question in spec.md §9, resolved in DESIGN.md).
const LinkThreshold = 0.85

// CreationConfidenceFloor is the confidence recorded for a newly created
// profile when no existing one matched well enough to link.
const CreationConfidenceFloor = 0.5

var digitRunRE = regexp.MustCompile(`\d{10,}`)

// normalizeName lowercases, trims, collapses whitespace, and strips runs
// of 10+ digits (account numbers), matching the Python original's
// name-normalization rule used for matching only — canonical storage
// preserves the original casing and diacritics.
func normalizeName(s string) string {
	s = digitRunRE.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// fuzzyScore is the token-overlap similarity: |A∩B| / max(|A|,|B|).
func fuzzyScore(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	overlap := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			overlap++
		}
	}
	maxLen := len(ta)
	if len(tb) > maxLen {
		maxLen = len(tb)
	}
	return float64(overlap) / float64(maxLen)
}

// LearningQueueItem is a human-review suggestion awaiting resolution.
type LearningQueueItem struct {
	ID              string
	SuggestedName   string
	SuggestedLabel  models.CounterpartyLabel
	EvidenceTxIDs   []string
	Status          string // "pending" | "resolved"
	ResolvedLabel   models.CounterpartyLabel
	ResolvedNote    string
}

// Memory is the in-process counterparty knowledge base. Persistence is the
// responsibility of internal/store; Memory itself holds the working set
// for one pipeline run plus whatever the store loaded it with.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*models.CounterpartyProfile // by ID
	aliasIdx map[string]string                      // normalized alias/name -> profile ID
	queue    []*LearningQueueItem
}

// New returns an empty Memory. Callers typically hydrate it from the store
// before running a pipeline.
func New() *Memory {
	return &Memory{
		profiles: make(map[string]*models.CounterpartyProfile),
		aliasIdx: make(map[string]string),
	}
}

// Load seeds the memory with previously persisted profiles.
func (m *Memory) Load(profiles []*models.CounterpartyProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.profiles[p.ID] = p
		m.aliasIdx[normalizeName(p.CanonicalName)] = p.ID
		for _, a := range p.Aliases {
			m.aliasIdx[normalizeName(a)] = p.ID
		}
	}
}

// Profiles returns a snapshot of all known profiles.
func (m *Memory) Profiles() []*models.CounterpartyProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.CounterpartyProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out
}

// Resolve implements §4.7 resolve(): exact match on canonical name or alias
// (confidence 1.0); else fuzzy token-overlap match; link at or above
// LinkThreshold, otherwise create a new profile at CreationConfidenceFloor.
// createdAt/updatedAt are supplied by the caller (timestamps are outside
// this package's concerns).
func (m *Memory) Resolve(name string, now string) (*models.CounterpartyProfile, float64) {
	norm := normalizeName(name)
	if norm == "" {
		norm = "unknown"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.aliasIdx[norm]; ok {
		return m.profiles[id], 1.0
	}

	var best *models.CounterpartyProfile
	bestScore := 0.0
	for _, p := range m.profiles {
		score := fuzzyScore(norm, normalizeName(p.CanonicalName))
		for _, a := range p.Aliases {
			if s := fuzzyScore(norm, normalizeName(a)); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}

	if best != nil && bestScore >= LinkThreshold {
		m.addAliasLocked(best, name)
		return best, bestScore
	}

	p := &models.CounterpartyProfile{
		ID:            uuid.NewString(),
		CanonicalName: name,
		Label:         models.LabelNeutral,
		Aliases:       []string{name},
		Confidence:    CreationConfidenceFloor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.profiles[p.ID] = p
	m.aliasIdx[norm] = p.ID
	return p, CreationConfidenceFloor
}

// GetOrCreate is a thin alias over Resolve matching the spec.md operation
// name; sourceBank/amount/date are accepted for signature parity with the
// original operation but are not used by the matching algorithm itself.
func (m *Memory) GetOrCreate(name, sourceBank, date string, amount money.Money) (string, float64) {
	p, conf := m.Resolve(name, date)
	return p.ID, conf
}

// AddAlias attaches an alias to a profile, idempotently.
func (m *Memory) AddAlias(profileID, alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return
	}
	m.addAliasLocked(p, alias)
}

func (m *Memory) addAliasLocked(p *models.CounterpartyProfile, alias string) {
	norm := normalizeName(alias)
	if _, exists := m.aliasIdx[norm]; exists {
		return
	}
	for _, a := range p.Aliases {
		if a == alias {
			m.aliasIdx[norm] = p.ID
			return
		}
	}
	p.Aliases = append(p.Aliases, alias)
	m.aliasIdx[norm] = p.ID
}

// SetLabel updates a profile's label and note; propagates to future
// classifications via GetLabels only, never retroactively edits past
// riskTags, per §4.7's invariant.
func (m *Memory) SetLabel(profileID string, label models.CounterpartyLabel, note string, now string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return
	}
	p.Label = label
	p.Note = note
	p.UpdatedAt = now
}

// GetLabels returns a snapshot map of normalized canonical name -> label,
// for bulk feed into the rule engine.
func (m *Memory) GetLabels() map[string]models.CounterpartyLabel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.CounterpartyLabel, len(m.profiles))
	for _, p := range m.profiles {
		if p.Label == models.LabelNeutral {
			continue
		}
		out[normalizeName(p.CanonicalName)] = p.Label
		for _, a := range p.Aliases {
			out[normalizeName(a)] = p.Label
		}
	}
	return out
}

// LabelLookup builds a func(counterpartyClean string) CounterpartyLabel
// closure suitable for rules.Engine.ClassifyAll, from a label snapshot.
func LabelLookup(labels map[string]models.CounterpartyLabel) func(string) models.CounterpartyLabel {
	return func(counterpartyClean string) models.CounterpartyLabel {
		norm := normalizeName(counterpartyClean)
		if label, ok := labels[norm]; ok {
			return label
		}
		return models.LabelNeutral
	}
}

// AddToLearningQueue enqueues a human-review suggestion.
func (m *Memory) AddToLearningQueue(suggestedName string, suggestedLabel models.CounterpartyLabel, evidenceTxIDs []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := &LearningQueueItem{
		ID:             uuid.NewString(),
		SuggestedName:  suggestedName,
		SuggestedLabel: suggestedLabel,
		EvidenceTxIDs:  evidenceTxIDs,
		Status:         "pending",
	}
	m.queue = append(m.queue, item)
	return item.ID
}

// ListLearningQueue returns pending items, in insertion order.
func (m *Memory) ListLearningQueue() []*LearningQueueItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*LearningQueueItem, 0, len(m.queue))
	for _, it := range m.queue {
		if it.Status == "pending" {
			out = append(out, it)
		}
	}
	return out
}

// ResolveLearningQueueItem applies a human decision: it labels the matching
// profile (creating one if needed) and marks the item resolved.
func (m *Memory) ResolveLearningQueueItem(itemID string, decision models.CounterpartyLabel, note, now string) {
	m.mu.Lock()
	var item *LearningQueueItem
	for _, it := range m.queue {
		if it.ID == itemID {
			item = it
			break
		}
	}
	m.mu.Unlock()
	if item == nil {
		return
	}
	p, _ := m.Resolve(item.SuggestedName, now)
	m.SetLabel(p.ID, decision, note, now)

	m.mu.Lock()
	item.Status = "resolved"
	item.ResolvedLabel = decision
	item.ResolvedNote = note
	m.mu.Unlock()
}
