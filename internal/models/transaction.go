// Package models defines the data model shared across every pipeline
// stage: raw parser output, statement metadata, the normalized and
// classified transaction, counterparty memory records, monthly baselines,
// anomaly alerts, and the money-flow graph.
package models

import "github.com/insightdelivered/aml-statement-core/internal/money"

// BankCategory is the bank's own transaction type code, e.g. "TR.KART",
// "P.BLIK", "PRZELEW", "ST.ZLEC".
type BankCategory = string

// RawTransaction is a single transaction as produced by a statement parser,
// before normalization, dedup, or classification.
type RawTransaction struct {
	Date            string // YYYY-MM-DD, required
	ValueDate       string // YYYY-MM-DD, optional ("data waluty")
	Amount          money.Money
	Currency        string // 3-letter code, default PLN
	BalanceAfter    money.Money
	HasBalance      bool
	CounterpartyRaw string
	Title           string
	RawText         string // truncated to 500 chars by the normalizer
	BankCategory    BankCategory
	SourceRowIndex  int // order of emission within the statement; preserved through dedup
}

// Direction reports CREDIT iff Amount >= 0, per the spec's direction invariant.
func (r RawTransaction) Direction() string {
	if r.Amount.IsCredit() {
		return "CREDIT"
	}
	return "DEBIT"
}

// StatementInfo holds metadata extracted from the statement header/footer.
type StatementInfo struct {
	BankID              string
	BankName            string
	AccountIBANMasked   string
	AccountHolder       string
	PeriodStart         string
	PeriodEnd           string
	OpeningBalance      money.Money
	ClosingBalance      money.Money
	AvailableBalance    money.Money
	HasAvailableBalance bool
	DeclaredCreditsSum  money.Money
	DeclaredCreditsHas  bool
	DeclaredCreditsCnt  int
	DeclaredDebitsSum   money.Money
	DeclaredDebitsHas   bool
	DeclaredDebitsCnt   int
	Currency            string
}

// Channel enumerates the payment rail a transaction used.
type Channel string

const (
	ChannelCard         Channel = "CARD"
	ChannelTransfer     Channel = "TRANSFER"
	ChannelBlikP2P      Channel = "BLIK_P2P"
	ChannelBlikMerchant Channel = "BLIK_MERCHANT"
	ChannelCash         Channel = "CASH"
	ChannelRefund       Channel = "REFUND"
	ChannelFee          Channel = "FEE"
	ChannelOther        Channel = "OTHER"
)

// RuleExplain records one rule-engine decision for auditability.
type RuleExplain struct {
	Rule    string
	Pattern string
	Matched string
}

// NormalizedTransaction is a RawTransaction plus every field filled in by
// normalization, entity resolution, and classification.
type NormalizedTransaction struct {
	ID                string
	StatementID       string
	Date              string
	ValueDate         string
	Amount            money.Money
	Currency          string
	Direction         string // CREDIT | DEBIT, must agree with Amount.IsCredit()
	BalanceAfter      money.Money
	HasBalance        bool
	CounterpartyRaw   string
	CounterpartyClean string
	CounterpartyID    string // link to memory, optional
	Title             string
	TitleClean        string
	BankCategory      BankCategory
	RawText           string // truncated to 500 chars

	Channel      Channel
	Category     string
	Subcategory  string
	RiskTags     []string
	RiskScore    int // 0-100, clamped
	RuleExplains []RuleExplain

	IsWhitelisted bool
	IsBlacklisted bool

	IsRecurring    bool
	RecurringGroup string
	URLs           []string

	TxHash string // 16-hex prefix of sha256(date|amount|cp[:50]|title[:100])

	SourceRowIndex int
}

// HasRiskTag reports whether tag is present in RiskTags (case-sensitive,
// matching the exact strings the rule engine appended).
func (n *NormalizedTransaction) HasRiskTag(tag string) bool {
	for _, t := range n.RiskTags {
		if t == tag {
			return true
		}
	}
	return false
}

// CounterpartyLabel enumerates the memory's opinion on a counterparty.
type CounterpartyLabel string

const (
	LabelNeutral   CounterpartyLabel = "neutral"
	LabelWhitelist CounterpartyLabel = "whitelist"
	LabelBlacklist CounterpartyLabel = "blacklist"
)

// CounterpartyProfile is a long-lived, cross-statement knowledge-base entry.
type CounterpartyProfile struct {
	ID            string
	CanonicalName string
	Label         CounterpartyLabel
	Note          string
	Aliases       []string
	Confidence    float64
	CreatedAt     string // RFC3339
	UpdatedAt     string // RFC3339
}

// ColumnSpec is one confirmed or auto-detected spatial column boundary
// (§4.1's column mapping), used both for the auto-suggested preview shown
// to a reviewer and for the re-parse that applies their confirmed or
// adjusted bounds.
type ColumnSpec struct {
	Label string
	Type  string
	XMin  float64
	XMax  float64
}

// ParseTemplate is a saved column mapping, keyed by (bank_id, normalized
// header cells) so a future statement sharing the same bank and header
// layout can have its mapping auto-suggested instead of hand-confirmed
// again (§4.1).
type ParseTemplate struct {
	ID                    string
	BankID                string
	BankName              string
	NormalizedHeaderCells string
	HeaderY               float64
	Columns               []ColumnSpec
	TimesUsed             int
	CreatedAt             string
}

// MonthlyProfile is the per-month statistical baseline, keyed by "YYYY-MM".
type MonthlyProfile struct {
	Month            string
	Count            int
	TotalCredit      money.Money
	TotalDebit       money.Money
	Amounts          []money.Money // absolute values, for median/mean/stdev/p95
	Counterparties   map[string]struct{}
	ChannelHistogram map[Channel]int
	CategoryTotals   map[string]money.Money
}

// NewMonthlyProfile returns an initialized, empty profile for the given month key.
func NewMonthlyProfile(month string) *MonthlyProfile {
	return &MonthlyProfile{
		Month:            month,
		Counterparties:   make(map[string]struct{}),
		ChannelHistogram: make(map[Channel]int),
		CategoryTotals:   make(map[string]money.Money),
	}
}

// AlertSeverity enumerates anomaly severities.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a detected anomaly against the monthly baseline.
type Alert struct {
	AlertType     string
	Severity      AlertSeverity
	ScoreDelta    float64
	Explain       string
	EvidenceTxIDs []string
}

// NodeType enumerates money-flow graph node kinds.
type NodeType string

const (
	NodeAccount         NodeType = "ACCOUNT"
	NodeCounterparty    NodeType = "COUNTERPARTY"
	NodeMerchant        NodeType = "MERCHANT"
	NodeCash            NodeType = "CASH_NODE"
	NodePaymentProvider NodeType = "PAYMENT_PROVIDER"
)

// RiskLevel enumerates escalating per-node risk, ordered none < low < medium < high.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskPriority orders RiskLevel for escalation comparisons.
var riskPriority = map[RiskLevel]int{
	RiskNone: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3,
}

// Escalate returns the higher-priority of the two risk levels.
func (r RiskLevel) Escalate(other RiskLevel) RiskLevel {
	if riskPriority[other] > riskPriority[r] {
		return other
	}
	return r
}

// Cluster enumerates the money-flow graph's node clusters.
type Cluster string

const (
	ClusterNormal   Cluster = "NORMAL"
	ClusterLoans    Cluster = "LOANS"
	ClusterRisky    Cluster = "RISKY"
	ClusterCrypto   Cluster = "CRYPTO"
	ClusterGambling Cluster = "GAMBLING"
	ClusterAccount  Cluster = "ACCOUNT"
)

var clusterPriority = map[Cluster]int{
	ClusterNormal: 0, ClusterLoans: 1, ClusterRisky: 2, ClusterCrypto: 3, ClusterGambling: 3,
}

// Escalate returns the higher-priority of the two clusters (CRYPTO and
// GAMBLING share top priority; ties keep the current cluster).
func (c Cluster) Escalate(other Cluster) Cluster {
	if clusterPriority[other] > clusterPriority[c] {
		return other
	}
	return c
}

// Node is a money-flow graph vertex.
type Node struct {
	ID        string
	Type      NodeType
	Label     string
	RiskLevel RiskLevel
	Cluster   Cluster
	EntityID  string
	Metadata  map[string]interface{}
}

// EdgeType enumerates money-flow graph edge kinds.
type EdgeType string

const (
	EdgeTransfer     EdgeType = "TRANSFER"
	EdgeCardPayment  EdgeType = "CARD_PAYMENT"
	EdgeBlikP2P      EdgeType = "BLIK_P2P"
	EdgeBlikMerchant EdgeType = "BLIK_MERCHANT"
	EdgeCash         EdgeType = "CASH"
	EdgeRefund       EdgeType = "REFUND"
	EdgeFee          EdgeType = "FEE"
)

// Edge is a money-flow graph edge, aggregated across all transactions
// sharing the same (source, target, type) key.
type Edge struct {
	ID          string
	Source      string
	Target      string
	Type        EdgeType
	TxCount     int
	TotalAmount money.Money
	FirstDate   string
	LastDate    string
	TxIDs       []string // capped at 20
}

// Graph is the full money-flow graph output of the graph builder.
type Graph struct {
	Nodes []Node
	Edges []Edge
	Stats GraphStats
}

// GraphStats summarizes a built graph.
type GraphStats struct {
	TotalNodes        int
	TotalEdges        int
	TotalTransactions int
	Clusters          map[Cluster]int
}

// RiskReason is one per-tag contribution to the aggregate score (§4.10).
type RiskReason struct {
	Tag           string
	Count         int
	Amount        money.Money
	PctOfTotal    float64
	ScoreDelta    float64
	EvidenceTxIDs []string // capped at 10
}

// PipelineResult is the library entry point's return value (§6).
type PipelineResult struct {
	Status           string // "ok" | "error"
	Error            string
	CaseID           string
	StatementID      string
	Bank             string
	BankName         string
	TransactionCount int
	RiskScore        int
	RiskReasons      []RiskReason
	Alerts           []Alert
	GraphStats       GraphStats
	BalanceValid     bool
	OCRUsed          bool
	Warnings         []string
	ReportHTML       string // left empty; report rendering is out of scope
	PipelineTimeSec  float64
}
