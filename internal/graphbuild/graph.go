// Package graphbuild implements §4.9: constructing the directed money-flow
// graph from classified transactions, plus the supplemented Filter
// operation for downstream report/UI consumers (§10).
package graphbuild

import (
	"sort"
	"strings"

	"github.com/insightdelivered/aml-statement-core/internal/models"
)

const ownAccountNodeID = "account_own"

// clusterByTag maps a risk-tag prefix to the cluster it escalates toward.
var clusterByTag = []struct {
	prefix  string
	cluster models.Cluster
}{
	{"crypto", models.ClusterCrypto},
	{"gambling", models.ClusterGambling},
	{"loans", models.ClusterLoans},
	{"risky", models.ClusterRisky},
}

func clusterForTags(tags []string) models.Cluster {
	for _, c := range clusterByTag {
		for _, tag := range tags {
			if strings.HasPrefix(strings.ToLower(tag), c.prefix) {
				return c.cluster
			}
		}
	}
	return models.ClusterNormal
}

func riskLevelForTags(tags []string, riskScore int) models.RiskLevel {
	has := func(names ...string) bool {
		for _, n := range names {
			for _, t := range tags {
				if strings.EqualFold(t, n) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("crypto", "gambling", "BLACKLISTED"):
		return models.RiskHigh
	case has("risky", "loans"):
		return models.RiskMedium
	case riskScore > 0:
		return models.RiskLow
	default:
		return models.RiskNone
	}
}

func nodeTypeForChannel(ch models.Channel) models.NodeType {
	switch ch {
	case models.ChannelCard, models.ChannelBlikMerchant:
		return models.NodeMerchant
	case models.ChannelCash:
		return models.NodeCash
	case models.ChannelFee:
		return models.NodePaymentProvider
	default:
		return models.NodeCounterparty
	}
}

var edgeTypeByChannel = map[models.Channel]models.EdgeType{
	models.ChannelCard:         models.EdgeCardPayment,
	models.ChannelTransfer:     models.EdgeTransfer,
	models.ChannelBlikP2P:      models.EdgeBlikP2P,
	models.ChannelBlikMerchant: models.EdgeBlikMerchant,
	models.ChannelCash:         models.EdgeCash,
	models.ChannelRefund:       models.EdgeRefund,
	models.ChannelFee:          models.EdgeFee,
}

func edgeTypeForChannel(ch models.Channel) models.EdgeType {
	if t, ok := edgeTypeByChannel[ch]; ok {
		return t
	}
	return models.EdgeTransfer
}

func counterpartyKey(counterpartyClean string) string {
	key := strings.ToLower(counterpartyClean)
	if key == "" {
		return "unknown"
	}
	if len(key) > 80 {
		key = key[:80]
	}
	return key
}

// Build constructs the directed money-flow graph from classified
// transactions, per §4.9's escalation and aggregation rules.
func Build(txs []*models.NormalizedTransaction) models.Graph {
	nodes := make(map[string]*models.Node)
	edges := make(map[string]*models.Edge)

	nodes[ownAccountNodeID] = &models.Node{
		ID: ownAccountNodeID, Type: models.NodeAccount, Label: "Rachunek własny",
		RiskLevel: models.RiskNone, Cluster: models.ClusterAccount,
		Metadata: map[string]interface{}{},
	}

	for _, tx := range txs {
		key := counterpartyKey(tx.CounterpartyClean)
		cpID := "cp_" + key

		cpNode, ok := nodes[cpID]
		if !ok {
			cpNode = &models.Node{
				ID:       cpID,
				Type:     nodeTypeForChannel(tx.Channel),
				Label:    tx.CounterpartyClean,
				Metadata: map[string]interface{}{"total_amount": 0.0, "tx_count": 0},
			}
			nodes[cpID] = cpNode
		}
		cpNode.RiskLevel = cpNode.RiskLevel.Escalate(riskLevelForTags(tx.RiskTags, tx.RiskScore))
		cpNode.Cluster = cpNode.Cluster.Escalate(clusterForTags(tx.RiskTags))
		cpNode.Metadata["total_amount"] = cpNode.Metadata["total_amount"].(float64) + tx.Amount.Abs().Float64()
		cpNode.Metadata["tx_count"] = cpNode.Metadata["tx_count"].(int) + 1

		var source, target string
		if tx.Direction == "DEBIT" {
			source, target = ownAccountNodeID, cpID
		} else {
			source, target = cpID, ownAccountNodeID
		}
		edgeType := edgeTypeForChannel(tx.Channel)
		edgeKey := source + "->" + target + "|" + string(edgeType)

		e, ok := edges[edgeKey]
		if !ok {
			e = &models.Edge{
				ID: edgeKey, Source: source, Target: target, Type: edgeType,
				FirstDate: tx.Date, LastDate: tx.Date,
			}
			edges[edgeKey] = e
		}
		e.TxCount++
		e.TotalAmount = e.TotalAmount.Add(tx.Amount.Abs())
		if tx.Date < e.FirstDate {
			e.FirstDate = tx.Date
		}
		if tx.Date > e.LastDate {
			e.LastDate = tx.Date
		}
		if len(e.TxIDs) < 20 {
			e.TxIDs = append(e.TxIDs, tx.ID)
		}
	}

	nodeIDs := make([]string, 0, len(nodes))
	for id := range nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	outNodes := make([]models.Node, len(nodeIDs))
	clusterCounts := make(map[models.Cluster]int)
	for i, id := range nodeIDs {
		outNodes[i] = *nodes[id]
		clusterCounts[outNodes[i].Cluster]++
	}

	edgeKeys := make([]string, 0, len(edges))
	for k := range edges {
		edgeKeys = append(edgeKeys, k)
	}
	sort.Strings(edgeKeys)
	outEdges := make([]models.Edge, len(edgeKeys))
	for i, k := range edgeKeys {
		outEdges[i] = *edges[k]
	}

	return models.Graph{
		Nodes: outNodes,
		Edges: outEdges,
		Stats: models.GraphStats{
			TotalNodes:        len(outNodes),
			TotalEdges:        len(outEdges),
			TotalTransactions: len(txs),
			Clusters:          clusterCounts,
		},
	}
}

// FilterCriteria narrows a built graph without rebuilding it (§10,
// supplemented from the Python original's filter_graph).
type FilterCriteria struct {
	DateFrom             string
	DateTo               string
	Channel              models.Channel
	HasChannel           bool
	MinRiskLevel         models.RiskLevel
	HasMinRiskLevel      bool
	CounterpartySubstr   string
}

var riskOrder = map[models.RiskLevel]int{
	models.RiskNone: 0, models.RiskLow: 1, models.RiskMedium: 2, models.RiskHigh: 3,
}

// Filter returns the subgraph whose edges satisfy all supplied criteria,
// together with only the nodes those edges reference.
func Filter(g models.Graph, c FilterCriteria) models.Graph {
	keepEdge := func(e models.Edge) bool {
		if c.DateFrom != "" && e.LastDate < c.DateFrom {
			return false
		}
		if c.DateTo != "" && e.FirstDate > c.DateTo {
			return false
		}
		if c.HasChannel && e.Type != edgeTypeForChannel(c.Channel) {
			return false
		}
		return true
	}

	nodeByID := make(map[string]models.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeByID[n.ID] = n
	}

	var outEdges []models.Edge
	keepNodes := make(map[string]struct{})
	for _, e := range g.Edges {
		if !keepEdge(e) {
			continue
		}
		if c.CounterpartySubstr != "" {
			src := strings.ToLower(nodeByID[e.Source].Label)
			tgt := strings.ToLower(nodeByID[e.Target].Label)
			needle := strings.ToLower(c.CounterpartySubstr)
			if !strings.Contains(src, needle) && !strings.Contains(tgt, needle) {
				continue
			}
		}
		outEdges = append(outEdges, e)
		keepNodes[e.Source] = struct{}{}
		keepNodes[e.Target] = struct{}{}
	}

	var outNodes []models.Node
	clusterCounts := make(map[models.Cluster]int)
	for _, n := range g.Nodes {
		if _, ok := keepNodes[n.ID]; !ok {
			continue
		}
		if c.HasMinRiskLevel && riskOrder[n.RiskLevel] < riskOrder[c.MinRiskLevel] {
			continue
		}
		outNodes = append(outNodes, n)
		clusterCounts[n.Cluster]++
	}

	txCount := 0
	for _, e := range outEdges {
		txCount += e.TxCount
	}

	return models.Graph{
		Nodes: outNodes,
		Edges: outEdges,
		Stats: models.GraphStats{
			TotalNodes:        len(outNodes),
			TotalEdges:        len(outEdges),
			TotalTransactions: txCount,
			Clusters:          clusterCounts,
		},
	}
}
