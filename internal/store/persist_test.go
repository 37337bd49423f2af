package store

import (
	"path/filepath"
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "aml.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return db
}

func newTestCase(t *testing.T, db *DB) string {
	t.Helper()
	userID, err := db.EnsureUser("operator@local", "Operator")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	projectID, err := db.EnsureProject(userID, "default")
	if err != nil {
		t.Fatalf("ensure project: %v", err)
	}
	caseID, err := db.CreateCase(projectID, "test-case")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return caseID
}

func TestPersistGraphDeletesStaleRowsOnRepersist(t *testing.T) {
	db := openTestDB(t)
	caseID := newTestCase(t, db)

	info := &models.StatementInfo{BankID: "generic", BankName: "Generic", Currency: "PLN"}

	graphA := models.Graph{
		Nodes: []models.Node{
			{ID: "n1", Type: models.NodeAccount, Label: "Account"},
			{ID: "n2", Type: models.NodeCounterparty, Label: "Acme"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "n1", Target: "n2", Type: models.EdgeTransfer, TxCount: 1, TotalAmount: money.MustParse("10.00")},
		},
	}
	if _, err := db.PersistStatement(caseID, info, nil, graphA, 0, nil, nil, nil, true); err != nil {
		t.Fatalf("persist first statement: %v", err)
	}

	var nodeCount, edgeCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM graph_nodes WHERE case_id = ?`, caseID).Scan(&nodeCount); err != nil {
		t.Fatalf("count nodes: %v", err)
	}
	if nodeCount != 2 {
		t.Fatalf("expected 2 nodes after first persist, got %d", nodeCount)
	}

	graphB := models.Graph{
		Nodes: []models.Node{
			{ID: "n3", Type: models.NodeCounterparty, Label: "Other"},
		},
	}
	if _, err := db.PersistStatement(caseID, info, nil, graphB, 0, nil, nil, nil, true); err != nil {
		t.Fatalf("persist second statement: %v", err)
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM graph_nodes WHERE case_id = ?`, caseID).Scan(&nodeCount); err != nil {
		t.Fatalf("count nodes: %v", err)
	}
	if nodeCount != 1 {
		t.Fatalf("expected stale nodes n1/n2 to be deleted, leaving 1, got %d", nodeCount)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM graph_edges WHERE case_id = ?`, caseID).Scan(&edgeCount); err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if edgeCount != 0 {
		t.Fatalf("expected stale edge e1 to be deleted, got %d remaining", edgeCount)
	}
}

func TestDeleteCaseCascades(t *testing.T) {
	db := openTestDB(t)
	caseID := newTestCase(t, db)

	info := &models.StatementInfo{BankID: "generic", BankName: "Generic", Currency: "PLN"}
	graph := models.Graph{Nodes: []models.Node{{ID: "n1", Type: models.NodeAccount, Label: "Account"}}}
	if _, err := db.PersistStatement(caseID, info, nil, graph, 50, nil, nil, nil, true); err != nil {
		t.Fatalf("persist statement: %v", err)
	}

	if err := db.DeleteCase(caseID); err != nil {
		t.Fatalf("delete case: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM statements WHERE case_id = ?`, caseID).Scan(&count); err != nil {
		t.Fatalf("count statements: %v", err)
	}
	if count != 0 {
		t.Errorf("expected statements to cascade-delete, got %d remaining", count)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM graph_nodes WHERE case_id = ?`, caseID).Scan(&count); err != nil {
		t.Fatalf("count graph nodes: %v", err)
	}
	if count != 0 {
		t.Errorf("expected graph nodes to cascade-delete, got %d remaining", count)
	}

	if err := db.DeleteCase("does-not-exist"); err == nil {
		t.Error("expected error deleting a nonexistent case")
	}
}

func TestCounterpartyRoundTrip(t *testing.T) {
	db := openTestDB(t)

	profile := &models.CounterpartyProfile{
		ID:            "cp-1",
		CanonicalName: "Jan Kowalski",
		Label:         models.LabelWhitelist,
		Note:          "verified employer",
		Aliases:       []string{"J. Kowalski", "KOWALSKI JAN"},
		CreatedAt:     "2026-01-01T00:00:00Z",
		UpdatedAt:     "2026-01-01T00:00:00Z",
	}
	if err := db.SaveCounterparty(profile); err != nil {
		t.Fatalf("save counterparty: %v", err)
	}

	loaded, err := db.LoadCounterparties()
	if err != nil {
		t.Fatalf("load counterparties: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(loaded))
	}
	got := loaded[0]
	if got.ID != profile.ID || got.CanonicalName != profile.CanonicalName || got.Label != profile.Label {
		t.Errorf("loaded profile mismatch: %+v", got)
	}
	if len(got.Aliases) != 2 {
		t.Errorf("expected 2 aliases, got %d: %v", len(got.Aliases), got.Aliases)
	}

	// Updating the label and re-saving should not duplicate the profile or its aliases.
	profile.Label = models.LabelBlacklist
	profile.UpdatedAt = "2026-01-02T00:00:00Z"
	if err := db.SaveCounterparty(profile); err != nil {
		t.Fatalf("re-save counterparty: %v", err)
	}
	loaded, err = db.LoadCounterparties()
	if err != nil {
		t.Fatalf("reload counterparties: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected counterparty upsert not to duplicate rows, got %d", len(loaded))
	}
	if loaded[0].Label != models.LabelBlacklist {
		t.Errorf("expected updated label to persist, got %s", loaded[0].Label)
	}
	if len(loaded[0].Aliases) != 2 {
		t.Errorf("expected alias count unchanged on re-save, got %d", len(loaded[0].Aliases))
	}
}

func TestParseTemplateSaveAndSuggest(t *testing.T) {
	db := openTestDB(t)

	tpl := models.ParseTemplate{
		BankID:                "mbank",
		BankName:              "mBank",
		NormalizedHeaderCells: "data|kontrahent|tytuł|kwota|saldo",
		HeaderY:               712.5,
		Columns: []models.ColumnSpec{
			{Label: "Data", Type: "date", XMin: 10, XMax: 80},
			{Label: "Kontrahent", Type: "counterparty", XMin: 80, XMax: 220},
		},
	}
	id, err := db.SaveParseTemplate(tpl)
	if err != nil {
		t.Fatalf("save parse template: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty template id")
	}

	got, found, err := db.SuggestParseTemplate("mbank", tpl.NormalizedHeaderCells)
	if err != nil {
		t.Fatalf("suggest parse template: %v", err)
	}
	if !found {
		t.Fatal("expected an exact-match template to be found")
	}
	if len(got.Columns) != 2 || got.Columns[1].Type != "counterparty" {
		t.Errorf("unexpected columns round-tripped: %+v", got.Columns)
	}

	// Re-saving the same (bank, header) key should update in place, not duplicate.
	if _, err := db.SaveParseTemplate(tpl); err != nil {
		t.Fatalf("re-save parse template: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM parse_templates WHERE bank_id = ?`, "mbank").Scan(&count); err != nil {
		t.Fatalf("count templates: %v", err)
	}
	if count != 1 {
		t.Errorf("expected template upsert not to duplicate rows, got %d", count)
	}

	// A different header for the same bank falls back to the most-used template.
	fallback, found, err := db.SuggestParseTemplate("mbank", "some|other|header")
	if err != nil {
		t.Fatalf("suggest fallback: %v", err)
	}
	if !found {
		t.Fatal("expected a most-used fallback template for the bank")
	}
	if fallback.BankID != "mbank" {
		t.Errorf("expected fallback template for mbank, got %s", fallback.BankID)
	}

	if _, found, err := db.SuggestParseTemplate("ing", "anything"); err != nil {
		t.Fatalf("suggest for unknown bank: %v", err)
	} else if found {
		t.Error("expected no suggestion for a bank with no saved templates")
	}
}
