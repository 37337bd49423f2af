package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/insightdelivered/aml-statement-core/internal/models"
)

func newID() string {
	return uuid.NewString()
}

// PersistStatement writes one parsed-and-scored statement under an existing
// case in a single transaction: the statement row, every normalized
// transaction plus its classification, the risk assessment, and the money
// -flow graph's nodes and edges. Either everything commits or nothing does,
// matching the per-stage transactional scope of §5.
func (db *DB) PersistStatement(
	caseID string,
	info *models.StatementInfo,
	txns []*models.NormalizedTransaction,
	graph models.Graph,
	riskScore int,
	reasons []models.RiskReason,
	alerts []models.Alert,
	warnings []string,
	balanceValid bool,
) (statementID string, err error) {
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	statementID = newID()
	now := time.Now().UTC().Format(time.RFC3339)
	warningsJSON, _ := json.Marshal(warnings)

	_, err = tx.Exec(`
		INSERT INTO statements (
			id, case_id, bank_id, bank_name, account_iban_masked, account_holder,
			period_start, period_end, opening_balance_cents, closing_balance_cents,
			currency, source_kind, balance_valid, warnings_json, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		statementID, caseID, info.BankID, info.BankName, info.AccountIBANMasked, info.AccountHolder,
		info.PeriodStart, info.PeriodEnd, info.OpeningBalance.Cents(), info.ClosingBalance.Cents(),
		info.Currency, "pdf", boolToInt(balanceValid), string(warningsJSON), now,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert statement: %w", err)
	}

	for _, t := range txns {
		if err = insertTransaction(tx, statementID, t); err != nil {
			return "", err
		}
	}

	reasonsJSON, _ := json.Marshal(reasons)
	alertsJSON, _ := json.Marshal(alerts)
	_, err = tx.Exec(`
		INSERT INTO risk_assessments (id, statement_id, score, reasons_json, alerts_json, created_at)
		VALUES (?,?,?,?,?,?)`,
		newID(), statementID, riskScore, string(reasonsJSON), string(alertsJSON), now,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert risk assessment: %w", err)
	}

	if err = persistGraph(tx, caseID, graph); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return statementID, nil
}

func insertTransaction(tx *sql.Tx, statementID string, t *models.NormalizedTransaction) error {
	id := newID()
	var counterpartyID sql.NullString
	if t.CounterpartyID != "" {
		counterpartyID = sql.NullString{String: t.CounterpartyID, Valid: true}
	}
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO transactions (
			id, statement_id, counterparty_id, tx_hash, date, value_date, amount_cents,
			currency, balance_after_cents, has_balance, counterparty_raw, title, channel,
			bank_category, source_row_index
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, statementID, counterpartyID, t.TxHash, t.Date, t.ValueDate, t.Amount.Cents(),
		t.Currency, t.BalanceAfter.Cents(), boolToInt(t.HasBalance), t.CounterpartyRaw, t.Title,
		string(t.Channel), t.BankCategory, t.SourceRowIndex,
	)
	if err != nil {
		return fmt.Errorf("store: insert transaction: %w", err)
	}

	riskTagsJSON, _ := json.Marshal(t.RiskTags)
	explainJSON, _ := json.Marshal(t.RuleExplains)
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO tx_classifications (
			transaction_id, category, subcategory, risk_tags_json, risk_score,
			is_whitelisted, is_blacklisted, explain_json
		) VALUES (?,?,?,?,?,?,?,?)`,
		id, t.Category, t.Subcategory, string(riskTagsJSON), t.RiskScore,
		boolToInt(t.IsWhitelisted), boolToInt(t.IsBlacklisted), string(explainJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert classification: %w", err)
	}
	return nil
}

// persistGraph replaces the case's entire money-flow graph: prior nodes and
// edges are deleted first so a counterparty that has dropped out of the
// flow on a re-persist doesn't survive as a stale row, then the current
// graph is inserted, all within the caller's transaction (§4.11).
func persistGraph(tx *sql.Tx, caseID string, g models.Graph) error {
	if _, err := tx.Exec(`DELETE FROM graph_edges WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("store: delete prior graph edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM graph_nodes WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("store: delete prior graph nodes: %w", err)
	}

	nodeIDs := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		id := caseID + ":" + n.ID
		nodeIDs[n.ID] = id
		metaJSON, _ := json.Marshal(n.Metadata)
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO graph_nodes (id, case_id, node_type, label, risk_level, cluster, metadata_json)
			VALUES (?,?,?,?,?,?,?)`,
			id, caseID, string(n.Type), n.Label, string(n.RiskLevel), string(n.Cluster), string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("store: insert graph node: %w", err)
		}
	}
	for _, e := range g.Edges {
		txIDsJSON, _ := json.Marshal(e.TxIDs)
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO graph_edges (
				id, case_id, source_node_id, target_node_id, edge_type, tx_count,
				total_amount_cents, first_date, last_date, tx_ids_json
			) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			caseID+":"+e.ID, caseID, nodeIDs[e.Source], nodeIDs[e.Target], string(e.Type),
			e.TxCount, e.TotalAmount.Cents(), e.FirstDate, e.LastDate, string(txIDsJSON),
		)
		if err != nil {
			return fmt.Errorf("store: insert graph edge: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateCase inserts a new case under a project, generating a fresh ID.
func (db *DB) CreateCase(projectID, name string) (string, error) {
	id := newID()
	_, err := db.Exec(`INSERT INTO cases (id, project_id, name, status, created_at) VALUES (?,?,?,?,?)`,
		id, projectID, name, "open", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store: create case: %w", err)
	}
	return id, nil
}

// EnsureProject gets or creates a project by name under a user, used by the
// CLI entrypoint when no project/case has been created yet (§6).
func (db *DB) EnsureProject(ownerUserID, name string) (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM projects WHERE owner_user_id = ? AND name = ?`, ownerUserID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("store: lookup project: %w", err)
	}
	id = newID()
	_, err = db.Exec(`INSERT INTO projects (id, owner_user_id, name, created_at) VALUES (?,?,?,?)`,
		id, ownerUserID, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store: create project: %w", err)
	}
	return id, nil
}

// EnsureUser gets or creates a user by email, used for the single-operator
// CLI flow where no auth layer exists (out of scope per spec.md).
func (db *DB) EnsureUser(email, displayName string) (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("store: lookup user: %w", err)
	}
	id = newID()
	_, err = db.Exec(`INSERT INTO users (id, email, display_name, created_at) VALUES (?,?,?,?)`,
		id, email, displayName, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store: create user: %w", err)
	}
	return id, nil
}

// AppendAudit records an append-only audit entry for a case (§4.11).
func (db *DB) AppendAudit(caseID, actor, action string, detail map[string]interface{}) error {
	detailJSON, _ := json.Marshal(detail)
	_, err := db.Exec(`INSERT INTO audit_log (id, case_id, actor, action, detail_json, created_at) VALUES (?,?,?,?,?,?)`,
		newID(), caseID, actor, action, string(detailJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: append audit: %w", err)
	}
	return nil
}

// DeleteCase removes a case and everything scoped to it. Statements,
// transactions, classifications, risk assessments, graph nodes/edges, and
// audit entries all cascade via the schema's ON DELETE CASCADE foreign
// keys, per §3's case lifecycle.
func (db *DB) DeleteCase(caseID string) error {
	res, err := db.Exec(`DELETE FROM cases WHERE id = ?`, caseID)
	if err != nil {
		return fmt.Errorf("store: delete case %s: %w", caseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete case %s: %w", caseID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete case %s: not found", caseID)
	}
	return nil
}

// LoadCounterparties hydrates every persisted counterparty profile plus its
// aliases, for seeding Memory at process start so labels and aliases carry
// across statements and processes (§4.7).
func (db *DB) LoadCounterparties() ([]*models.CounterpartyProfile, error) {
	rows, err := db.Query(`SELECT id, canonical_name, label, label_note, created_at, updated_at FROM counterparties`)
	if err != nil {
		return nil, fmt.Errorf("store: query counterparties: %w", err)
	}
	defer rows.Close()

	var profiles []*models.CounterpartyProfile
	for rows.Next() {
		p := &models.CounterpartyProfile{Confidence: 1.0}
		var note sql.NullString
		if err := rows.Scan(&p.ID, &p.CanonicalName, &p.Label, &note, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan counterparty: %w", err)
		}
		p.Note = note.String
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate counterparties: %w", err)
	}

	for _, p := range profiles {
		aliasRows, err := db.Query(`SELECT alias FROM counterparty_aliases WHERE counterparty_id = ?`, p.ID)
		if err != nil {
			return nil, fmt.Errorf("store: query aliases for %s: %w", p.ID, err)
		}
		for aliasRows.Next() {
			var alias string
			if err := aliasRows.Scan(&alias); err != nil {
				aliasRows.Close()
				return nil, fmt.Errorf("store: scan alias: %w", err)
			}
			p.Aliases = append(p.Aliases, alias)
		}
		aliasRows.Close()
	}
	return profiles, nil
}

// SaveCounterparty upserts one profile, plus any of its aliases not already
// on record, into the persistent knowledge base (§4.7, §4.11).
func (db *DB) SaveCounterparty(p *models.CounterpartyProfile) error {
	_, err := db.Exec(`
		INSERT INTO counterparties (id, canonical_name, label, label_note, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			label = excluded.label,
			label_note = excluded.label_note,
			updated_at = excluded.updated_at`,
		p.ID, p.CanonicalName, string(p.Label), p.Note, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: upsert counterparty %s: %w", p.ID, err)
	}
	for _, alias := range p.Aliases {
		if _, err := db.Exec(`INSERT OR IGNORE INTO counterparty_aliases (id, counterparty_id, alias) VALUES (?,?,?)`,
			newID(), p.ID, alias); err != nil {
			return fmt.Errorf("store: insert alias %q for %s: %w", alias, p.ID, err)
		}
	}
	return nil
}

// SaveParseTemplate upserts a confirmed column mapping for (bank_id,
// normalized_header_cells), incrementing times_used on repeat confirms so
// SuggestParseTemplate's most-used fallback stays meaningful (§4.1).
func (db *DB) SaveParseTemplate(tpl models.ParseTemplate) (string, error) {
	mapping := make(map[string]string, len(tpl.Columns))
	for i, c := range tpl.Columns {
		mapping[strconv.Itoa(i)] = c.Type
	}
	mappingJSON, _ := json.Marshal(mapping)
	boundsJSON, _ := json.Marshal(tpl.Columns)

	var existingID string
	err := db.QueryRow(`SELECT id FROM parse_templates WHERE bank_id = ? AND normalized_header_cells = ?`,
		tpl.BankID, tpl.NormalizedHeaderCells).Scan(&existingID)
	switch err {
	case nil:
		_, err = db.Exec(`
			UPDATE parse_templates
			SET column_mapping_json = ?, column_bounds_json = ?, header_y = ?, times_used = times_used + 1
			WHERE id = ?`,
			string(mappingJSON), string(boundsJSON), tpl.HeaderY, existingID)
		if err != nil {
			return "", fmt.Errorf("store: update parse template: %w", err)
		}
		return existingID, nil
	case sql.ErrNoRows:
		id := newID()
		_, err = db.Exec(`
			INSERT INTO parse_templates (
				id, bank_id, bank_name, normalized_header_cells, header_y,
				column_mapping_json, column_bounds_json, times_used, created_at
			) VALUES (?,?,?,?,?,?,?,1,?)`,
			id, tpl.BankID, tpl.BankName, tpl.NormalizedHeaderCells, tpl.HeaderY,
			string(mappingJSON), string(boundsJSON), time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return "", fmt.Errorf("store: insert parse template: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("store: lookup parse template: %w", err)
	}
}

// SuggestParseTemplate finds a saved mapping for bankID: an exact header
// match first, then the bank's most-used template as a partial-match
// fallback, mirroring the original column_mapper's _find_matching_template
// order.
func (db *DB) SuggestParseTemplate(bankID, normalizedHeaderCells string) (*models.ParseTemplate, bool, error) {
	tpl, ok, err := queryParseTemplate(db, `
		SELECT id, bank_id, bank_name, normalized_header_cells, header_y, column_bounds_json, times_used, created_at
		FROM parse_templates WHERE bank_id = ? AND normalized_header_cells = ?
		ORDER BY times_used DESC LIMIT 1`, bankID, normalizedHeaderCells)
	if err != nil || ok {
		return tpl, ok, err
	}
	return queryParseTemplate(db, `
		SELECT id, bank_id, bank_name, normalized_header_cells, header_y, column_bounds_json, times_used, created_at
		FROM parse_templates WHERE bank_id = ?
		ORDER BY times_used DESC LIMIT 1`, bankID)
}

func queryParseTemplate(db *DB, query string, args ...interface{}) (*models.ParseTemplate, bool, error) {
	row := db.QueryRow(query, args...)
	var tpl models.ParseTemplate
	var boundsJSON string
	err := row.Scan(&tpl.ID, &tpl.BankID, &tpl.BankName, &tpl.NormalizedHeaderCells, &tpl.HeaderY,
		&boundsJSON, &tpl.TimesUsed, &tpl.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: query parse template: %w", err)
	}
	if err := json.Unmarshal([]byte(boundsJSON), &tpl.Columns); err != nil {
		return nil, false, fmt.Errorf("store: decode parse template columns: %w", err)
	}
	return &tpl, true, nil
}
