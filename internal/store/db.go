// Package store implements the local ACID persistence layer (§4.11):
// a single SQLite file in WAL mode, one writer connection, schema
// created with IF NOT EXISTS so Init is safe to call repeatedly.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS statements (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	bank_id TEXT NOT NULL,
	bank_name TEXT NOT NULL,
	account_iban_masked TEXT,
	account_holder TEXT,
	period_start TEXT,
	period_end TEXT,
	opening_balance_cents INTEGER NOT NULL DEFAULT 0,
	closing_balance_cents INTEGER NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'PLN',
	source_kind TEXT NOT NULL DEFAULT 'pdf',
	balance_valid INTEGER NOT NULL DEFAULT 0,
	warnings_json TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counterparties (
	id TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT 'neutral',
	label_note TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counterparty_aliases (
	id TEXT PRIMARY KEY,
	counterparty_id TEXT NOT NULL REFERENCES counterparties(id) ON DELETE CASCADE,
	alias TEXT NOT NULL,
	UNIQUE(counterparty_id, alias)
);

CREATE TABLE IF NOT EXISTS account_profiles (
	id TEXT PRIMARY KEY,
	counterparty_id TEXT NOT NULL REFERENCES counterparties(id) ON DELETE CASCADE,
	source_bank TEXT,
	first_seen_date TEXT,
	metadata_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS parse_templates (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL,
	bank_name TEXT NOT NULL DEFAULT '',
	normalized_header_cells TEXT NOT NULL,
	header_y REAL NOT NULL DEFAULT 0,
	column_mapping_json TEXT NOT NULL,
	column_bounds_json TEXT NOT NULL DEFAULT '[]',
	times_used INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	UNIQUE(bank_id, normalized_header_cells)
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
	counterparty_id TEXT REFERENCES counterparties(id),
	tx_hash TEXT NOT NULL,
	date TEXT NOT NULL,
	value_date TEXT,
	amount_cents INTEGER NOT NULL,
	currency TEXT NOT NULL DEFAULT 'PLN',
	balance_after_cents INTEGER,
	has_balance INTEGER NOT NULL DEFAULT 0,
	counterparty_raw TEXT,
	title TEXT,
	channel TEXT NOT NULL,
	bank_category TEXT,
	source_row_index INTEGER NOT NULL,
	UNIQUE(statement_id, tx_hash)
);

CREATE TABLE IF NOT EXISTS tx_classifications (
	transaction_id TEXT PRIMARY KEY REFERENCES transactions(id) ON DELETE CASCADE,
	category TEXT,
	subcategory TEXT,
	risk_tags_json TEXT NOT NULL DEFAULT '[]',
	risk_score INTEGER NOT NULL DEFAULT 0,
	is_whitelisted INTEGER NOT NULL DEFAULT 0,
	is_blacklisted INTEGER NOT NULL DEFAULT 0,
	explain_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS field_rules (
	id TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	rules_json TEXT NOT NULL,
	loaded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id TEXT PRIMARY KEY,
	statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
	score INTEGER NOT NULL,
	reasons_json TEXT NOT NULL DEFAULT '[]',
	alerts_json TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	case_id TEXT REFERENCES cases(id) ON DELETE CASCADE,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	detail_json TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	node_type TEXT NOT NULL,
	label TEXT NOT NULL,
	risk_level TEXT NOT NULL DEFAULT 'none',
	cluster TEXT NOT NULL DEFAULT 'none',
	metadata_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	source_node_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
	target_node_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
	edge_type TEXT NOT NULL,
	tx_count INTEGER NOT NULL DEFAULT 0,
	total_amount_cents INTEGER NOT NULL DEFAULT 0,
	first_date TEXT,
	last_date TEXT,
	tx_ids_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS system_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_statement ON transactions(statement_id);
CREATE INDEX IF NOT EXISTS idx_transactions_counterparty ON transactions(counterparty_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_case ON graph_edges(case_id);
CREATE INDEX IF NOT EXISTS idx_counterparty_aliases_alias ON counterparty_aliases(alias);
CREATE INDEX IF NOT EXISTS idx_parse_templates_bank ON parse_templates(bank_id);
`

// DB wraps a *sql.DB configured for single-writer WAL access.
type DB struct {
	*sql.DB
}

// Open opens or creates the SQLite file at path, enabling WAL mode, foreign
// keys, and a busy timeout so concurrent pipeline runs don't fail outright
// on lock contention (§5's resource model).
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL lets readers proceed concurrently

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &DB{db}, nil
}

// Init creates the schema if it doesn't already exist.
func (db *DB) Init() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: execute schema: %w", err)
	}
	return nil
}
