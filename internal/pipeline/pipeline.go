// Package pipeline wires every stage (§5) into one Run call: parse,
// reconcile, normalize, resolve entities, classify, detect anomalies,
// build the graph, score, and persist, all inside a single statement
// run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/insightdelivered/aml-statement-core/internal/baseline"
	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/extractor"
	"github.com/insightdelivered/aml-statement-core/internal/graphbuild"
	"github.com/insightdelivered/aml-statement-core/internal/logging"
	"github.com/insightdelivered/aml-statement-core/internal/memory"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/normalize"
	"github.com/insightdelivered/aml-statement-core/internal/parser"
	"github.com/insightdelivered/aml-statement-core/internal/reconcile"
	"github.com/insightdelivered/aml-statement-core/internal/rules"
	"github.com/insightdelivered/aml-statement-core/internal/scorer"
	"github.com/insightdelivered/aml-statement-core/internal/store"
)

// Input describes one statement run.
type Input struct {
	CaseID   string
	FilePath string
	BankID   parser.BankID // empty triggers AutoDetect
}

// Runner holds the long-lived collaborators a pipeline run needs: the
// persistence layer, the rule config store, and the cross-statement
// counterparty memory. One Runner serves many Run calls.
type Runner struct {
	DB     *store.DB
	Rules  *config.Store
	Memory *memory.Memory
	Cache  *ParseCache
}

// NewRunner wires a Runner from its already-opened collaborators. If db is
// non-nil, every previously persisted counterparty profile is loaded into
// mem immediately, so labels and aliases carry across processes instead of
// mem starting out empty every run (§4.7).
func NewRunner(db *store.DB, rulesStore *config.Store, mem *memory.Memory) *Runner {
	if db != nil {
		if profiles, err := db.LoadCounterparties(); err != nil {
			logging.Warn("memory", "", "failed to hydrate counterparty memory from store", "err", err)
		} else {
			mem.Load(profiles)
			logging.Stage("memory", "", "hydrated counterparty memory", "profiles", len(profiles))
		}
	}
	return &Runner{DB: db, Rules: rulesStore, Memory: mem, Cache: NewParseCache()}
}

// Run executes every stage of §5 for one statement and returns the
// library's public result shape (§6). Stage errors are wrapped with the
// taxonomy in errors.go; reconciliation and classification problems are
// non-fatal and collected as warnings instead.
func (r *Runner) Run(ctx context.Context, in Input) (*models.PipelineResult, error) {
	pages, info, raws, ocrUsed, err := r.parseStatement(in)
	if err != nil {
		return &models.PipelineResult{Status: "error", CaseID: in.CaseID, Error: err.Error()}, err
	}
	return r.runFromParsed(ctx, in, pages, info, raws, ocrUsed)
}

// SuggestColumnMapping returns the auto-detected column layout for a
// statement's spatial parser, plus a previously-saved template for its
// bank/header structure when one exists, per §4.1's auto-suggested mapping
// step of the confirmed re-parse flow.
func (r *Runner) SuggestColumnMapping(filePath string, bankID parser.BankID) (headerY float64, specs []models.ColumnSpec, suggested *models.ParseTemplate, err error) {
	if bankID == "" {
		if pages, perr := extractor.ExtractText(filePath); perr == nil {
			bankID, _ = parser.AutoDetect(pages)
		}
		if bankID == "" {
			bankID = parser.BankGeneric
		}
	}

	p, err := parser.New(bankID)
	if err != nil {
		return 0, nil, nil, err
	}
	sp, ok := p.(*parser.SpatialParser)
	if !ok {
		return 0, nil, nil, fmt.Errorf("pipeline: parser for %s does not support column mapping preview", bankID)
	}

	headerY, specs, err = sp.DetectColumns(filePath)
	if err != nil {
		return 0, nil, nil, err
	}

	if r.DB != nil {
		labels := make([]string, len(specs))
		for i, s := range specs {
			labels[i] = s.Label
		}
		if tpl, found, serr := r.DB.SuggestParseTemplate(bankID, parser.NormalizedHeaderCells(labels)); serr == nil && found {
			suggested = tpl
		}
	}
	return headerY, specs, suggested, nil
}

// ReparseWithMapping re-runs the pipeline against a column mapping a
// reviewer has confirmed (optionally adjusting the auto-suggested bounds),
// replacing the parser's own column derivation, then re-running every
// downstream stage and saving the mapping as a reusable template — §4.1's
// "User-confirmed re-parse" operation.
func (r *Runner) ReparseWithMapping(ctx context.Context, in Input, headerY float64, columns []models.ColumnSpec) (*models.PipelineResult, error) {
	bankID := in.BankID
	if bankID == "" {
		bankID = parser.BankGeneric
	}

	p, err := parser.New(bankID)
	if err != nil {
		werr := &ParseError{Kind: "UnsupportedFormat", Detail: err.Error()}
		return &models.PipelineResult{Status: "error", CaseID: in.CaseID, Error: werr.Error()}, werr
	}
	sp, ok := p.(*parser.SpatialParser)
	if !ok {
		werr := &ParseError{Kind: "UnsupportedFormat", Detail: "parser does not support column mapping"}
		return &models.PipelineResult{Status: "error", CaseID: in.CaseID, Error: werr.Error()}, werr
	}

	pages, err := extractor.ExtractText(in.FilePath)
	if err != nil {
		werr := &ParseError{Kind: "EmptyTextLayer", Detail: in.FilePath}
		return &models.PipelineResult{Status: "error", CaseID: in.CaseID, Error: werr.Error()}, werr
	}

	info, raws, err := sp.ParseWithMapping(in.FilePath, pages, headerY, columns)
	if err != nil {
		werr := &ParseError{Kind: "UnsupportedFormat", Detail: err.Error()}
		return &models.PipelineResult{Status: "error", CaseID: in.CaseID, Error: werr.Error()}, werr
	}
	r.Cache.Put(in.FilePath, pages, info, raws, false)

	if r.DB != nil {
		labels := make([]string, len(columns))
		for i, c := range columns {
			labels[i] = c.Label
		}
		tpl := models.ParseTemplate{
			BankID:                bankID,
			BankName:              info.BankName,
			NormalizedHeaderCells: parser.NormalizedHeaderCells(labels),
			HeaderY:               headerY,
			Columns:               columns,
		}
		if _, terr := r.DB.SaveParseTemplate(tpl); terr != nil {
			logging.Warn("parser", in.CaseID, "failed to save confirmed parse template", "err", terr)
		}
	}

	return r.runFromParsed(ctx, in, pages, info, raws, false)
}

// runFromParsed runs every stage after parsing (reconcile onward) against
// an already-produced parse, shared by Run and ReparseWithMapping so a
// confirmed re-parse gets the identical downstream treatment as a fresh one.
func (r *Runner) runFromParsed(ctx context.Context, in Input, pages []string, info *models.StatementInfo, raws []models.RawTransaction, ocrUsed bool) (*models.PipelineResult, error) {
	start := time.Now()
	result := &models.PipelineResult{Status: "ok", CaseID: in.CaseID}
	result.OCRUsed = ocrUsed
	result.Bank = info.BankID
	result.BankName = info.BankName

	recon := reconcile.Run(*info, raws)
	result.BalanceValid = recon.Valid
	result.Warnings = append(result.Warnings, recon.Warnings...)
	if !recon.Valid {
		logging.Warn("reconcile", in.CaseID, "statement failed balance invariants", "count", len(recon.Warnings))
	}

	statementID := fmt.Sprintf("stmt-%d", time.Now().UnixNano())
	normalized := normalize.NormalizeAll(raws, statementID)
	result.TransactionCount = len(normalized)

	now := time.Now().UTC().Format(time.RFC3339)
	labels := r.Memory.GetLabels()
	known := make(map[string]struct{}, len(r.Memory.Profiles()))
	for _, p := range r.Memory.Profiles() {
		known[p.CanonicalName] = struct{}{}
	}
	engine := rules.NewEngine(r.Rules)
	resolved := make(map[string]*models.CounterpartyProfile)
	for _, tx := range normalized {
		profile, _ := r.Memory.Resolve(tx.CounterpartyClean, now)
		tx.CounterpartyID = profile.ID
		resolved[profile.ID] = profile
		label := labels[tx.CounterpartyClean]
		engine.Classify(tx, label)
	}

	// Flush every profile touched by this statement back to the store so
	// new profiles, new aliases, and label changes carry into the next
	// process's Resolve calls instead of living only in this run's Memory.
	if r.DB != nil {
		for _, p := range resolved {
			if perr := r.DB.SaveCounterparty(p); perr != nil {
				logging.Warn("memory", in.CaseID, "failed to persist counterparty profile", "counterparty_id", p.ID, "err", perr)
			}
		}
	}

	cfg := r.Rules.Get()
	profiles := baseline.Build(normalized)
	alerts := baseline.DetectAnomalies(normalized, profiles, known, &cfg.Anomaly, cfg.Scoring)
	result.Alerts = alerts

	graph := graphbuild.Build(normalized)
	result.GraphStats = graph.Stats

	score, reasons := scorer.Score(normalized, cfg.Scoring)
	result.RiskScore = score
	result.RiskReasons = reasons

	if r.DB != nil {
		stmtID, perr := r.DB.PersistStatement(in.CaseID, info, normalized, graph, score, reasons, alerts, result.Warnings, recon.Valid)
		if perr != nil {
			werr := &PersistenceError{Kind: "SchemaMismatch", Err: perr}
			result.Status = "error"
			result.Error = werr.Error()
			return result, werr
		}
		result.StatementID = stmtID
		_ = r.DB.AppendAudit(in.CaseID, "pipeline", "statement_analyzed", map[string]interface{}{
			"bank": info.BankID, "tx_count": len(normalized), "risk_score": score,
		})
	}

	_ = pages // retained for callers that want the raw text layer (debug/report)
	result.PipelineTimeSec = time.Since(start).Seconds()
	return result, nil
}

// parseStatement resolves the bank, runs the spatial parser, and falls
// back to OCR when the text layer is empty, mirroring §4.1's degraded-mode
// fallback. It returns the raw page text alongside the parse for callers
// that want to render a report from it later.
func (r *Runner) parseStatement(in Input) (pages []string, info *models.StatementInfo, txns []models.RawTransaction, ocrUsed bool, err error) {
	if cached, ok := r.Cache.Get(in.FilePath); ok {
		return cached.Pages, cached.Info, cached.Txns, cached.OCRUsed, nil
	}

	pages, err = extractor.ExtractText(in.FilePath)
	if err != nil || !extractor.IsReadableText(pages) {
		ocrPages, ocrErr := extractor.ExtractTextOCR(in.FilePath)
		switch {
		case ocrErr == nil:
			pages = ocrPages
			ocrUsed = true
		case err != nil:
			return nil, nil, nil, false, &ParseError{Kind: "EmptyTextLayer", Detail: in.FilePath}
		default:
			kind := "OCRFailed"
			if !extractor.IsOCRAvailable() {
				kind = "OCRUnavailable"
			}
			cerr := &ExternalCollaboratorError{Kind: kind, Err: ocrErr}
			logging.Warn("ocr", in.CaseID, "continuing with the existing text layer", "err", cerr.Error())
		}
	}

	bankID := in.BankID
	if bankID == "" {
		bankID, err = parser.AutoDetect(pages)
		if err != nil {
			bankID = parser.BankGeneric
		}
	}

	p, err := parser.New(bankID)
	if err != nil {
		return nil, nil, nil, ocrUsed, &ParseError{Kind: "UnsupportedFormat", Detail: err.Error()}
	}

	info, txns, err = p.Parse(in.FilePath, pages)
	if err != nil {
		if _, ok := err.(*parser.NoHeaderDetected); ok {
			return nil, nil, nil, ocrUsed, &ParseError{Kind: "NoHeaderDetected", Detail: in.FilePath}
		}
		return nil, nil, nil, ocrUsed, &ParseError{Kind: "UnsupportedFormat", Detail: err.Error()}
	}

	r.Cache.Put(in.FilePath, pages, info, txns, ocrUsed)
	return pages, info, txns, ocrUsed, nil
}
