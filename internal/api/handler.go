// Package api exposes the pipeline over HTTP: a health check and a
// multipart statement upload that runs the full analysis and returns the
// PipelineResult as JSON, per §6's library/API surface.
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/pipeline"
	"github.com/insightdelivered/aml-statement-core/internal/store"
)

// uploadDir holds statements between a mapping-preview request and its
// confirmed re-parse, since the spatial re-parse needs the original file on
// disk, not just the already-extracted text (§4.1's confirmed re-parse flow).
var uploadDir = filepath.Join(os.TempDir(), "amlcore-uploads")

// Handler holds the collaborators the HTTP routes need.
type Handler struct {
	Runner *pipeline.Runner
	DB     *store.DB
}

// NewHandler wires a Handler over an already-constructed Runner.
func NewHandler(runner *pipeline.Runner, db *store.DB) *Handler {
	return &Handler{Runner: runner, DB: db}
}

// HandleHealth reports basic liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// AnalyzeResponse wraps the pipeline result with any request-level error.
type AnalyzeResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// HandleAnalyze accepts a multipart PDF upload plus a case_id form field,
// runs the full pipeline against it, and returns the PipelineResult.
func (h *Handler) HandleAnalyze(c *fiber.Ctx) error {
	caseID := c.FormValue("case_id")
	if caseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{Error: "case_id is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{Error: "no file uploaded, use form field 'file'"})
	}

	tmpFile, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(AnalyzeResponse{Error: "failed to create temp file"})
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if err := c.SaveFile(fileHeader, tmpFile.Name()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(AnalyzeResponse{Error: fmt.Sprintf("failed to save upload: %v", err)})
	}

	result, err := h.Runner.Run(c.Context(), pipeline.Input{CaseID: caseID, FilePath: tmpFile.Name()})
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(AnalyzeResponse{Error: err.Error(), Result: result})
	}
	return c.JSON(AnalyzeResponse{Success: true, Result: result})
}

// columnSpecDTO is the wire shape of models.ColumnSpec.
type columnSpecDTO struct {
	Label string  `json:"label"`
	Type  string  `json:"type"`
	XMin  float64 `json:"x_min"`
	XMax  float64 `json:"x_max"`
}

func toColumnSpecDTOs(specs []models.ColumnSpec) []columnSpecDTO {
	out := make([]columnSpecDTO, len(specs))
	for i, s := range specs {
		out[i] = columnSpecDTO{Label: s.Label, Type: s.Type, XMin: s.XMin, XMax: s.XMax}
	}
	return out
}

func fromColumnSpecDTOs(dtos []columnSpecDTO) []models.ColumnSpec {
	out := make([]models.ColumnSpec, len(dtos))
	for i, d := range dtos {
		out[i] = models.ColumnSpec{Label: d.Label, Type: d.Type, XMin: d.XMin, XMax: d.XMax}
	}
	return out
}

// SuggestMappingResponse is the auto-detected column layout a reviewer
// confirms or adjusts before a re-parse.
type SuggestMappingResponse struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	FileToken string          `json:"file_token,omitempty"`
	HeaderY   float64         `json:"header_y"`
	Columns   []columnSpecDTO `json:"columns"`
	Suggested *columnSpecSet  `json:"suggested_template,omitempty"`
}

type columnSpecSet struct {
	BankID  string          `json:"bank_id"`
	Columns []columnSpecDTO `json:"columns"`
}

// HandleSuggestMapping accepts a multipart PDF upload and returns the
// auto-detected column layout (plus any saved template for this bank's
// header structure), without running the rest of the pipeline. The
// uploaded file is retained under uploadDir, keyed by file_token, for the
// follow-up HandleConfirmMapping call — §4.1's confirmed re-parse flow.
func (h *Handler) HandleSuggestMapping(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(SuggestMappingResponse{Error: "no file uploaded, use form field 'file'"})
	}

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(SuggestMappingResponse{Error: "failed to prepare upload storage"})
	}
	token := uuid.NewString()
	destPath := filepath.Join(uploadDir, token+".pdf")
	if err := c.SaveFile(fileHeader, destPath); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(SuggestMappingResponse{Error: fmt.Sprintf("failed to save upload: %v", err)})
	}

	bankID := c.FormValue("bank_id")
	headerY, specs, suggested, err := h.Runner.SuggestColumnMapping(destPath, bankID)
	if err != nil {
		os.Remove(destPath)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(SuggestMappingResponse{Error: err.Error()})
	}

	resp := SuggestMappingResponse{
		Success:   true,
		FileToken: token,
		HeaderY:   headerY,
		Columns:   toColumnSpecDTOs(specs),
	}
	if suggested != nil {
		resp.Suggested = &columnSpecSet{BankID: suggested.BankID, Columns: toColumnSpecDTOs(suggested.Columns)}
	}
	return c.JSON(resp)
}

// ConfirmMappingRequest is the reviewer's confirmed (or adjusted) mapping.
type ConfirmMappingRequest struct {
	CaseID    string          `json:"case_id"`
	FileToken string          `json:"file_token"`
	BankID    string          `json:"bank_id"`
	HeaderY   float64         `json:"header_y"`
	Columns   []columnSpecDTO `json:"columns"`
}

// HandleConfirmMapping re-parses the previously uploaded statement with the
// reviewer's confirmed column mapping, runs the rest of the pipeline
// against the result, saves the mapping as a reusable template, and
// removes the temporary upload.
func (h *Handler) HandleConfirmMapping(c *fiber.Ctx) error {
	var req ConfirmMappingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{Error: "invalid request body"})
	}
	if req.CaseID == "" || req.FileToken == "" || len(req.Columns) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{Error: "case_id, file_token, and columns are required"})
	}
	if strings.ContainsAny(req.FileToken, "/\\.") {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{Error: "invalid file_token"})
	}

	path := filepath.Join(uploadDir, req.FileToken+".pdf")
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(AnalyzeResponse{Error: "no pending upload for that file_token, request a new mapping preview"})
	}
	defer os.Remove(path)

	in := pipeline.Input{CaseID: req.CaseID, FilePath: path, BankID: req.BankID}
	result, err := h.Runner.ReparseWithMapping(c.Context(), in, req.HeaderY, fromColumnSpecDTOs(req.Columns))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(AnalyzeResponse{Error: err.Error(), Result: result})
	}
	return c.JSON(AnalyzeResponse{Success: true, Result: result})
}
