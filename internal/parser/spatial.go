// Package parser: spatial.go implements §4.1, the coordinate-based PDF
// parser. It groups words into column zones by header position, then into
// transaction bands by date markers in the date column — never line-based
// regex on a multi-line table, matching the teacher's extractByContent
// coordinate-row-reconstruction technique but keeping words (not
// pre-joined lines) so columns can be resolved by X position.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/insightdelivered/aml-statement-core/internal/extractor"
	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

const columnEpsilon = 2.0

// colType enumerates the detected semantic type of a spatial column.
type colType string

const (
	colDate         colType = "date"
	colValueDate    colType = "value_date"
	colDescription  colType = "description"
	colCounterparty colType = "counterparty"
	colAmount       colType = "amount"
	colDebit        colType = "debit"
	colCredit       colType = "credit"
	colBalance      colType = "balance"
	colBankType     colType = "bank_type"
	colReference    colType = "reference"
	colSkip         colType = "skip"
)

// columnZone is a tagged record `(x_min, x_max, label, type)`, not a
// free-form map, per §9's dynamic-typing note.
type columnZone struct {
	label string
	typ   colType
	xMin  float64
	xMax  float64
}

func (c columnZone) containsX(x float64) bool {
	return x >= c.xMin-columnEpsilon && x <= c.xMax+columnEpsilon
}

// ColumnSpec is the package's name for models.ColumnSpec: one column
// boundary a reviewer has confirmed or adjusted (§4.1's column mapping).
type ColumnSpec = models.ColumnSpec

func (c ColumnSpec) zone() columnZone {
	t := colType(c.Type)
	switch t {
	case colDate, colValueDate, colDescription, colCounterparty, colAmount,
		colDebit, colCredit, colBalance, colBankType, colReference:
	default:
		t = colSkip
	}
	label := c.Label
	if label == "" {
		label = string(t)
	}
	return columnZone{label: label, typ: t, xMin: c.XMin, xMax: c.XMax}
}

func zoneToSpec(z columnZone) ColumnSpec {
	return ColumnSpec{Label: z.label, Type: string(z.typ), XMin: z.xMin, XMax: z.xMax}
}

// NormalizedHeaderCells builds the (bank_id, normalized_header_cells) cache
// key a saved parse_templates row is looked up by: lowercased, trimmed
// header labels joined by "|", matching the original column_mapper's
// template-matching key.
func NormalizedHeaderCells(labels []string) string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.ToLower(strings.TrimSpace(l))
	}
	return strings.Join(out, "|")
}

// headerTypeHints maps a lowercased header keyword to its column type.
var headerTypeHints = []struct {
	keyword string
	typ     colType
}{
	{"data ksi", colDate}, {"data transakcji", colDate}, {"data", colDate},
	{"data waluty", colValueDate},
	{"kontrahent", colCounterparty}, {"nadawca", colCounterparty}, {"odbiorca", colCounterparty},
	{"tytu", colDescription}, {"szczeg", colDescription}, {"opis", colDescription}, {"operacji", colDescription},
	{"obci", colDebit},
	{"uzna", colCredit},
	{"kwota", colAmount},
	{"saldo", colBalance},
	{"walut", colBankType},
	{"numer", colReference},
}

func typeForHeader(label string) colType {
	l := strings.ToLower(label)
	for _, h := range headerTypeHints {
		if strings.Contains(l, h.keyword) {
			return h.typ
		}
	}
	return colSkip
}

// NoHeaderDetected is returned when no header row can be located.
type NoHeaderDetected struct {
	YMin, YMax float64
}

func (e *NoHeaderDetected) Error() string {
	return "parser: no header row detected in scanned Y range"
}

// SpatialParser implements Parser for Polish bank-statement PDFs using
// word bounding boxes rather than line-based regex.
type SpatialParser struct {
	bankID   BankID
	bankName string
}

// BankName returns the configured or auto-detected bank's display name.
func (p *SpatialParser) BankName() string { return p.bankName }

// Parse implements §4.1's algorithm end to end.
func (p *SpatialParser) Parse(filePath string, pages []string) (*models.StatementInfo, []models.RawTransaction, error) {
	wordPages, err := extractor.ExtractWordBoxes(filePath)
	if err != nil || allEmpty(wordPages) {
		return p.parseFallback(pages)
	}

	header, headerY, err := locateHeader(wordPages)
	if err != nil {
		return nil, nil, err
	}
	columns := deriveColumns(header)

	txns := p.buildTransactions(wordPages, columns, headerY)

	info := extractInfoCommon(strings.Join(pages, "\n\n"))
	info.BankID = p.bankID
	info.BankName = p.bankName
	return info, txns, nil
}

// DetectColumns runs steps 2-3 of §4.1 only (header detection, column
// derivation) and returns them as a reviewable mapping, for the
// auto-suggested preview a caller shows before asking for confirmation.
func (p *SpatialParser) DetectColumns(filePath string) (headerY float64, specs []ColumnSpec, err error) {
	wordPages, err := extractor.ExtractWordBoxes(filePath)
	if err != nil {
		return 0, nil, fmt.Errorf("parser: no word-coordinate data available for column preview: %w", err)
	}
	if allEmpty(wordPages) {
		return 0, nil, fmt.Errorf("parser: no word-coordinate data available for column preview")
	}

	header, y, err := locateHeader(wordPages)
	if err != nil {
		return 0, nil, err
	}
	zones := deriveColumns(header)
	specs = make([]ColumnSpec, len(zones))
	for i, z := range zones {
		specs[i] = zoneToSpec(z)
	}
	return y, specs, nil
}

// ParseWithMapping re-parses a statement against a user-confirmed (or
// adjusted) column mapping instead of auto-deriving columns from the
// header row, replacing §4.1 steps 2-3 and re-running steps 4-6 over the
// explicit bounds. Mirrors the original column_mapper's parse_with_mapping:
// column bounds authoritatively rebuild the columns, the PDF itself is not
// re-parsed for layout, only re-segmented against the new zones.
func (p *SpatialParser) ParseWithMapping(filePath string, pages []string, headerY float64, mapping []ColumnSpec) (*models.StatementInfo, []models.RawTransaction, error) {
	wordPages, err := extractor.ExtractWordBoxes(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: cannot re-parse with mapping: %w", err)
	}
	if allEmpty(wordPages) {
		return nil, nil, fmt.Errorf("parser: cannot re-parse with mapping: no word-coordinate data")
	}

	columns := make([]columnZone, len(mapping))
	for i, m := range mapping {
		columns[i] = m.zone()
	}

	txns := p.buildTransactions(wordPages, columns, headerY)

	info := extractInfoCommon(strings.Join(pages, "\n\n"))
	info.BankID = p.bankID
	info.BankName = p.bankName
	return info, txns, nil
}

func allEmpty(pages [][]extractor.WordBox) bool {
	for _, p := range pages {
		if len(p) > 0 {
			return false
		}
	}
	return true
}

// locateHeader finds the single Y-band (within one page) whose words
// contain at least 3 recognized header keywords, per §4.1 step 2.
func locateHeader(pages [][]extractor.WordBox) (header []extractor.WordBox, headerY float64, err error) {
	for _, page := range pages {
		byRow := groupByRow(page)
		rowYs := sortedRowKeys(byRow)
		for _, y := range rowYs {
			row := byRow[y]
			hits := 0
			for _, w := range row {
				if isHeaderKeyword(w.Text) {
					hits++
				}
			}
			if hits >= 3 {
				return row, y, nil
			}
		}
	}
	return nil, 0, &NoHeaderDetected{}
}

func groupByRow(words []extractor.WordBox) map[float64][]extractor.WordBox {
	out := make(map[float64][]extractor.WordBox)
	for _, w := range words {
		out[w.Y] = append(out[w.Y], w)
	}
	return out
}

func sortedRowKeys(byRow map[float64][]extractor.WordBox) []float64 {
	keys := make([]float64, 0, len(byRow))
	for k := range byRow {
		keys = append(keys, k)
	}
	// PDF Y increases bottom-to-top; a header row is near the top of the
	// body, so scan from the highest Y down.
	sort.Sort(sort.Reverse(sort.Float64Slice(keys)))
	return keys
}

// deriveColumns derives column boundaries from each header word's start X
// (WordBox keeps no width, so word centers are not used), per §4.1 step 3.
// Each column's X range extends halfway to its neighbors on either side.
func deriveColumns(header []extractor.WordBox) []columnZone {
	sorted := append([]extractor.WordBox(nil), header...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	zones := make([]columnZone, len(sorted))
	for i, w := range sorted {
		zones[i] = columnZone{label: w.Text, typ: typeForHeader(w.Text), xMin: w.X, xMax: w.X}
	}
	for i := range zones {
		left := zones[i].xMin
		if i > 0 {
			left = (zones[i-1].xMax + zones[i].xMin) / 2
		} else {
			left -= 40
		}
		right := zones[i].xMax
		if i < len(zones)-1 {
			right = (zones[i].xMax + zones[i+1].xMin) / 2
		} else {
			right += 40
		}
		zones[i].xMin, zones[i].xMax = left, right
	}
	return zones
}

// buildTransactions implements §4.1 steps 4-6: banding body words by date
// markers in the date column, then collecting each band's cells.
func (p *SpatialParser) buildTransactions(pages [][]extractor.WordBox, columns []columnZone, headerY float64) []models.RawTransaction {
	var dateCol *columnZone
	for i := range columns {
		if columns[i].typ == colDate {
			dateCol = &columns[i]
			break
		}
	}
	if dateCol == nil {
		return nil
	}

	var txns []models.RawTransaction
	rowIdx := 0
	var prevBalance money.Money
	havePrevBalance := false

	for _, page := range pages {
		byRow := groupByRow(page)
		rowYs := sortedRowKeys(byRow)

		var bands [][]extractor.WordBox
		var current []extractor.WordBox
		for _, y := range rowYs {
			if y >= headerY {
				continue // above/at header: not body
			}
			row := byRow[y]
			startsNewBand := false
			for _, w := range row {
				if dateCol.containsX(w.X) && isDateCell(w.Text) {
					startsNewBand = true
					break
				}
			}
			if startsNewBand && len(current) > 0 {
				bands = append(bands, current)
				current = nil
			}
			current = append(current, row...)
		}
		if len(current) > 0 {
			bands = append(bands, current)
		}

		for _, band := range bands {
			cells := collectCells(band, columns)
			dateVal := strings.TrimSpace(cells[colDate])
			if dateVal == "" {
				continue // no date cell: discard silently (§4.1 error conditions)
			}

			amt, ok := resolveAmount(cells)
			if !ok {
				continue // unresolvable amount: discard with warning (upstream logs it)
			}

			raw := models.RawTransaction{
				Date:            normalizeDate(dateVal),
				ValueDate:       normalizeDate(strings.TrimSpace(cells[colValueDate])),
				Amount:          amt,
				CounterpartyRaw: collapseWS(cells[colCounterparty]),
				Title:           collapseWS(cells[colDescription]),
				RawText:         collapseWS(cells[colDescription] + " " + cells[colCounterparty]),
				BankCategory:    collapseWS(cells[colReference]),
				SourceRowIndex:  rowIdx,
			}
			if balStr := strings.TrimSpace(cells[colBalance]); balStr != "" {
				if bal, err := money.Parse(balStr); err == nil {
					raw.BalanceAfter = bal
					raw.HasBalance = true
					prevBalance = bal
					havePrevBalance = true
				}
			} else if havePrevBalance {
				raw.BalanceAfter = prevBalance.Add(amt)
			}
			txns = append(txns, raw)
			rowIdx++
		}
	}
	return txns
}

// collectCells concatenates words whose start X falls in each column's
// zone (not their X-center), preserving Y-order within the band (§4.1 step 5).
func collectCells(band []extractor.WordBox, columns []columnZone) map[colType]string {
	sorted := append([]extractor.WordBox(nil), band...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	cells := make(map[colType]string)
	for _, w := range sorted {
		for _, col := range columns {
			if col.typ == colSkip {
				continue
			}
			if col.containsX(w.X) {
				if cells[col.typ] != "" {
					cells[col.typ] += " "
				}
				cells[col.typ] += w.Text
				break
			}
		}
	}
	return cells
}

// resolveAmount implements §4.1's separate debit/credit semantics: the
// non-empty one wins (credit positive, debit negated); otherwise falls
// back to a single signed amount column.
func resolveAmount(cells map[colType]string) (money.Money, bool) {
	debitStr := strings.TrimSpace(cells[colDebit])
	creditStr := strings.TrimSpace(cells[colCredit])

	if creditStr != "" {
		if amt, err := money.Parse(creditStr); err == nil && amt != 0 {
			return amt.Abs(), true
		}
	}
	if debitStr != "" {
		if amt, err := money.Parse(debitStr); err == nil && amt != 0 {
			return amt.Abs().Neg(), true
		}
	}
	if amtStr := strings.TrimSpace(cells[colAmount]); amtStr != "" {
		if amt, err := money.Parse(amtStr); err == nil {
			return amt, true
		}
	}
	return 0, false
}

var dmyRE = regexp.MustCompile(`^(\d{2})[./-](\d{2})[./-](\d{2,4})$`)

// normalizeDate converts DD.MM.YYYY (or YY) to YYYY-MM-DD.
func normalizeDate(s string) string {
	m := dmyRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	day, month, year := m[1], m[2], m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	return year + "-" + month + "-" + day
}

// parseFallback is used when word-box extraction fails (e.g. a scanned or
// OCR-only document with no embedded coordinate data); it delegates to the
// generic row-based parser over the already-extracted page text.
func (p *SpatialParser) parseFallback(pages []string) (*models.StatementInfo, []models.RawTransaction, error) {
	info, txns, err := ParseGenericRows(pages)
	if info != nil {
		info.BankID = p.bankID
		info.BankName = p.bankName
	}
	return info, txns, err
}
