package extractor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// WordBox is a single text element with its position on the page, used by
// the spatial parser for coordinate-based column detection (§4.1) instead
// of line-based regex.
type WordBox struct {
	Text string
	X    float64
	Y    float64
	Page int
}

// ExtractWordBoxes opens a PDF and returns every text fragment with its
// page index and (X, Y) position, using the same page.Content() access
// extractByContent uses for row reconstruction, but preserving per-word
// position instead of collapsing it into joined lines.
func ExtractWordBoxes(filePath string) ([][]WordBox, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages := make([][]WordBox, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()

		type frag struct {
			x float64
			s string
		}
		rowMap := make(map[int][]frag)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], frag{x: t.X, s: t.S})
		}

		var words []WordBox
		for yKey, frags := range rowMap {
			sort.Slice(frags, func(a, b int) bool { return frags[a].x < frags[b].x })

			var cur strings.Builder
			var curStartX, prevX float64
			started := false
			flush := func() {
				if started && cur.Len() > 0 {
					words = append(words, WordBox{Text: cur.String(), X: curStartX, Y: float64(yKey), Page: i})
				}
				cur.Reset()
				started = false
			}
			for _, f := range frags {
				if started && f.x-prevX > 2.0 {
					flush()
				}
				if !started {
					curStartX = f.x
					started = true
				}
				cur.WriteString(f.s)
				prevX = f.x
			}
			flush()
		}
		pages = append(pages, words)
	}
	return pages, nil
}
