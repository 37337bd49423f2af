package pipeline

import (
	"sync"

	"github.com/insightdelivered/aml-statement-core/internal/models"
)

// parseResult is one cached parse, keyed by file path so re-analyzing the
// same upload (e.g. after a user confirms a column mapping) skips the
// spatial parse, per §4.1's parse-template caching requirement.
type parseResult struct {
	Pages   []string
	Info    *models.StatementInfo
	Txns    []models.RawTransaction
	OCRUsed bool
}

// ParseCache is a process-wide, mutex-guarded cache of parsed statements.
// It never expires entries; a statement's file path is unique per upload
// in the CLI/API flows that populate it.
type ParseCache struct {
	mu      sync.RWMutex
	entries map[string]parseResult
}

// NewParseCache returns an empty cache.
func NewParseCache() *ParseCache {
	return &ParseCache{entries: make(map[string]parseResult)}
}

// Get returns the cached parse for path, if any.
func (c *ParseCache) Get(path string) (parseResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[path]
	return r, ok
}

// Put stores a parse result for path, overwriting any previous entry.
func (c *ParseCache) Put(path string, pages []string, info *models.StatementInfo, txns []models.RawTransaction, ocrUsed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = parseResult{Pages: pages, Info: info, Txns: txns, OCRUsed: ocrUsed}
}

// Invalidate drops a cached entry, used when a user forces a re-parse.
func (c *ParseCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
