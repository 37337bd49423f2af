package pipeline

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/models"
)

func TestParseCachePutGet(t *testing.T) {
	c := NewParseCache()
	info := &models.StatementInfo{BankID: "mbank"}
	c.Put("/tmp/a.pdf", []string{"page1"}, info, nil, false)

	got, ok := c.Get("/tmp/a.pdf")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Info.BankID != "mbank" {
		t.Errorf("expected cached bank id mbank, got %q", got.Info.BankID)
	}

	if _, ok := c.Get("/tmp/missing.pdf"); ok {
		t.Errorf("expected cache miss for unseen path")
	}
}

func TestParseCacheInvalidate(t *testing.T) {
	c := NewParseCache()
	c.Put("/tmp/a.pdf", []string{"page1"}, &models.StatementInfo{}, nil, false)
	c.Invalidate("/tmp/a.pdf")
	if _, ok := c.Get("/tmp/a.pdf"); ok {
		t.Errorf("expected entry to be gone after invalidate")
	}
}
