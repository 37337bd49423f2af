package memory

import "testing"

func TestResolveExactThenFuzzy(t *testing.T) {
	m := New()
	p1, conf1 := m.Resolve("JAN KOWALSKI", "2024-01-01T00:00:00Z")
	if conf1 != CreationConfidenceFloor {
		t.Fatalf("expected creation floor confidence, got %v", conf1)
	}

	p2, conf2 := m.Resolve("JAN KOWALSKI", "2024-01-02T00:00:00Z")
	if p2.ID != p1.ID || conf2 != 1.0 {
		t.Fatalf("expected exact re-match, got id=%s conf=%v", p2.ID, conf2)
	}

	p3, conf3 := m.Resolve("KOWALSKI JAN", "2024-01-03T00:00:00Z")
	if conf3 < LinkThreshold {
		t.Fatalf("expected fuzzy link above threshold, got %v", conf3)
	}
	if p3.ID != p1.ID {
		t.Fatalf("expected link to existing profile")
	}
}

func TestLearningQueueResolve(t *testing.T) {
	m := New()
	id := m.AddToLearningQueue("ACME SP Z O O", "blacklist", []string{"tx-1"})
	if len(m.ListLearningQueue()) != 1 {
		t.Fatalf("expected 1 pending item")
	}
	m.ResolveLearningQueueItem(id, "blacklist", "confirmed by analyst", "2024-01-01T00:00:00Z")
	if len(m.ListLearningQueue()) != 0 {
		t.Fatalf("expected queue drained after resolve")
	}
	labels := m.GetLabels()
	if labels["acme sp z o o"] != "blacklist" {
		t.Fatalf("expected label propagated, got %+v", labels)
	}
}
