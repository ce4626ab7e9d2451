package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/oppscan/oppscan/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestGenerateDigest(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-a", "fp-a", "p1")
	db.ResolveConcept("c-b", "fp-b", "p2")
	db.ResolveConcept("c-c", "fp-c", "p3")

	db.UpsertOpportunity(&database.Opportunity{
		OpportunityID: "opp-a", ConceptID: "c-a", Title: "Invoice Chaser",
		AppConcept:    ptr("Automated invoice chasing for freelancers"),
		CoreFunctions: []string{"generate invoices", "send reminders"},
		FinalScore:    82.5, MarketDemand: 80, PainIntensity: 90, TrustLevel: "high",
	})
	db.UpsertOpportunity(&database.Opportunity{
		OpportunityID: "opp-b", ConceptID: "c-b", Title: "Meeting Notes Bot",
		FinalScore: 61.0, TrustLevel: "medium",
	})
	// very_low trust never reaches the digest.
	db.UpsertOpportunity(&database.Opportunity{
		OpportunityID: "opp-c", ConceptID: "c-c", Title: "Sketchy Idea",
		FinalScore: 95.0, TrustLevel: "very_low",
	})

	db.InsertRunReport(&database.RunReport{
		RunID: "run-1", Total: 5, Enriched: 3, Duplicates: 1, TotalCost: 0.12,
	})

	digest, err := NewReporter(db).GenerateDigest(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(digest, "## 1. Invoice Chaser") {
		t.Error("expected highest score ranked first")
	}
	if !strings.Contains(digest, "## 2. Meeting Notes Bot") {
		t.Error("expected second opportunity listed")
	}
	if strings.Contains(digest, "Sketchy Idea") {
		t.Error("very_low trust must be excluded")
	}
	if !strings.Contains(digest, "Score 82.5") {
		t.Error("expected final score in digest")
	}
	if !strings.Contains(digest, "- send reminders") {
		t.Error("expected core functions listed")
	}
	if !strings.Contains(digest, "5 posts scanned, 3 enriched") {
		t.Error("expected latest run summary")
	}
}

func TestGenerateDigestEmpty(t *testing.T) {
	db := openTestDB(t)
	digest, err := NewReporter(db).GenerateDigest(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(digest, "No publishable opportunities") {
		t.Errorf("expected empty-state message, got %q", digest)
	}
}
