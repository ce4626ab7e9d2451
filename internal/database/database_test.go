package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestInsertPost(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertPost(&Post{
		PostID: "t3_abc", Title: "My invoicing workflow is a mess",
		Body: ptr("body text"), Community: ptr("smallbusiness"),
		EngagementScore: 42, CommentCount: 17, CreatedAt: ptr("2026-08-29T10:00:00Z"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero post ID")
	}
}

func TestInsertDuplicatePost(t *testing.T) {
	db := openTestDB(t)
	_, _ = db.InsertPost(&Post{PostID: "t3_dup", Title: "First"})
	id, err := db.InsertPost(&Post{PostID: "t3_dup", Title: "Duplicate"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0 {
		t.Error("expected 0 for duplicate post")
	}
}

func TestGetPostByPostID(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(&Post{PostID: "t3_xyz", Title: "Title here", Body: ptr("Body"), Community: ptr("SaaS"), EngagementScore: 10, CommentCount: 5})

	p, err := db.GetPostByPostID("t3_xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected post, got nil")
	}
	if p.EngagementScore != 10 || p.CommentCount != 5 {
		t.Errorf("unexpected metrics: engagement=%d comments=%d", p.EngagementScore, p.CommentCount)
	}

	missing, err := db.GetPostByPostID("t3_missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing post")
	}
}

func TestGetPostsNeedingExpansion(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(&Post{PostID: "t3_link", Title: "Check this out", LinkURL: ptr("https://example.com/a")})
	db.InsertPost(&Post{PostID: "t3_text", Title: "Long writeup", Body: ptr("plenty of body text")})

	pending, err := db.GetPostsNeedingExpansion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].PostID != "t3_link" {
		t.Fatalf("expected only the link post, got %+v", pending)
	}

	if err := db.UpdatePostBody(pending[0].ID, ptr("extracted page text")); err != nil {
		t.Fatalf("update body: %v", err)
	}

	pending, _ = db.GetPostsNeedingExpansion()
	if len(pending) != 0 {
		t.Errorf("expected no pending posts after expansion, got %d", len(pending))
	}

	p, _ := db.GetPostByPostID("t3_link")
	if p.Body == nil || *p.Body != "extracted page text" {
		t.Errorf("expected expanded body, got %+v", p.Body)
	}
	if !p.LinkExpanded {
		t.Error("expected link_expanded flag set")
	}
}

func TestResolveConceptCreatesOnce(t *testing.T) {
	db := openTestDB(t)

	c1, isNew, err := db.ResolveConcept("c-aaa", "fp-123", "t3_one")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !isNew {
		t.Error("expected first resolve to create the concept")
	}
	if c1.MemberCount != 1 {
		t.Errorf("expected member_count 1, got %d", c1.MemberCount)
	}

	c2, isNew, err := db.ResolveConcept("c-bbb", "fp-123", "t3_two")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if isNew {
		t.Error("expected second resolve to hit the existing concept")
	}
	if c2.ConceptID != "c-aaa" {
		t.Errorf("expected original concept_id c-aaa, got %s", c2.ConceptID)
	}
	if c2.MemberCount != 2 {
		t.Errorf("expected member_count 2, got %d", c2.MemberCount)
	}
	if c2.RepresentativePostID != "t3_one" {
		t.Errorf("expected representative to stay t3_one, got %s", c2.RepresentativePostID)
	}
}

func TestUpsertOpportunityIdempotent(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-aaa", "fp-1", "t3_one")

	first := &Opportunity{
		OpportunityID: "opp-aaa",
		ConceptID:     "c-aaa",
		Title:         "Invoice Helper",
		AppConcept:    ptr("Automated invoicing for freelancers"),
		CoreFunctions: []string{"generate invoices", "track payments"},
		FinalScore:    62.5,
		TrustLevel:    "medium",
	}
	if err := db.UpsertOpportunity(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &Opportunity{
		OpportunityID: "opp-aaa",
		ConceptID:     "c-aaa",
		Title:         "Invoice Helper v2",
		CoreFunctions: []string{"generate invoices"},
		FinalScore:    71.0,
		TrustLevel:    "high",
	}
	if err := db.UpsertOpportunity(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	opps, err := db.GetAllOpportunities()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected exactly 1 row after double upsert, got %d", len(opps))
	}
	if opps[0].Title != "Invoice Helper v2" {
		t.Errorf("expected second write to win, got title %q", opps[0].Title)
	}
	if opps[0].FinalScore != 71.0 {
		t.Errorf("expected final_score 71.0, got %v", opps[0].FinalScore)
	}
}

func TestUpsertOpportunityFlipsConceptEnrichment(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-aaa", "fp-1", "t3_one")

	if err := db.UpsertOpportunity(&Opportunity{
		OpportunityID: "opp-aaa",
		ConceptID:     "c-aaa",
		Title:         "T",
		TrustLevel:    "low",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	c, err := db.GetConcept("c-aaa")
	if err != nil {
		t.Fatalf("get concept: %v", err)
	}
	if !c.HasEnrichment {
		t.Error("expected has_enrichment after upsert")
	}
	if c.LastEnrichedAt == nil {
		t.Error("expected last_enriched_at to be set")
	}
}

func TestCopyRowDoesNotFlipEnrichment(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-aaa", "fp-1", "t3_one")

	primary := "opp-aaa"
	if err := db.UpsertOpportunity(&Opportunity{
		OpportunityID:        "opp-aaa-t3_two",
		ConceptID:            "c-aaa",
		Title:                "T",
		TrustLevel:           "low",
		CopiedFromPrimary:    true,
		PrimaryOpportunityID: &primary,
	}); err != nil {
		t.Fatalf("upsert copy: %v", err)
	}

	c, _ := db.GetConcept("c-aaa")
	if c.HasEnrichment {
		t.Error("copy row must not flip has_enrichment")
	}
}

func TestGetPrimaryOpportunityForConcept(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-aaa", "fp-1", "t3_one")

	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-aaa", ConceptID: "c-aaa", Title: "Primary", TrustLevel: "high", FinalScore: 80})
	primary := "opp-aaa"
	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-aaa-t3_two", ConceptID: "c-aaa", Title: "Copy", TrustLevel: "high", CopiedFromPrimary: true, PrimaryOpportunityID: &primary})

	o, err := db.GetPrimaryOpportunityForConcept("c-aaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o == nil || o.Title != "Primary" {
		t.Fatalf("expected primary row, got %+v", o)
	}
}

func TestGetTopOpportunitiesExcludesCopies(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-a", "fp-a", "p1")
	db.ResolveConcept("c-b", "fp-b", "p2")

	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-a", ConceptID: "c-a", Title: "A", TrustLevel: "high", FinalScore: 90})
	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-b", ConceptID: "c-b", Title: "B", TrustLevel: "low", FinalScore: 40})
	p := "opp-a"
	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-a-p3", ConceptID: "c-a", Title: "A copy", TrustLevel: "high", CopiedFromPrimary: true, PrimaryOpportunityID: &p})

	top, err := db.GetTopOpportunities(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 non-copy rows, got %d", len(top))
	}
	if top[0].Title != "A" {
		t.Errorf("expected highest score first, got %q", top[0].Title)
	}
}

func TestRunReportRoundTrip(t *testing.T) {
	db := openTestDB(t)

	err := db.InsertRunReport(&RunReport{
		RunID:     "run-1",
		StartedAt: ptr("2026-08-30T08:00:00Z"),
		Total:     10, Enriched: 4, Duplicates: 2, Rejected: 3, Failed: 1,
		TotalCost: 0.42, AvgScore: 61.2,
	})
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}

	r, err := db.GetLatestRun()
	if err != nil {
		t.Fatalf("get latest run: %v", err)
	}
	if r == nil || r.RunID != "run-1" {
		t.Fatalf("expected run-1, got %+v", r)
	}
	if r.Enriched != 4 || r.TotalCost != 0.42 {
		t.Errorf("unexpected run values: %+v", r)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(&Post{PostID: "p1", Title: "T"})
	db.ResolveConcept("c-a", "fp-a", "p1")
	db.UpsertOpportunity(&Opportunity{OpportunityID: "opp-a", ConceptID: "c-a", Title: "A", TrustLevel: "low"})

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if s.TotalPosts != 1 || s.TotalConcepts != 1 || s.EnrichedConcepts != 1 || s.TotalOpportunities != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
