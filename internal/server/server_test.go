package server

import (
	"net/http"
	"net/http/httptest"
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

func seedOpportunity(t *testing.T, db *database.DB) {
	t.Helper()
	db.ResolveConcept("c-a", "fp-a", "t3_one")
	if err := db.UpsertOpportunity(&database.Opportunity{
		OpportunityID: "opp-a", ConceptID: "c-a", Title: "Invoice Chaser",
		AppConcept:    ptr("Automated invoice chasing"),
		CoreFunctions: []string{"generate invoices", "send reminders"},
		FinalScore:    82.5, TrustLevel: "high",
	}); err != nil {
		t.Fatalf("seed opportunity: %v", err)
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedOpportunity(t, db)

	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invoice Chaser") {
		t.Error("expected opportunity title on index")
	}
	if !strings.Contains(body, "/opportunity/opp-a") {
		t.Error("expected detail link on index")
	}
}

func TestIndexHidesUnpublishable(t *testing.T) {
	db := openTestDB(t)
	db.ResolveConcept("c-x", "fp-x", "t3_x")
	db.UpsertOpportunity(&database.Opportunity{
		OpportunityID: "opp-x", ConceptID: "c-x", Title: "Untrusted Idea",
		FinalScore: 99, TrustLevel: "very_low",
	})

	srv, _ := New(db)
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "Untrusted Idea") {
		t.Error("very_low trust must not appear on the dashboard")
	}
}

func TestOpportunityRoute(t *testing.T) {
	db := openTestDB(t)
	seedOpportunity(t, db)

	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/opportunity/opp-a", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "send reminders") {
		t.Error("expected core functions on detail page")
	}
	if !strings.Contains(body, "Market demand") {
		t.Error("expected dimension table on detail page")
	}
	if !strings.Contains(body, "c-a") {
		t.Error("expected concept id on detail page")
	}
}

func TestOpportunityNotFound(t *testing.T) {
	db := openTestDB(t)
	srv, _ := New(db)

	req := httptest.NewRequest("GET", "/opportunity/opp-missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDigestRoute(t *testing.T) {
	db := openTestDB(t)
	seedOpportunity(t, db)

	srv, _ := New(db)
	req := httptest.NewRequest("GET", "/digest", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	// The markdown digest renders to HTML headings.
	if !strings.Contains(rec.Body.String(), "Invoice Chaser") {
		t.Error("expected digest content")
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-family") {
		t.Error("expected CSS content")
	}
}
