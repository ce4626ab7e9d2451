package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

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

func TestParseNDJSON(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"abc123","title":"Chasing invoices is brutal","selftext":"I spend hours on this","subreddit":"freelance","score":87,"num_comments":34,"created_utc":1756540800,"is_self":true}`,
		``,
		`not json at all`,
		`{"id":"def456","title":"Found a useful article","subreddit":"smallbusiness","score":12,"num_comments":3,"url":"https://example.com/post","is_self":false}`,
		`{"id":"","title":"missing id"}`,
	}, "\n")

	posts, skipped, err := ParseNDJSON(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if skipped != 2 {
		t.Errorf("expected 2 skipped lines, got %d", skipped)
	}

	first := posts[0]
	if first.PostID != "t3_abc123" {
		t.Errorf("expected t3_ prefix added, got %q", first.PostID)
	}
	if first.EngagementScore != 87 || first.CommentCount != 34 {
		t.Errorf("unexpected metrics: %+v", first)
	}
	if first.LinkURL != "" {
		t.Error("self post must not carry a link URL")
	}
	if !strings.HasPrefix(first.CreatedAt, "2025-08-30") {
		t.Errorf("unexpected created_at: %q", first.CreatedAt)
	}

	second := posts[1]
	if second.LinkURL != "https://example.com/post" {
		t.Errorf("link post must carry its URL, got %q", second.LinkURL)
	}
}

func TestImportFileDeduplicates(t *testing.T) {
	db := openTestDB(t)
	ing := &Ingester{db: db}

	line := `{"id":"abc123","title":"Chasing invoices is brutal","selftext":"text","subreddit":"freelance","score":10,"num_comments":5,"is_self":true}`
	path := filepath.Join(t.TempDir(), "export.ndjson")
	if err := os.WriteFile(path, []byte(line+"\n"+line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := ing.ImportFile(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if r.NewPosts != 1 || r.Duplicates != 1 {
		t.Errorf("expected 1 new + 1 duplicate, got %+v", r)
	}

	// Second import of the same file is a no-op.
	r, err = ing.ImportFile(path)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if r.NewPosts != 0 || r.Duplicates != 2 {
		t.Errorf("expected all duplicates on re-import, got %+v", r)
	}
}

func TestParseItem(t *testing.T) {
	pub := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title:           "  Why nobody automates invoice chasing  ",
		Link:            "https://example.com/a",
		Description:     "<p>Some &amp; escaped <b>text</b></p>",
		PublishedParsed: &pub,
	}

	entry := parseItem(item, "indiehackers")
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Title != "Why nobody automates invoice chasing" {
		t.Errorf("title not trimmed: %q", entry.Title)
	}
	if entry.Body != "Some & escaped text" {
		t.Errorf("html not stripped: %q", entry.Body)
	}
	if entry.Community != "indiehackers" {
		t.Errorf("unexpected community: %q", entry.Community)
	}
	if entry.CreatedAt != "2026-08-29T12:00:00Z" {
		t.Errorf("unexpected created_at: %q", entry.CreatedAt)
	}
	if entry.PostID == "" || !strings.HasPrefix(entry.PostID, "rss-") {
		t.Errorf("expected stable rss- post id, got %q", entry.PostID)
	}

	// Same URL yields the same post id.
	again := parseItem(item, "indiehackers")
	if again.PostID != entry.PostID {
		t.Error("post id must be stable across parses")
	}

	if parseItem(&gofeed.Item{Title: "no link"}, "x") != nil {
		t.Error("expected nil for item without link")
	}
	if parseItem(&gofeed.Item{Link: "https://example.com"}, "x") != nil {
		t.Error("expected nil for item without title")
	}
}

func TestExtractSourceName(t *testing.T) {
	cases := map[string]string{
		"https://www.indiehackers.com/forum.rss": "Indiehackers",
		"https://feeds.example.co.uk/rss":        "Co",
		"https://blog.acme.io/feed.xml":          "Acme",
	}
	for in, want := range cases {
		if got := extractSourceName(in); got != want {
			t.Errorf("extractSourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandPending(t *testing.T) {
	page := `<html><head><title>Post</title></head><body><article><h1>Invoice pain</h1>` +
		strings.Repeat("<p>Freelancers lose hours every week chasing unpaid invoices by hand.</p>", 10) +
		`</article></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	db := openTestDB(t)
	link := srv.URL + "/post"
	db.InsertPost(&database.Post{PostID: "t3_link", Title: "Link post", LinkURL: &link})
	missing := srv.URL + "/missing"
	db.InsertPost(&database.Post{PostID: "t3_404", Title: "Dead link", LinkURL: &missing})

	e := NewLinkExpander(db, 5*time.Second)
	r := e.ExpandPending()

	if r.Expanded != 1 {
		t.Errorf("expected 1 expanded, got %d", r.Expanded)
	}
	if r.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", r.Failed)
	}

	p, _ := db.GetPostByPostID("t3_link")
	if p.Body == nil || !strings.Contains(*p.Body, "chasing unpaid invoices") {
		t.Errorf("expected extracted body, got %+v", p.Body)
	}

	// Nothing left pending, including the failed post.
	pending, _ := db.GetPostsNeedingExpansion()
	if len(pending) != 0 {
		t.Errorf("expected no pending posts, got %d", len(pending))
	}
}
