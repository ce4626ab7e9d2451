package ingest

import (
	"fmt"
	"log"
	"os"

	"github.com/oppscan/oppscan/internal/config"
	"github.com/oppscan/oppscan/internal/database"
)

// Result holds the results of an ingestion run.
type Result struct {
	TotalFound int
	NewPosts   int
	Duplicates int
	Skipped    int
	Sources    map[string]int
}

// Ingester pulls post candidates from RSS feeds and NDJSON exports
// into the posts table, deduplicated on post_id.
type Ingester struct {
	db         *database.DB
	feedParser *FeedParser
	daysBack   int
}

// NewIngester creates a new post ingester.
func NewIngester(cfg *config.Config, db *database.DB, daysBack int) *Ingester {
	ing := &Ingester{
		db:       db,
		daysBack: daysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Community: f.Community}
		}
		ing.feedParser = NewFeedParser(feeds)
	}

	return ing
}

// CollectFeeds ingests posts from all configured RSS feeds.
func (ing *Ingester) CollectFeeds() *Result {
	r := &Result{Sources: make(map[string]int)}

	if ing.feedParser == nil {
		log.Println("No feeds configured")
		return r
	}

	log.Println("Collecting from RSS feeds...")
	entries := ing.feedParser.ParseAll(ing.daysBack)
	r.TotalFound = len(entries)

	for _, entry := range entries {
		post := &database.Post{
			PostID:    entry.PostID,
			Title:     entry.Title,
			Body:      optional(entry.Body),
			Community: optional(entry.Community),
			CreatedAt: optional(entry.CreatedAt),
		}
		// Feed entries with thin bodies fall back to the linked page.
		if len(entry.Body) < 200 {
			post.LinkURL = optional(entry.URL)
		}

		id, _ := ing.db.InsertPost(post)
		if id > 0 {
			r.NewPosts++
			r.Sources[entry.Community]++
		} else {
			r.Duplicates++
		}
	}

	log.Printf("Feed collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewPosts, r.Duplicates)
	return r
}

// ImportFile ingests posts from an NDJSON export file.
func (ing *Ingester) ImportFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	posts, skipped, err := ParseNDJSON(f)
	if err != nil {
		return nil, err
	}

	r := &Result{
		TotalFound: len(posts) + skipped,
		Skipped:    skipped,
		Sources:    make(map[string]int),
	}

	for _, p := range posts {
		id, _ := ing.db.InsertPost(&database.Post{
			PostID:          p.PostID,
			Title:           p.Title,
			Body:            optional(p.Body),
			Community:       optional(p.Community),
			EngagementScore: p.EngagementScore,
			CommentCount:    p.CommentCount,
			LinkURL:         optional(p.LinkURL),
			CreatedAt:       optional(p.CreatedAt),
		})
		if id > 0 {
			r.NewPosts++
			r.Sources[p.Community]++
		} else {
			r.Duplicates++
		}
	}

	log.Printf("Import complete: %d found, %d new, %d duplicates, %d skipped",
		r.TotalFound, r.NewPosts, r.Duplicates, r.Skipped)
	return r, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
