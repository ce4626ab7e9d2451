package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// maxLineBytes bounds a single NDJSON record. Exported posts with very
// long bodies fit comfortably; anything larger is malformed.
const maxLineBytes = 1 << 20

// ndjsonRecord mirrors the common community-export shape: one JSON
// object per line with submission metadata and engagement counts.
type ndjsonRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	URL         string  `json:"url"`
	IsSelf      bool    `json:"is_self"`
}

// ImportedPost is one post candidate parsed from an NDJSON export.
type ImportedPost struct {
	PostID          string
	Title           string
	Body            string
	Community       string
	EngagementScore int
	CommentCount    int
	LinkURL         string
	CreatedAt       string
}

// ParseNDJSON reads an NDJSON export stream. Malformed lines are
// skipped and counted rather than aborting the import.
func ParseNDJSON(r io.Reader) ([]ImportedPost, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var posts []ImportedPost
	skipped := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec ndjsonRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}

		p, ok := recordToPost(rec)
		if !ok {
			skipped++
			continue
		}
		posts = append(posts, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading ndjson: %w", err)
	}
	return posts, skipped, nil
}

func recordToPost(rec ndjsonRecord) (ImportedPost, bool) {
	if rec.ID == "" || strings.TrimSpace(rec.Title) == "" {
		return ImportedPost{}, false
	}

	postID := rec.ID
	if !strings.HasPrefix(postID, "t3_") {
		postID = "t3_" + postID
	}

	var createdAt string
	if rec.CreatedUTC > 0 {
		createdAt = time.Unix(int64(rec.CreatedUTC), 0).UTC().Format(time.RFC3339)
	}

	// Self posts carry their text inline; link posts point elsewhere
	// and get expanded later.
	var linkURL string
	if !rec.IsSelf && rec.URL != "" {
		linkURL = rec.URL
	}

	return ImportedPost{
		PostID:          postID,
		Title:           strings.TrimSpace(rec.Title),
		Body:            strings.TrimSpace(rec.Selftext),
		Community:       rec.Subreddit,
		EngagementScore: rec.Score,
		CommentCount:    rec.NumComments,
		LinkURL:         linkURL,
		CreatedAt:       createdAt,
	}, true
}
