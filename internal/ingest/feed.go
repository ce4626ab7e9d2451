package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 50

// FeedEntry represents a parsed feed entry.
type FeedEntry struct {
	PostID    string
	URL       string
	Title     string
	Body      string
	Community string
	CreatedAt string // RFC 3339 or empty
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL       string
	Community string
}

// FeedParser parses RSS/Atom feeds into post candidates.
type FeedParser struct {
	feeds []FeedConfig
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds}
}

// ParseAll parses all configured feeds and returns entries published
// within daysBack.
func (fp *FeedParser) ParseAll(daysBack int) []FeedEntry {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []FeedEntry

	parser := gofeed.NewParser()
	for _, fc := range fp.feeds {
		community := fc.Community
		if community == "" {
			community = extractSourceName(fc.URL)
		}

		entries, err := parseFeed(parser, fc.URL, community, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
		log.Printf("Parsed %d entries from %s (within %d days)", len(entries), community, daysBack)
	}

	return all
}

func parseFeed(parser *gofeed.Parser, feedURL, community string, cutoff time.Time) ([]FeedEntry, error) {
	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}

		entry := parseItem(item, community)
		if entry == nil {
			continue
		}
		if isWithinWindow(entry.CreatedAt, cutoff) {
			entries = append(entries, *entry)
		}
	}

	return entries, nil
}

func parseItem(item *gofeed.Item, community string) *FeedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var createdAt string
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		createdAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	var body string
	if item.Content != "" {
		body = stripHTML(item.Content)
	} else if item.Description != "" {
		body = stripHTML(item.Description)
	}

	return &FeedEntry{
		PostID:    feedPostID(itemURL),
		URL:       itemURL,
		Title:     title,
		Body:      body,
		Community: community,
		CreatedAt: createdAt,
	}
}

// feedPostID derives a stable identifier from the entry URL so re-runs
// of the same feed never duplicate posts.
func feedPostID(itemURL string) string {
	sum := sha256.Sum256([]byte(itemURL))
	return "rss-" + hex.EncodeToString(sum[:])[:12]
}

func isWithinWindow(createdAt string, cutoff time.Time) bool {
	if createdAt == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func stripHTML(text string) string {
	// Simple HTML tag removal
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	// Decode common entities
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	// Normalize whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
