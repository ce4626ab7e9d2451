package ingest

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/oppscan/oppscan/internal/database"
)

// minExtractedLen filters out boilerplate-only pages.
const minExtractedLen = 100

// ExpandResult holds the results of a link expansion run.
type ExpandResult struct {
	Expanded int
	Failed   int
}

// LinkExpander fetches the target page of link posts and replaces the
// empty body with readable extracted text.
type LinkExpander struct {
	db     *database.DB
	client *http.Client
}

// NewLinkExpander creates a new link expander.
func NewLinkExpander(db *database.DB, timeout time.Duration) *LinkExpander {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &LinkExpander{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// ExpandPending expands all link posts that still lack body text.
func (e *LinkExpander) ExpandPending() *ExpandResult {
	posts, err := e.db.GetPostsNeedingExpansion()
	if err != nil {
		log.Printf("Error getting posts needing expansion: %v", err)
		return &ExpandResult{}
	}

	if len(posts) == 0 {
		log.Println("No link posts need expansion")
		return &ExpandResult{}
	}

	result := &ExpandResult{}
	failedDomains := make(map[string]struct{})

	for _, post := range posts {
		linkURL := ""
		if post.LinkURL != nil {
			linkURL = *post.LinkURL
		}

		u, _ := url.Parse(linkURL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			e.db.MarkPostExpandAttempted(post.ID)
			result.Failed++
			continue
		}

		text, httpErr := e.fetchPageText(linkURL)
		if httpErr != nil {
			e.db.MarkPostExpandAttempted(post.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s — skipping remaining from %s", linkURL, domain)
			continue
		}

		if text != "" {
			e.db.UpdatePostBody(post.ID, &text)
			result.Expanded++
			log.Printf("Expanded link post: %s", post.Title)
		} else {
			e.db.MarkPostExpandAttempted(post.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", linkURL)
		}
	}

	log.Printf("Link expansion complete: %d expanded, %d failed", result.Expanded, result.Failed)
	return result
}

func (e *LinkExpander) fetchPageText(pageURL string) (string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "oppscan/1.0 (opportunity scanner)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minExtractedLen {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
