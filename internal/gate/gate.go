// Package gate implements the pre-enrichment quality gate. It is a
// pure scoring function over fields already present on a post, so it
// can run on every input before any AI call is made.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/oppscan/oppscan/internal/database"
)

const (
	engagementCap = 40.0
	keywordCap    = 30.0
	recencyCap    = 30.0
)

// problemKeywords are phrases that signal someone describing a real
// pain point rather than showing off or asking for karma.
var problemKeywords = []string{
	"problem",
	"struggle",
	"struggling",
	"frustrated",
	"frustrating",
	"annoying",
	"pain point",
	"wish there was",
	"wish i could",
	"is there a tool",
	"looking for a tool",
	"no good way",
	"tedious",
	"time consuming",
	"time-consuming",
	"manual process",
	"spreadsheet hell",
	"workaround",
	"hate doing",
	"drives me crazy",
}

// Thresholds are the pass conditions for the gate. Every condition
// must hold; the total score alone is not enough.
type Thresholds struct {
	Threshold     float64
	MinEngagement int
	MinComments   int
	MinKeywords   int
}

// Score is the gate's verdict for one post. Computed fresh every
// time, never stored.
type Score struct {
	EngagementComponent float64
	KeywordComponent    float64
	RecencyComponent    float64
	Total               float64
	Passed              bool
	Reason              string
}

// Evaluate scores a post against the thresholds. Malformed input
// (empty title and body) scores zero and fails. The clock is the only
// source of non-determinism, via the recency component.
func Evaluate(post *database.Post, th Thresholds, now time.Time) Score {
	if post == nil || (post.Title == "" && (post.Body == nil || *post.Body == "")) {
		return Score{Passed: false, Reason: "malformed input: no title or body"}
	}

	s := Score{
		EngagementComponent: engagementComponent(post.EngagementScore, post.CommentCount),
		RecencyComponent:    recencyComponent(post, now),
	}

	keywords := countKeywords(post)
	s.KeywordComponent = min(keywordCap, 10*float64(keywords))
	s.Total = s.EngagementComponent + s.KeywordComponent + s.RecencyComponent

	switch {
	case post.EngagementScore < th.MinEngagement:
		s.Reason = fmt.Sprintf("engagement %d below minimum %d", post.EngagementScore, th.MinEngagement)
	case post.CommentCount < th.MinComments:
		s.Reason = fmt.Sprintf("comments %d below minimum %d", post.CommentCount, th.MinComments)
	case keywords < th.MinKeywords:
		s.Reason = fmt.Sprintf("problem keywords %d below minimum %d", keywords, th.MinKeywords)
	case s.Total < th.Threshold:
		s.Reason = fmt.Sprintf("total score %.1f below threshold %.1f", s.Total, th.Threshold)
	default:
		s.Passed = true
		s.Reason = fmt.Sprintf("passed with score %.1f", s.Total)
	}

	return s
}

func engagementComponent(engagement, comments int) float64 {
	return min(engagementCap, float64(engagement+2*comments)/2)
}

func recencyComponent(post *database.Post, now time.Time) float64 {
	if post.CreatedAt == nil {
		return 0
	}
	created, err := time.Parse(time.RFC3339, *post.CreatedAt)
	if err != nil {
		return 0
	}
	ageHours := now.Sub(created).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return max(0, recencyCap-ageHours/24)
}

func countKeywords(post *database.Post) int {
	text := strings.ToLower(post.Title)
	if post.Body != nil {
		text += " " + strings.ToLower(*post.Body)
	}
	count := 0
	for _, kw := range problemKeywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}
