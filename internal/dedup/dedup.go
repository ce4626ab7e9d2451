// Package dedup maps posts onto canonical business concepts by exact
// fingerprint of their normalized text. Exact matching deliberately
// under-merges: two posts only share a concept when their normalized
// text is identical, which keeps dedup reproducible and never merges
// unrelated ideas.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"github.com/oppscan/oppscan/internal/database"
)

// Resolver resolves candidate text to a concept, creating one on
// first sight of a fingerprint. Safe for concurrent use: a
// per-fingerprint lock serializes lookup-or-create, with the sqlite
// unique constraint as the backstop across processes.
type Resolver struct {
	db *database.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a new concept resolver.
func NewResolver(db *database.DB) *Resolver {
	return &Resolver{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// Resolve maps candidate text to its concept. Returns the concept and
// whether this call created it. The post becomes the representative
// only when the concept is new.
func (r *Resolver) Resolve(candidateText, postID string) (*database.Concept, bool, error) {
	fp := Fingerprint(candidateText)

	lock := r.fingerprintLock(fp)
	lock.Lock()
	defer lock.Unlock()

	return r.db.ResolveConcept(ConceptID(fp), fp, postID)
}

func (r *Resolver) fingerprintLock(fp string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[fp]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[fp] = lock
	}
	return lock
}

// Fingerprint computes the stable content hash of normalized text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// ConceptID derives the stable concept identifier from a fingerprint.
func ConceptID(fingerprint string) string {
	return "c-" + fingerprint[:12]
}

// OpportunityID derives the stable primary opportunity identifier for
// a concept.
func OpportunityID(conceptID string) string {
	return "opp-" + strings.TrimPrefix(conceptID, "c-")
}

// CopyOpportunityID derives the identifier for a duplicate post's
// cheap copy row. Deterministic so re-runs merge instead of
// duplicating.
func CopyOpportunityID(conceptID, postID string) string {
	return OpportunityID(conceptID) + "-" + postID
}

// Normalize lowercases text, strips punctuation, and collapses
// whitespace runs to single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
