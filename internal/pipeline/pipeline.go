// Package pipeline runs the batch: a bounded worker pool takes posts
// through gate -> dedup -> enrichment -> persistence. Workers share
// only the rate limiter and the cost accumulator; each post's working
// state stays on its own worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oppscan/oppscan/internal/config"
	"github.com/oppscan/oppscan/internal/database"
	"github.com/oppscan/oppscan/internal/dedup"
	"github.com/oppscan/oppscan/internal/enrich"
	"github.com/oppscan/oppscan/internal/gate"
	"github.com/oppscan/oppscan/internal/llm"
)

// Outcome classifies what happened to one input post.
type Outcome string

const (
	OutcomeEnriched    Outcome = "enriched"
	OutcomeDuplicate   Outcome = "duplicate-copied"
	OutcomeRejected    Outcome = "rejected-by-gate"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkippedCost Outcome = "skipped-cost-ceiling"
)

// InputResult is the per-post outcome of a run.
type InputResult struct {
	PostID        string
	Outcome       Outcome
	Reason        string
	OpportunityID string
	Score         float64
}

// Result holds everything one batch run produced.
type Result struct {
	RunID      string
	Results    []InputResult
	Enriched   int
	Duplicates int
	Rejected   int
	Failed     int
	Skipped    int
	TotalCost  float64
	AvgScore   float64
	CeilingHit bool
}

// Pipeline wires the stages together for batch runs.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider

	mu           sync.Mutex
	conceptLocks map[string]*sync.Mutex
}

// New creates a pipeline, building the LLM provider from config.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	e := cfg.Enrichment
	provider := llm.CreateProvider(e.Provider, e.Model, e.OllamaURL, e.OpenAIModel, e.APIKeyEnv)
	return NewWithProvider(cfg, db, provider)
}

// NewWithProvider creates a pipeline with an explicit provider.
// Tests inject scripted providers this way.
func NewWithProvider(cfg *config.Config, db *database.DB, provider llm.Provider) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		db:           db,
		provider:     provider,
		conceptLocks: make(map[string]*sync.Mutex),
	}
}

// Run processes the posts through the full pipeline and records a run
// report. Individual post failures never fail the batch; only a
// persistence-layer breakdown or full cancellation does.
func (p *Pipeline) Run(ctx context.Context, posts []database.Post) (*Result, error) {
	if p.provider == nil {
		return nil, fmt.Errorf("no LLM provider available")
	}

	started := time.Now().UTC()
	r := &Result{RunID: uuid.NewString()}

	costs := enrich.NewCostAccumulator(p.cfg.Enrichment.CostCeilingUSD)
	orchestrator := enrich.NewOrchestrator(p.provider, costs, p.cfg.Enrichment)
	resolver := dedup.NewResolver(p.db)

	thresholds := gate.Thresholds{
		Threshold:     p.cfg.Gate.Threshold,
		MinEngagement: p.cfg.Gate.MinEngagement,
		MinComments:   p.cfg.Gate.MinComments,
		MinKeywords:   p.cfg.Gate.MinKeywords,
	}

	workers := p.cfg.Enrichment.Workers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range posts {
		post := posts[i]
		g.Go(func() error {
			res := p.processPost(gctx, &post, thresholds, resolver, orchestrator)
			mu.Lock()
			r.Results = append(r.Results, res)
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only surfaces a canceled
	// group context.
	g.Wait()

	p.tally(r, costs)

	finished := time.Now().UTC()
	report := &database.RunReport{
		RunID:       r.RunID,
		StartedAt:   strPtr(started.Format(time.RFC3339)),
		FinishedAt:  strPtr(finished.Format(time.RFC3339)),
		Total:       len(r.Results),
		Enriched:    r.Enriched,
		Duplicates:  r.Duplicates,
		Rejected:    r.Rejected,
		Failed:      r.Failed,
		Skipped:     r.Skipped,
		TotalCost:   r.TotalCost,
		AvgScore:    r.AvgScore,
		CostCeiling: r.CeilingHit,
	}
	if err := p.db.InsertRunReport(report); err != nil {
		return r, fmt.Errorf("recording run report: %w", err)
	}

	log.Printf("run %s: %d posts, %d enriched, %d duplicates, %d rejected, %d failed, %d skipped, $%.4f spent",
		r.RunID, len(r.Results), r.Enriched, r.Duplicates, r.Rejected, r.Failed, r.Skipped, r.TotalCost)
	return r, nil
}

func (p *Pipeline) processPost(ctx context.Context, post *database.Post, thresholds gate.Thresholds, resolver *dedup.Resolver, orchestrator *enrich.Orchestrator) InputResult {
	res := InputResult{PostID: post.PostID}

	score := gate.Evaluate(post, thresholds, time.Now().UTC())
	if !score.Passed {
		res.Outcome = OutcomeRejected
		res.Reason = score.Reason
		return res
	}

	body := ""
	if post.Body != nil {
		body = *post.Body
	}
	concept, _, err := resolver.Resolve(post.Title+" "+body, post.PostID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("resolving concept: %v", err)
		return res
	}

	// Serialize work per concept so two posts with the same
	// fingerprint in one batch cannot both pay for enrichment.
	lock := p.conceptLock(concept.ConceptID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another worker may have finished
	// enriching this concept while we waited.
	current, err := p.db.GetConcept(concept.ConceptID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("rereading concept: %v", err)
		return res
	}
	if current != nil {
		concept = current
	}

	if concept.HasEnrichment && concept.RepresentativePostID != post.PostID {
		return p.copyFromPrimary(concept, post)
	}

	enrichment, err := orchestrator.Enrich(ctx, concept, post)
	if err != nil {
		switch {
		case errors.Is(err, enrich.ErrCostCeiling):
			res.Outcome = OutcomeSkippedCost
			res.Reason = err.Error()
		case errors.Is(err, enrich.ErrDisqualified):
			res.Outcome = OutcomeFailed
			res.Reason = err.Error()
		default:
			res.Outcome = OutcomeFailed
			res.Reason = err.Error()
		}
		return res
	}

	opp := buildOpportunity(concept, post, enrichment)
	if err := p.db.UpsertOpportunity(opp); err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("persisting opportunity: %v", err)
		return res
	}

	res.Outcome = OutcomeEnriched
	res.OpportunityID = opp.OpportunityID
	res.Score = opp.FinalScore
	return res
}

// copyFromPrimary writes the cheap duplicate row: scores copied from
// the concept's primary opportunity, no AI calls spent.
func (p *Pipeline) copyFromPrimary(concept *database.Concept, post *database.Post) InputResult {
	res := InputResult{PostID: post.PostID}

	primary, err := p.db.GetPrimaryOpportunityForConcept(concept.ConceptID)
	if err != nil || primary == nil {
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("concept %s marked enriched but primary opportunity missing", concept.ConceptID)
		return res
	}

	copyRow := *primary
	copyRow.OpportunityID = dedup.CopyOpportunityID(concept.ConceptID, post.PostID)
	copyRow.CopiedFromPrimary = true
	copyRow.PrimaryOpportunityID = &primary.OpportunityID
	copyRow.CreatedAt = nil
	copyRow.UpdatedAt = nil

	if err := p.db.UpsertOpportunity(&copyRow); err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("persisting copy row: %v", err)
		return res
	}

	res.Outcome = OutcomeDuplicate
	res.OpportunityID = copyRow.OpportunityID
	res.Score = copyRow.FinalScore
	return res
}

func buildOpportunity(concept *database.Concept, post *database.Post, e *enrich.Result) *database.Opportunity {
	appConcept := e.Profile.ValueProposition
	return &database.Opportunity{
		OpportunityID:         dedup.OpportunityID(concept.ConceptID),
		ConceptID:             concept.ConceptID,
		Title:                 e.Profile.AppName,
		AppConcept:            &appConcept,
		CoreFunctions:         e.Profile.CoreFunctions,
		FinalScore:            e.FinalScore,
		MarketDemand:          e.Scores.MarketDemand,
		PainIntensity:         e.Scores.PainIntensity,
		MonetizationPotential: e.Monetization.MonetizationScore,
		MarketGap:             e.Scores.MarketGap,
		TechnicalFeasibility:  e.Scores.TechnicalFeasibility,
		Simplicity:            e.Scores.Simplicity,
		TrustLevel:            e.TrustLevel.String(),
	}
}

func (p *Pipeline) conceptLock(conceptID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.conceptLocks[conceptID]
	if !ok {
		lock = &sync.Mutex{}
		p.conceptLocks[conceptID] = lock
	}
	return lock
}

func (p *Pipeline) tally(r *Result, costs *enrich.CostAccumulator) {
	scoreSum := 0.0
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeEnriched:
			r.Enriched++
			scoreSum += res.Score
		case OutcomeDuplicate:
			r.Duplicates++
		case OutcomeRejected:
			r.Rejected++
		case OutcomeFailed:
			r.Failed++
		case OutcomeSkippedCost:
			r.Skipped++
		}
	}
	if r.Enriched > 0 {
		r.AvgScore = scoreSum / float64(r.Enriched)
	}
	r.TotalCost = costs.Total()
	r.CeilingHit = costs.CeilingHit()
}

func strPtr(s string) *string { return &s }
