// Package enrich runs the fixed analysis stage sequence for one
// concept: profiler, opportunity scorer, monetization analyzer, the
// optional market validator, and the local trust classification. All
// external calls go through a shared rate limiter, a uniform retry
// policy, and the batch cost accumulator.
package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oppscan/oppscan/internal/config"
	"github.com/oppscan/oppscan/internal/database"
	"github.com/oppscan/oppscan/internal/llm"
	"github.com/oppscan/oppscan/internal/trust"
)

// marketFailurePenalty scales model confidence down when the optional
// market stage fails; the enrichment continues with less certainty.
const marketFailurePenalty = 0.75

// Result is the aggregate of one concept's enrichment. Stage payloads
// are transient working state; the pipeline maps the aggregate onto
// the persisted opportunity record.
type Result struct {
	Profile      *ProfileResult
	Scores       *OpportunityScores
	Monetization *MonetizationResult
	Market       *MarketResult // nil when the optional stage failed

	FinalScore float64
	TrustLevel trust.Level
	Signals    map[string]any
	Cost       float64
}

// Orchestrator runs the enrichment stage sequence. The limiter and
// cost accumulator are shared across workers; everything else is
// worker-local.
type Orchestrator struct {
	provider     llm.Provider
	limiter      *rate.Limiter
	costs        *CostAccumulator
	retry        RetryPolicy
	weights      config.Weights
	maxTokens    int
	stageTimeout time.Duration
}

// NewOrchestrator creates an orchestrator. requestsPerMinute <= 0
// disables rate limiting.
func NewOrchestrator(provider llm.Provider, costs *CostAccumulator, cfg config.Enrichment) *Orchestrator {
	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	}

	timeout := time.Duration(cfg.StageTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Orchestrator{
		provider:     provider,
		limiter:      rate.NewLimiter(limit, 1),
		costs:        costs,
		retry:        DefaultRetryPolicy(),
		weights:      cfg.Weights,
		maxTokens:    maxTokens,
		stageTimeout: timeout,
	}
}

// Enrich runs every stage for one concept. A required stage failing
// after its retry budget fails the whole enrichment; the optional
// market stage degrades confidence instead. ErrCostCeiling and
// ErrDisqualified are surfaced unwrapped-able for the pipeline to
// classify the outcome.
func (o *Orchestrator) Enrich(ctx context.Context, concept *database.Concept, post *database.Post) (*Result, error) {
	body := ""
	if post.Body != nil {
		body = *post.Body
	}
	community := "unknown"
	if post.Community != nil {
		community = *post.Community
	}

	r := &Result{}

	// Stage 1: profiler (required)
	text, cost, err := o.callStage(ctx, StageProfiler,
		fmt.Sprintf(profilerPrompt, community, post.Title, truncate(body, 4000)))
	if err != nil {
		return nil, err
	}
	r.Cost += cost
	profile, err := parseProfile(text)
	if err != nil {
		return nil, invalidResponse(StageProfiler, err)
	}
	if len(profile.CoreFunctions) > maxCoreFunctions {
		return nil, fmt.Errorf("%w: profiler returned %d core functions", ErrDisqualified, len(profile.CoreFunctions))
	}
	r.Profile = profile

	// Stage 2: opportunity scorer (required)
	text, cost, err = o.callStage(ctx, StageOpportunity,
		fmt.Sprintf(opportunityPrompt, profile.AppName, profile.ValueProposition, truncate(body, 2000)))
	if err != nil {
		return nil, err
	}
	r.Cost += cost
	scores, err := parseOpportunityScores(text)
	if err != nil {
		return nil, invalidResponse(StageOpportunity, err)
	}
	r.Scores = scores

	// Stage 3: monetization analyzer (required)
	text, cost, err = o.callStage(ctx, StageMonetization,
		fmt.Sprintf(monetizationPrompt, profile.AppName, profile.ValueProposition, strings.Join(profile.CoreFunctions, ", ")))
	if err != nil {
		return nil, err
	}
	r.Cost += cost
	monetization, err := parseMonetization(text)
	if err != nil {
		return nil, invalidResponse(StageMonetization, err)
	}
	r.Monetization = monetization

	// Stage 4: market validator (optional)
	marketFailed := false
	text, cost, err = o.callStage(ctx, StageMarket,
		fmt.Sprintf(marketPrompt, profile.AppName, profile.ValueProposition))
	r.Cost += cost
	if err != nil {
		log.Printf("market stage failed for %s, continuing degraded: %v", concept.ConceptID, err)
		marketFailed = true
	} else {
		market, perr := parseMarket(text)
		if perr != nil {
			log.Printf("market payload invalid for %s, continuing degraded: %v", concept.ConceptID, perr)
			marketFailed = true
		} else {
			r.Market = market
		}
	}

	// Stage 5: trust classification (local, consumes stages 1-4 plus
	// raw engagement metrics)
	o.classifyTrust(r, post, marketFailed)
	r.FinalScore = o.finalScore(scores, monetization)

	return r, nil
}

// callStage wraps one external call: cost gate, shared rate limiter,
// retry with per-attempt timeout. Returns the raw response text and
// the cost charged for it.
func (o *Orchestrator) callStage(ctx context.Context, stage, prompt string) (string, float64, error) {
	if err := o.costs.Allow(); err != nil {
		return "", 0, fmt.Errorf("stage %s declined: %w", stage, err)
	}

	var respText string
	var cost float64

	err := o.retry.Do(ctx, stage, func(ctx context.Context) error {
		// Acquiring a token blocks only this worker.
		if err := o.limiter.Wait(ctx); err != nil {
			return classifyError(stage, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()

		resp, err := o.provider.Generate(attemptCtx, prompt, o.maxTokens)
		if err != nil {
			return classifyError(stage, err)
		}

		cost = o.costs.Record(resp.PromptTokens, resp.CompletionTokens)
		respText = resp.Text
		return nil
	})
	if err != nil {
		return "", cost, err
	}
	return respText, cost, nil
}

func (o *Orchestrator) classifyTrust(r *Result, post *database.Post, marketFailed bool) {
	engagement := min(100.0, float64(post.EngagementScore+2*post.CommentCount))
	discussion := min(100.0, float64(post.CommentCount)*5)
	problemValidity := r.Scores.PainIntensity

	confidences := []float64{r.Profile.Confidence, r.Scores.Confidence}
	if r.Market != nil {
		confidences = append(confidences, r.Market.Confidence)
	}
	modelConfidence := avg(confidences)
	if marketFailed {
		modelConfidence *= marketFailurePenalty
	}

	r.Signals = trust.ConvertAll(map[string]float64{
		string(trust.SignalEngagement):      engagement,
		string(trust.SignalProblemValidity): problemValidity,
		string(trust.SignalDiscussion):      discussion,
		string(trust.SignalModelConfidence): modelConfidence,
	})
	r.TrustLevel = trust.Overall(engagement, problemValidity, discussion, modelConfidence)
}

func (o *Orchestrator) finalScore(s *OpportunityScores, m *MonetizationResult) float64 {
	w := o.weights
	return s.MarketDemand*w.MarketDemand +
		s.PainIntensity*w.PainIntensity +
		m.MonetizationScore*w.MonetizationPotential +
		s.MarketGap*w.MarketGap +
		s.TechnicalFeasibility*w.TechnicalFeasibility
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
