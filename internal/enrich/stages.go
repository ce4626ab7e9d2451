package enrich

import (
	"fmt"
	"strings"

	"github.com/oppscan/oppscan/internal/llm"
)

// Stage names, in execution order. Profiler, opportunity, and
// monetization are required; market is optional.
const (
	StageProfiler     = "profiler"
	StageOpportunity  = "opportunity"
	StageMonetization = "monetization"
	StageMarket       = "market"
)

// maxCoreFunctions is the structural limit on a profiled app. More
// functions than this means the model described a platform, not a
// focused product, and the concept is disqualified.
const maxCoreFunctions = 3

const profilerPrompt = `You are profiling a community post that describes a problem people have, to see if it implies a small focused software product.

Post from %s:
Title: %s
Body:
%s

Respond with ONLY this JSON:
{
    "app_name": "A short working name for the product",
    "value_proposition": "One sentence: who it is for and what it does",
    "core_functions": ["function 1", "function 2"],
    "confidence": 0-100
}

core_functions: the 1-3 essential capabilities. If the idea genuinely needs more than 3, list them all - do not trim to fit.`

const opportunityPrompt = `You are scoring a software product idea on five dimensions, each 0-100.

Product: %s
Value proposition: %s
Source post:
%s

Respond with ONLY this JSON:
{
    "market_demand": 0-100,
    "pain_intensity": 0-100,
    "market_gap": 0-100,
    "technical_feasibility": 0-100,
    "simplicity": 0-100,
    "confidence": 0-100
}

market_demand: how many people plausibly have this problem. pain_intensity: how badly it hurts. market_gap: how poorly existing tools serve it. technical_feasibility: how buildable by a small team. simplicity: how small the product surface can stay.`

const monetizationPrompt = `You are assessing how a software product idea could make money.

Product: %s
Value proposition: %s
Core functions: %s

Respond with ONLY this JSON:
{
    "business_model": "subscription" | "one_time" | "usage_based" | "marketplace" | "freemium" | "other",
    "pricing_signal": "One sentence on what buyers would pay and why",
    "monetization_score": 0-100
}`

const marketPrompt = `You are sketching the competitive landscape for a software product idea.

Product: %s
Value proposition: %s

Respond with ONLY this JSON:
{
    "competitors": ["name 1", "name 2"],
    "market_size_signal": "small" | "medium" | "large",
    "saturation": 0-100,
    "confidence": 0-100
}

saturation: 100 means the space is crowded with good options, 0 means wide open.`

// ProfileResult is the profiler stage's validated payload.
type ProfileResult struct {
	AppName          string   `json:"app_name"`
	ValueProposition string   `json:"value_proposition"`
	CoreFunctions    []string `json:"core_functions"`
	Confidence       float64  `json:"confidence"`
}

// OpportunityScores is the opportunity scorer stage's validated payload.
type OpportunityScores struct {
	MarketDemand         float64 `json:"market_demand"`
	PainIntensity        float64 `json:"pain_intensity"`
	MarketGap            float64 `json:"market_gap"`
	TechnicalFeasibility float64 `json:"technical_feasibility"`
	Simplicity           float64 `json:"simplicity"`
	Confidence           float64 `json:"confidence"`
}

// MonetizationResult is the monetization stage's validated payload.
type MonetizationResult struct {
	BusinessModel     string  `json:"business_model"`
	PricingSignal     string  `json:"pricing_signal"`
	MonetizationScore float64 `json:"monetization_score"`
}

// MarketResult is the optional market validator stage's payload.
type MarketResult struct {
	Competitors      []string `json:"competitors"`
	MarketSizeSignal string   `json:"market_size_signal"`
	Saturation       float64  `json:"saturation"`
	Confidence       float64  `json:"confidence"`
}

func parseProfile(text string) (*ProfileResult, error) {
	var p ProfileResult
	if err := llm.Unmarshal(text, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.AppName) == "" {
		return nil, fmt.Errorf("profile missing app_name")
	}
	if len(p.CoreFunctions) == 0 {
		return nil, fmt.Errorf("profile has no core functions")
	}
	p.Confidence = clampScore(p.Confidence)
	return &p, nil
}

func parseOpportunityScores(text string) (*OpportunityScores, error) {
	var s OpportunityScores
	if err := llm.Unmarshal(text, &s); err != nil {
		return nil, err
	}
	s.MarketDemand = clampScore(s.MarketDemand)
	s.PainIntensity = clampScore(s.PainIntensity)
	s.MarketGap = clampScore(s.MarketGap)
	s.TechnicalFeasibility = clampScore(s.TechnicalFeasibility)
	s.Simplicity = clampScore(s.Simplicity)
	s.Confidence = clampScore(s.Confidence)
	return &s, nil
}

func parseMonetization(text string) (*MonetizationResult, error) {
	var m MonetizationResult
	if err := llm.Unmarshal(text, &m); err != nil {
		return nil, err
	}
	if m.BusinessModel == "" {
		m.BusinessModel = "other"
	}
	m.MonetizationScore = clampScore(m.MonetizationScore)
	return &m, nil
}

func parseMarket(text string) (*MarketResult, error) {
	var m MarketResult
	if err := llm.Unmarshal(text, &m); err != nil {
		return nil, err
	}
	m.Saturation = clampScore(m.Saturation)
	m.Confidence = clampScore(m.Confidence)
	return &m, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
