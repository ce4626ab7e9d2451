package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/oppscan/oppscan/internal/database"
	"github.com/oppscan/oppscan/internal/trust"
)

// Reporter assembles the markdown digest of top opportunities.
type Reporter struct {
	db *database.DB
}

// NewReporter creates a new digest reporter.
func NewReporter(db *database.DB) *Reporter {
	return &Reporter{db: db}
}

// GenerateDigest builds a markdown digest of the top scored
// opportunities. Copies and very_low trust records are excluded.
func (r *Reporter) GenerateDigest(limit int) (string, error) {
	opps, err := r.db.GetTopOpportunities(limit)
	if err != nil {
		return "", fmt.Errorf("loading opportunities: %w", err)
	}

	var publishable []database.Opportunity
	for _, o := range opps {
		if trust.Publishable(trust.ParseLevel(o.TrustLevel)) {
			publishable = append(publishable, o)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Opportunity Digest · %s\n\n", time.Now().Format("2006-01-02"))

	if run, err := r.db.GetLatestRun(); err == nil && run != nil {
		fmt.Fprintf(&b, "Latest run: %d posts scanned, %d enriched, %d duplicates, $%.2f spent",
			run.Total, run.Enriched, run.Duplicates, run.TotalCost)
		if run.CostCeiling {
			b.WriteString(" (cost ceiling reached)")
		}
		b.WriteString("\n\n")
	}

	if len(publishable) == 0 {
		b.WriteString("No publishable opportunities yet. Run `oppscan run` after ingesting posts.\n")
		return b.String(), nil
	}

	for i, o := range publishable {
		b.WriteString(formatOpportunity(i+1, &o))
		if i < len(publishable)-1 {
			b.WriteString("\n---\n\n")
		}
	}

	return b.String(), nil
}

func formatOpportunity(rank int, o *database.Opportunity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %d. %s\n\n", rank, o.Title)
	fmt.Fprintf(&b, "**Score %.1f** · trust %s\n\n", o.FinalScore, o.TrustLevel)

	if o.AppConcept != nil && *o.AppConcept != "" {
		fmt.Fprintf(&b, "%s\n\n", *o.AppConcept)
	}

	if len(o.CoreFunctions) > 0 {
		b.WriteString("**Core functions:**\n")
		for _, fn := range o.CoreFunctions {
			fmt.Fprintf(&b, "- %s\n", fn)
		}
		b.WriteString("\n")
	}

	b.WriteString("**Dimensions:**\n")
	dims := []struct {
		name  string
		value float64
	}{
		{"Market demand", o.MarketDemand},
		{"Pain intensity", o.PainIntensity},
		{"Monetization potential", o.MonetizationPotential},
		{"Market gap", o.MarketGap},
		{"Technical feasibility", o.TechnicalFeasibility},
		{"Simplicity", o.Simplicity},
	}
	for _, d := range dims {
		fmt.Fprintf(&b, "- %s: %.0f\n", d.name, d.value)
	}
	b.WriteString("\n")

	return b.String()
}
