package database

// Post represents one ingested community post.
type Post struct {
	ID              int64
	PostID          string
	Title           string
	Body            *string
	Community       *string
	EngagementScore int
	CommentCount    int
	LinkURL         *string
	LinkExpanded    bool
	CreatedAt       *string
	CollectedAt     *string
}

// Concept is a deduplicated business concept that one or more posts
// describe. Concepts are append-only and monotonically enriched.
type Concept struct {
	ConceptID            string
	Fingerprint          string
	RepresentativePostID string
	MemberCount          int
	HasEnrichment        bool
	LastEnrichedAt       *string
	CreatedAt            *string
}

// Opportunity is the persisted aggregate enrichment record.
type Opportunity struct {
	OpportunityID         string
	ConceptID             string
	Title                 string
	AppConcept            *string
	CoreFunctions         []string
	FinalScore            float64
	MarketDemand          float64
	PainIntensity         float64
	MonetizationPotential float64
	MarketGap             float64
	TechnicalFeasibility  float64
	Simplicity            float64
	TrustLevel            string
	CopiedFromPrimary     bool
	PrimaryOpportunityID  *string
	CreatedAt             *string
	UpdatedAt             *string
}

// RunReport holds per-batch outcome counts and cost totals.
type RunReport struct {
	RunID       string
	StartedAt   *string
	FinishedAt  *string
	Total       int
	Enriched    int
	Duplicates  int
	Rejected    int
	Failed      int
	Skipped     int
	TotalCost   float64
	AvgScore    float64
	CostCeiling bool
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalPosts         int
	TotalConcepts      int
	EnrichedConcepts   int
	TotalOpportunities int
	CopiedRows         int
	Runs               int
}
