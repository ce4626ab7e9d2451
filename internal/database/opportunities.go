package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertOpportunity writes an opportunity with merge-by-primary-key
// semantics and flips the owning concept's enrichment bookkeeping in
// the same transaction. Running the same batch twice converges to the
// latest values with no duplicate rows.
func (db *DB) UpsertOpportunity(o *Opportunity) error {
	var fns *string
	if o.CoreFunctions != nil {
		data, err := json.Marshal(o.CoreFunctions)
		if err != nil {
			return fmt.Errorf("marshaling core functions: %w", err)
		}
		s := string(data)
		fns = &s
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO opportunities (
			opportunity_id, concept_id, title, app_concept, core_functions,
			final_score, market_demand, pain_intensity, monetization_potential,
			market_gap, technical_feasibility, simplicity, trust_level,
			copied_from_primary, primary_opportunity_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(opportunity_id) DO UPDATE SET
			concept_id = excluded.concept_id,
			title = excluded.title,
			app_concept = excluded.app_concept,
			core_functions = excluded.core_functions,
			final_score = excluded.final_score,
			market_demand = excluded.market_demand,
			pain_intensity = excluded.pain_intensity,
			monetization_potential = excluded.monetization_potential,
			market_gap = excluded.market_gap,
			technical_feasibility = excluded.technical_feasibility,
			simplicity = excluded.simplicity,
			trust_level = excluded.trust_level,
			copied_from_primary = excluded.copied_from_primary,
			primary_opportunity_id = excluded.primary_opportunity_id,
			updated_at = datetime('now')`,
		o.OpportunityID, o.ConceptID, o.Title, o.AppConcept, fns,
		o.FinalScore, o.MarketDemand, o.PainIntensity, o.MonetizationPotential,
		o.MarketGap, o.TechnicalFeasibility, o.Simplicity, o.TrustLevel,
		boolToInt(o.CopiedFromPrimary), o.PrimaryOpportunityID,
	)
	if err != nil {
		return fmt.Errorf("upserting opportunity %s: %w", o.OpportunityID, err)
	}

	// Copy rows do not change the concept's enrichment state; only a
	// fresh enrichment flips has_enrichment.
	if !o.CopiedFromPrimary {
		_, err = tx.Exec(
			`UPDATE concepts SET has_enrichment = 1, last_enriched_at = datetime('now')
			WHERE concept_id = ?`, o.ConceptID,
		)
		if err != nil {
			return fmt.Errorf("updating concept %s: %w", o.ConceptID, err)
		}
	}

	return tx.Commit()
}

// GetOpportunity returns an opportunity by ID, nil if absent.
func (db *DB) GetOpportunity(opportunityID string) (*Opportunity, error) {
	row := db.conn.QueryRow(selectOpportunity+" WHERE opportunity_id = ?", opportunityID)
	o, err := scanOpportunityRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetPrimaryOpportunityForConcept returns the single non-copy
// opportunity for a concept, nil if the concept has not been enriched.
func (db *DB) GetPrimaryOpportunityForConcept(conceptID string) (*Opportunity, error) {
	row := db.conn.QueryRow(
		selectOpportunity+" WHERE concept_id = ? AND copied_from_primary = 0", conceptID,
	)
	o, err := scanOpportunityRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetTopOpportunities returns non-copy opportunities ordered by score.
func (db *DB) GetTopOpportunities(limit int) ([]Opportunity, error) {
	rows, err := db.conn.Query(
		selectOpportunity+` WHERE copied_from_primary = 0
		ORDER BY final_score DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// GetAllOpportunities returns every opportunity row, newest first.
func (db *DB) GetAllOpportunities() ([]Opportunity, error) {
	rows, err := db.conn.Query(selectOpportunity + " ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

const selectOpportunity = `SELECT opportunity_id, concept_id, title, app_concept, core_functions,
	final_score, market_demand, pain_intensity, monetization_potential,
	market_gap, technical_feasibility, simplicity, trust_level,
	copied_from_primary, primary_opportunity_id, created_at, updated_at
	FROM opportunities`

func scanOpportunities(rows *sql.Rows) ([]Opportunity, error) {
	var opps []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		opps = append(opps, *o)
	}
	return opps, rows.Err()
}

func scanOpportunityRow(row *sql.Row) (*Opportunity, error) {
	return scanOpportunity(row.Scan)
}

func scanOpportunity(scan func(...any) error) (*Opportunity, error) {
	var o Opportunity
	var fns *string
	var copied int
	var trust *string
	if err := scan(&o.OpportunityID, &o.ConceptID, &o.Title, &o.AppConcept, &fns,
		&o.FinalScore, &o.MarketDemand, &o.PainIntensity, &o.MonetizationPotential,
		&o.MarketGap, &o.TechnicalFeasibility, &o.Simplicity, &trust,
		&copied, &o.PrimaryOpportunityID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.CopiedFromPrimary = copied != 0
	if trust != nil {
		o.TrustLevel = *trust
	}
	if fns != nil {
		if err := json.Unmarshal([]byte(*fns), &o.CoreFunctions); err != nil {
			return nil, fmt.Errorf("unmarshaling core functions: %w", err)
		}
	}
	return &o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
