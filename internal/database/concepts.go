package database

import (
	"database/sql"
)

// ResolveConcept looks up a concept by fingerprint, creating it when
// absent. On a fingerprint match the member count is incremented. The
// unique constraint on fingerprint makes this safe under concurrent
// workers: exactly one row is ever created per fingerprint.
// Returns the concept and whether this call created it.
func (db *DB) ResolveConcept(conceptID, fingerprint, representativePostID string) (*Concept, bool, error) {
	row := db.conn.QueryRow(
		`INSERT INTO concepts (concept_id, fingerprint, representative_post_id)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET member_count = member_count + 1
		RETURNING concept_id, fingerprint, representative_post_id, member_count, has_enrichment, last_enriched_at, created_at`,
		conceptID, fingerprint, representativePostID,
	)
	c, err := scanConcept(row)
	if err != nil {
		return nil, false, err
	}
	return c, c.MemberCount == 1, nil
}

// GetConceptByFingerprint returns a concept by fingerprint, nil if absent.
func (db *DB) GetConceptByFingerprint(fingerprint string) (*Concept, error) {
	row := db.conn.QueryRow(
		`SELECT concept_id, fingerprint, representative_post_id, member_count, has_enrichment, last_enriched_at, created_at
		FROM concepts WHERE fingerprint = ?`, fingerprint,
	)
	c, err := scanConcept(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetConcept returns a concept by ID, nil if absent.
func (db *DB) GetConcept(conceptID string) (*Concept, error) {
	row := db.conn.QueryRow(
		`SELECT concept_id, fingerprint, representative_post_id, member_count, has_enrichment, last_enriched_at, created_at
		FROM concepts WHERE concept_id = ?`, conceptID,
	)
	c, err := scanConcept(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanConcept(row *sql.Row) (*Concept, error) {
	var c Concept
	var enriched int
	if err := row.Scan(&c.ConceptID, &c.Fingerprint, &c.RepresentativePostID,
		&c.MemberCount, &enriched, &c.LastEnrichedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.HasEnrichment = enriched != 0
	return &c, nil
}
