package database

import (
	"database/sql"
)

// InsertRunReport records the outcome of one batch run.
func (db *DB) InsertRunReport(r *RunReport) error {
	_, err := db.conn.Exec(
		`INSERT INTO runs (run_id, started_at, finished_at, total, enriched, duplicates, rejected, failed, skipped, total_cost, avg_score, cost_ceiling)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt, r.FinishedAt, r.Total, r.Enriched, r.Duplicates,
		r.Rejected, r.Failed, r.Skipped, r.TotalCost, r.AvgScore, boolToInt(r.CostCeiling),
	)
	return err
}

// GetLatestRun returns the most recent run report, nil if none exist.
func (db *DB) GetLatestRun() (*RunReport, error) {
	row := db.conn.QueryRow(
		`SELECT run_id, started_at, finished_at, total, enriched, duplicates, rejected, failed, skipped, total_cost, avg_score, cost_ceiling
		FROM runs ORDER BY started_at DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		q    string
		dest *int
	}{
		{"SELECT COUNT(*) FROM posts", &s.TotalPosts},
		{"SELECT COUNT(*) FROM concepts", &s.TotalConcepts},
		{"SELECT COUNT(*) FROM concepts WHERE has_enrichment = 1", &s.EnrichedConcepts},
		{"SELECT COUNT(*) FROM opportunities", &s.TotalOpportunities},
		{"SELECT COUNT(*) FROM opportunities WHERE copied_from_primary = 1", &s.CopiedRows},
		{"SELECT COUNT(*) FROM runs", &s.Runs},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.q).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func scanRun(row *sql.Row) (*RunReport, error) {
	var r RunReport
	var ceiling int
	if err := row.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Enriched,
		&r.Duplicates, &r.Rejected, &r.Failed, &r.Skipped, &r.TotalCost, &r.AvgScore, &ceiling); err != nil {
		return nil, err
	}
	r.CostCeiling = ceiling != 0
	return &r, nil
}
