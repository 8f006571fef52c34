package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// launch_step_index table.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is true while the catalog database is configured.
func (p *PgFTS) Healthy() bool {
	return p != nil && p.db != nil
}

// Search ranks steps with plainto_tsquery and ts_rank and builds snippets
// with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	tsQuery := "plainto_tsquery('english', $1)"
	where := "s.fts @@ " + tsQuery
	args := []any{q.Text}
	if q.FilterDocument != "" {
		args = append(args, q.FilterDocument)
		where += fmt.Sprintf(" AND s.document_name = $%d", len(args))
	}
	if q.FilterPhase != "" {
		args = append(args, string(q.FilterPhase))
		where += fmt.Sprintf(" AND s.phase = $%d", len(args))
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM launch_step_index s WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT s.id, s.document_name, s.step_id, s.title,
			ts_headline('english', s.description || ' ' || s.notes, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			s.phase, s.status
		FROM launch_step_index s
		WHERE %s
		ORDER BY ts_rank(s.fts, %s) DESC, s.document_name, s.step_id
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, q.limit(), q.offset())

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.DocumentName, &r.StepID, &r.Title, &r.Snippet, &r.Phase, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// Replace swaps the indexed steps of one document in a single transaction.
func (p *PgFTS) Replace(ctx context.Context, documentName string, records []StepRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM launch_step_index WHERE document_name=$1`, documentName); err != nil {
		return fmt.Errorf("clear step index: %w", err)
	}
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO launch_step_index (id, document_name, step_id, title, description, notes, owner, phase, path, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				document_name=EXCLUDED.document_name, step_id=EXCLUDED.step_id, title=EXCLUDED.title,
				description=EXCLUDED.description, notes=EXCLUDED.notes, owner=EXCLUDED.owner,
				phase=EXCLUDED.phase, path=EXCLUDED.path, status=EXCLUDED.status
		`, r.ID, r.DocumentName, r.StepID, r.Title, r.Description, r.Notes, r.Owner, r.Phase, r.Path, r.Status); err != nil {
			return fmt.Errorf("index step %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step index: %w", err)
	}
	return nil
}

// LoadAllRecords returns all indexed steps for a full Meilisearch reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]StepRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, document_name, step_id, title, description, notes, owner, phase, path, status
		FROM launch_step_index
	`)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}
	defer rows.Close()

	records := make([]StepRecord, 0)
	for rows.Next() {
		var r StepRecord
		if err := rows.Scan(&r.ID, &r.DocumentName, &r.StepID, &r.Title, &r.Description, &r.Notes, &r.Owner, &r.Phase, &r.Path, &r.Status); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return records, nil
}
