package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"launchnav/internal/flow"
)

// PostgresStore keeps launch documents as JSONB rows in launch_documents.
type PostgresStore struct {
	db          *sql.DB
	defaultName string
}

func NewPostgresStore(db *sql.DB, defaultName string) *PostgresStore {
	return &PostgresStore{db: db, defaultName: defaultName}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, title, step_count, updated_at
		FROM launch_documents
		WHERE name <> $1
		ORDER BY name
	`, BackupFile)
	if err != nil {
		return nil, fmt.Errorf("list launch documents: %w", err)
	}
	defer rows.Close()

	infos := make([]DocumentInfo, 0)
	for rows.Next() {
		info := DocumentInfo{Valid: true}
		if err := rows.Scan(&info.Name, &info.Title, &info.StepCount, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan launch document: %w", err)
		}
		info.Default = info.Name == s.defaultName
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launch documents: %w", err)
	}
	sortDefaultFirst(infos)
	return infos, nil
}

// Load reads a stored document. A missing row or an undecodable body falls
// back to the default document exactly like a missing file does.
func (s *PostgresStore) Load(ctx context.Context, name string) (flow.LoadResult, error) {
	clean, err := CleanName(name)
	if err != nil {
		return flow.LoadResult{}, err
	}

	var body []byte
	err = s.db.QueryRowContext(ctx, `SELECT body FROM launch_documents WHERE name=$1`, clean).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return flow.Fallback(fmt.Errorf("%w: %s", ErrNotFound, clean)), nil
	case err != nil:
		return flow.LoadResult{}, fmt.Errorf("load launch document: %w", err)
	}
	return flow.LoadBytes(body), nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, doc flow.Document) error {
	clean, err := CleanName(name)
	if err != nil {
		return err
	}
	body, err := flow.Encode(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO launch_documents (name, title, body, step_count, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, NOW())
		ON CONFLICT (name) DO UPDATE SET
			title=EXCLUDED.title,
			body=EXCLUDED.body,
			step_count=EXCLUDED.step_count,
			updated_at=NOW()
	`, clean, doc.Name, string(body), len(doc.Steps))
	if err != nil {
		return fmt.Errorf("%w: save launch document %s: %v", flow.ErrWrite, clean, err)
	}
	return nil
}
