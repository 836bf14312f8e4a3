package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dunamismax/pixelpost/internal/domain"
	_ "github.com/lib/pq"
)

const runSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	status TEXT NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	codec TEXT NOT NULL DEFAULT '',
	request JSONB NOT NULL,
	stages JSONB NOT NULL,
	source_width INTEGER NOT NULL DEFAULT 0,
	source_height INTEGER NOT NULL DEFAULT 0,
	output_width INTEGER NOT NULL DEFAULT 0,
	output_height INTEGER NOT NULL DEFAULT 0,
	source_bytes INTEGER NOT NULL DEFAULT 0,
	output_bytes INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at_idx ON runs (created_at DESC);
`

const runColumns = `id, origin, status, source, destination, codec, request, stages,
	source_width, source_height, output_width, output_height,
	source_bytes, output_bytes, duration_ms, error, created_at`

type PostgresRunStore struct {
	db *sql.DB
}

func NewPostgresRunStore(ctx context.Context, dsn string) (*PostgresRunStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresRunStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresRunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, runSchemaSQL); err != nil {
		return fmt.Errorf("ensure runs schema: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) Close() error {
	return s.db.Close()
}

func (s *PostgresRunStore) Create(ctx context.Context, run domain.Run) error {
	requestJSON, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}
	stages := run.Stages
	if stages == nil {
		stages = []string{}
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal run stages: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		run.ID,
		run.Origin,
		run.Status,
		run.Source,
		run.Destination,
		run.Codec,
		requestJSON,
		stagesJSON,
		run.SourceWidth,
		run.SourceHeight,
		run.OutputWidth,
		run.OutputHeight,
		run.SourceBytes,
		run.OutputBytes,
		run.DurationMS,
		run.Error,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

func (s *PostgresRunStore) Get(ctx context.Context, id string) (domain.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Run{}, false, nil
		}
		return domain.Run{}, false, fmt.Errorf("query run: %w", err)
	}
	return run, true, nil
}

func (s *PostgresRunStore) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var (
		run         domain.Run
		requestJSON []byte
		stagesJSON  []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.Origin,
		&run.Status,
		&run.Source,
		&run.Destination,
		&run.Codec,
		&requestJSON,
		&stagesJSON,
		&run.SourceWidth,
		&run.SourceHeight,
		&run.OutputWidth,
		&run.OutputHeight,
		&run.SourceBytes,
		&run.OutputBytes,
		&run.DurationMS,
		&run.Error,
		&run.CreatedAt,
	); err != nil {
		return domain.Run{}, err
	}

	if err := json.Unmarshal(requestJSON, &run.Request); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal run request: %w", err)
	}
	if err := json.Unmarshal(stagesJSON, &run.Stages); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal run stages: %w", err)
	}
	return run, nil
}
