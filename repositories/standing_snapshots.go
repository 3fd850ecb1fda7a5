package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

var ErrNoStandingSnapshot = errors.New("no standing snapshot stored")

// StandingSnapshotRepository keeps an append-only history of the standings
// table, one row per aggregator step.
type StandingSnapshotRepository interface {
	Insert(ctx context.Context, exec SQLExecutor, entries []models.StandingsEntry) error
	Latest(ctx context.Context, exec SQLExecutor) ([]models.StandingsEntry, time.Time, error)
}

type postgresStandingSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresStandingSnapshotRepository(db *sql.DB) *postgresStandingSnapshotRepository {
	return &postgresStandingSnapshotRepository{db: db}
}

func (r *postgresStandingSnapshotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingSnapshotRepository) Insert(ctx context.Context, exec SQLExecutor, entries []models.StandingsEntry) error {
	executor := r.getExecutor(exec)
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = executor.ExecContext(ctx,
		`INSERT INTO standing_snapshots (taken_at, data) VALUES ($1, $2)`,
		time.Now().UTC(), data,
	)
	if err != nil {
		return fmt.Errorf("insert standing snapshot: %w", err)
	}
	return nil
}

func (r *postgresStandingSnapshotRepository) Latest(ctx context.Context, exec SQLExecutor) ([]models.StandingsEntry, time.Time, error) {
	executor := r.getExecutor(exec)
	var takenAt time.Time
	var data []byte
	err := executor.QueryRowContext(ctx,
		`SELECT taken_at, data FROM standing_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`,
	).Scan(&takenAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrNoStandingSnapshot
		}
		return nil, time.Time{}, err
	}
	var entries []models.StandingsEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse standing snapshot: %w", err)
	}
	return entries, takenAt, nil
}

// ArchiveStandings satisfies the aggregator's archiver dependency.
func (r *postgresStandingSnapshotRepository) ArchiveStandings(ctx context.Context, entries []models.StandingsEntry) error {
	return r.Insert(ctx, nil, entries)
}
