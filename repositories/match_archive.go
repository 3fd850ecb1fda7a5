package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

var ErrArchivedMatchNotFound = errors.New("archived match not found")

// MatchArchiveRepository stores finished matches (including transcripts) as
// durable history. Inserts are idempotent on match id so a re-reported
// match never duplicates rows.
type MatchArchiveRepository interface {
	Insert(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, round int) ([]*models.Match, error)
}

type postgresMatchArchiveRepository struct {
	db *sql.DB
}

func NewPostgresMatchArchiveRepository(db *sql.DB) *postgresMatchArchiveRepository {
	return &postgresMatchArchiveRepository{db: db}
}

func (r *postgresMatchArchiveRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchArchiveRepository) Insert(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	transcript, err := json.Marshal(match.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript for %s: %w", match.ID, err)
	}

	query := `
		INSERT INTO match_archive
			(id, round, game_type, player_a, player_b, referee, state, draw,
			 choice_a, choice_b, outcome, failure_code, needs_reconciliation,
			 transcript, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`

	_, err = executor.ExecContext(ctx, query,
		match.ID, match.Round, match.GameType, match.PlayerA, match.PlayerB,
		match.Referee, match.State, match.Draw,
		match.ChoiceA, match.ChoiceB, match.Outcome,
		nullString(match.FailureCode), match.NeedsReconciliation,
		transcript, match.CreatedAt, match.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("archive match %s: %w", match.ID, err)
	}
	return nil
}

func (r *postgresMatchArchiveRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, round, game_type, player_a, player_b, referee, state, draw,
		       choice_a, choice_b, outcome, failure_code, needs_reconciliation,
		       transcript, created_at, completed_at
		FROM match_archive
		WHERE id = $1`
	return scanArchivedMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchArchiveRepository) ListByRound(ctx context.Context, exec SQLExecutor, round int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, round, game_type, player_a, player_b, referee, state, draw,
		       choice_a, choice_b, outcome, failure_code, needs_reconciliation,
		       transcript, created_at, completed_at
		FROM match_archive
		WHERE round = $1
		ORDER BY id ASC`
	rows, err := executor.QueryContext(ctx, query, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, errScan := scanArchivedMatch(rows)
		if errScan != nil {
			return nil, errScan
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ArchiveMatch satisfies the coordinator's archiver dependency using the
// repository's own connection.
func (r *postgresMatchArchiveRepository) ArchiveMatch(ctx context.Context, match *models.Match) error {
	return r.Insert(ctx, nil, match)
}

func scanArchivedMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var failureCode sql.NullString
	var transcript []byte
	err := scanner.Scan(
		&m.ID, &m.Round, &m.GameType, &m.PlayerA, &m.PlayerB, &m.Referee,
		&m.State, &m.Draw, &m.ChoiceA, &m.ChoiceB, &m.Outcome,
		&failureCode, &m.NeedsReconciliation, &transcript, &m.CreatedAt, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArchivedMatchNotFound
		}
		return nil, err
	}
	m.FailureCode = failureCode.String
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &m.Transcript); err != nil {
			return nil, fmt.Errorf("parse transcript for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
