package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReportNotFound is returned when a report lookup yields no results.
var ErrReportNotFound = errors.New("combat report not found")

// ErrReportExists is returned when a session already has a report.
var ErrReportExists = errors.New("combat report already exists")

// CombatReport summarises one finished combat.
type CombatReport struct {
	ID         uuid.UUID
	SessionID  string
	EnemyID    string
	Victory    bool
	Aborted    bool
	Rounds     int
	Experience int
	Gold       int
	LootCount  int
	Duration   time.Duration
	EndedAt    time.Time
}

// CombatReportRepository persists combat reports.
type CombatReportRepository struct {
	db *pgxpool.Pool
}

// NewCombatReportRepository creates a CombatReportRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatReportRepository(db *pgxpool.Pool) *CombatReportRepository {
	return &CombatReportRepository{db: db}
}

// Save inserts r. A zero ID is replaced by a new uuid.
//
// Precondition: r.SessionID and r.EnemyID must be non-empty.
// Postcondition: Returns the stored report with ID and EndedAt set, or
// ErrReportExists if the session was already reported.
func (r *CombatReportRepository) Save(ctx context.Context, rep CombatReport) (CombatReport, error) {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	var durationMS int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO combat_reports
		   (id, session_id, enemy_id, victory, aborted, rounds, experience, gold, loot_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING duration_ms, ended_at`,
		rep.ID, rep.SessionID, rep.EnemyID, rep.Victory, rep.Aborted,
		rep.Rounds, rep.Experience, rep.Gold, rep.LootCount, rep.Duration.Milliseconds(),
	).Scan(&durationMS, &rep.EndedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return CombatReport{}, ErrReportExists
		}
		return CombatReport{}, fmt.Errorf("inserting combat report: %w", err)
	}
	rep.Duration = time.Duration(durationMS) * time.Millisecond
	return rep, nil
}

const reportColumns = `id, session_id, enemy_id, victory, aborted, rounds, experience, gold, loot_count, duration_ms, ended_at`

func scanReport(row pgx.Row) (CombatReport, error) {
	var (
		rep        CombatReport
		durationMS int64
	)
	err := row.Scan(&rep.ID, &rep.SessionID, &rep.EnemyID, &rep.Victory, &rep.Aborted,
		&rep.Rounds, &rep.Experience, &rep.Gold, &rep.LootCount, &durationMS, &rep.EndedAt)
	rep.Duration = time.Duration(durationMS) * time.Millisecond
	return rep, err
}

// GetBySession retrieves the report for sessionID.
//
// Postcondition: Returns ErrReportNotFound if the session has no report.
func (r *CombatReportRepository) GetBySession(ctx context.Context, sessionID string) (CombatReport, error) {
	rep, err := scanReport(r.db.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM combat_reports WHERE session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CombatReport{}, ErrReportNotFound
		}
		return CombatReport{}, fmt.Errorf("querying combat report: %w", err)
	}
	return rep, nil
}

// Recent returns up to limit reports, newest first.
//
// Precondition: limit must be > 0.
func (r *CombatReportRepository) Recent(ctx context.Context, limit int) ([]CombatReport, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reportColumns+` FROM combat_reports ORDER BY ended_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing combat reports: %w", err)
	}
	defer rows.Close()

	var out []CombatReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning combat report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating combat reports: %w", err)
	}
	return out, nil
}

func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
