package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProgressNotFound is returned when a hero has no recorded progress.
var ErrProgressNotFound = errors.New("hero progress not found")

// HeroProgress is a hero's accumulated rewards across combats.
type HeroProgress struct {
	HeroID     string
	Experience int64
	Gold       int64
	Victories  int
	Defeats    int
	UpdatedAt  time.Time
}

// HeroProgressRepository accumulates hero rewards.
type HeroProgressRepository struct {
	db *pgxpool.Pool
}

// NewHeroProgressRepository creates a HeroProgressRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewHeroProgressRepository(db *pgxpool.Pool) *HeroProgressRepository {
	return &HeroProgressRepository{db: db}
}

// Add credits experience and gold to heroID and counts the outcome,
// creating the row on first use.
//
// Precondition: heroID must be non-empty; experience and gold must be >= 0.
// Postcondition: Returns the hero's updated totals.
func (r *HeroProgressRepository) Add(ctx context.Context, heroID string, experience, gold int, victory bool) (HeroProgress, error) {
	if experience < 0 || gold < 0 {
		return HeroProgress{}, fmt.Errorf("hero progress: negative reward (experience=%d gold=%d)", experience, gold)
	}
	win, loss := 0, 1
	if victory {
		win, loss = 1, 0
	}
	var p HeroProgress
	err := r.db.QueryRow(ctx,
		`INSERT INTO hero_progress (hero_id, experience, gold, victories, defeats)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (hero_id) DO UPDATE SET
		   experience = hero_progress.experience + EXCLUDED.experience,
		   gold       = hero_progress.gold + EXCLUDED.gold,
		   victories  = hero_progress.victories + EXCLUDED.victories,
		   defeats    = hero_progress.defeats + EXCLUDED.defeats,
		   updated_at = NOW()
		 RETURNING hero_id, experience, gold, victories, defeats, updated_at`,
		heroID, experience, gold, win, loss,
	).Scan(&p.HeroID, &p.Experience, &p.Gold, &p.Victories, &p.Defeats, &p.UpdatedAt)
	if err != nil {
		return HeroProgress{}, fmt.Errorf("upserting hero progress: %w", err)
	}
	return p, nil
}

// Get retrieves heroID's progress.
//
// Postcondition: Returns ErrProgressNotFound if the hero has none.
func (r *HeroProgressRepository) Get(ctx context.Context, heroID string) (HeroProgress, error) {
	var p HeroProgress
	err := r.db.QueryRow(ctx,
		`SELECT hero_id, experience, gold, victories, defeats, updated_at
		 FROM hero_progress WHERE hero_id = $1`,
		heroID,
	).Scan(&p.HeroID, &p.Experience, &p.Gold, &p.Victories, &p.Defeats, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HeroProgress{}, ErrProgressNotFound
		}
		return HeroProgress{}, fmt.Errorf("querying hero progress: %w", err)
	}
	return p, nil
}
