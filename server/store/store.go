package store

import (
	"context"
	"embed"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"grapplerank/server/rating"
)

//go:embed schema.sql
var schema embed.FS

var (
	ErrNotFound     = errors.New("store: not found")
	ErrPeriodExists = errors.New("store: period already exists")
)

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

/* -----------------------------
   Athletes
------------------------------*/

// UpsertAthlete registers an athlete (or refreshes the club on
// re-registration) and returns its id.
func (db *DB) UpsertAthlete(ctx context.Context, name, club string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
        INSERT INTO athletes(name, club)
        VALUES ($1,$2)
        ON CONFLICT (name) DO UPDATE
          SET club = EXCLUDED.club
        RETURNING id
    `, strings.TrimSpace(name), strings.TrimSpace(club)).Scan(&id)
	return id, err
}

// GetOrInitRating ensures a rating row exists (defaults on first reference)
// and returns the current state.
func (db *DB) GetOrInitRating(ctx context.Context, athleteID int64) (rating.State, error) {
	if _, err := db.Exec(ctx, `
        INSERT INTO athlete_ratings(athlete_id) VALUES ($1)
        ON CONFLICT (athlete_id) DO NOTHING
    `, athleteID); err != nil {
		return rating.State{}, err
	}
	return getRating(ctx, db.Pool, athleteID)
}

// SeedRating initializes an athlete at a specific starting state. It only
// applies on first reference; an existing row is left alone and returned
// as-is.
func (db *DB) SeedRating(ctx context.Context, athleteID int64, s rating.State) (rating.State, error) {
	if _, err := db.Exec(ctx, `
        INSERT INTO athlete_ratings(athlete_id, rating, rd, volatility, matches, period_id)
        VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
        ON CONFLICT (athlete_id) DO NOTHING
    `, athleteID, s.Rating, s.RD, s.Volatility, s.Matches, s.PeriodID); err != nil {
		return rating.State{}, err
	}
	return getRating(ctx, db.Pool, athleteID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getRating(ctx context.Context, q rowQuerier, athleteID int64) (rating.State, error) {
	var s rating.State
	var periodID *string
	err := q.QueryRow(ctx, `
        SELECT rating, rd, volatility, matches, period_id
          FROM athlete_ratings WHERE athlete_id = $1
    `, athleteID).Scan(&s.Rating, &s.RD, &s.Volatility, &s.Matches, &periodID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.State{}, ErrNotFound
	}
	if err != nil {
		return rating.State{}, err
	}
	if periodID != nil {
		s.PeriodID = *periodID
	}
	return s, nil
}

/* -----------------------------
   Match processing
------------------------------*/

// ApplyMatch runs one outcome through the rating engine and persists both
// sides atomically. The two rating rows are locked in ascending id order,
// which serializes concurrent matches sharing an athlete and provides the
// chronological ordering discipline the engine requires of its caller.
func (db *DB) ApplyMatch(
	ctx context.Context,
	matchID string,
	athleteA, athleteB int64,
	outcomeForA rating.Score,
	tau float64,
) (rating.MatchResult, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return rating.MatchResult{}, err
	}
	defer tx.Rollback(ctx) // safe if already committed

	// Both rows must exist before they can be locked.
	for _, id := range []int64{athleteA, athleteB} {
		if _, err := tx.Exec(ctx, `
            INSERT INTO athlete_ratings(athlete_id) VALUES ($1)
            ON CONFLICT (athlete_id) DO NOTHING
        `, id); err != nil {
			return rating.MatchResult{}, err
		}
	}

	first, second := athleteA, athleteB
	if second < first {
		first, second = second, first
	}
	states := make(map[int64]rating.State, 2)
	for _, id := range []int64{first, second} {
		var s rating.State
		var periodID *string
		if err := tx.QueryRow(ctx, `
            SELECT rating, rd, volatility, matches, period_id
              FROM athlete_ratings WHERE athlete_id = $1
               FOR UPDATE
        `, id).Scan(&s.Rating, &s.RD, &s.Volatility, &s.Matches, &periodID); err != nil {
			return rating.MatchResult{}, err
		}
		if periodID != nil {
			s.PeriodID = *periodID
		}
		states[id] = s
	}

	res, err := rating.ProcessMatch(states[athleteA], states[athleteB], outcomeForA, tau)
	if err != nil {
		return rating.MatchResult{}, err
	}

	periodID := currentPeriodID(ctx, tx)
	res.A.PeriodID = periodID
	res.B.PeriodID = periodID

	if _, err := tx.Exec(ctx, `
        INSERT INTO matches(id, athlete_a, athlete_b, result, period_id)
        VALUES ($1,$2,$3,$4,NULLIF($5,''))
    `, matchID, athleteA, athleteB, float64(outcomeForA), periodID); err != nil {
		return rating.MatchResult{}, err
	}

	sides := []struct {
		id   int64
		s    rating.State
		d    rating.Delta
		diag rating.Diagnostic
	}{
		{athleteA, res.A, res.DeltaA, res.DiagnosticA},
		{athleteB, res.B, res.DeltaB, res.DiagnosticB},
	}
	for _, sd := range sides {
		if _, err := tx.Exec(ctx, `
            UPDATE athlete_ratings
               SET rating = $2,
                   rd = $3,
                   volatility = $4,
                   matches = $5,
                   period_id = NULLIF($6,''),
                   updated_at = now()
             WHERE athlete_id = $1
        `, sd.id, sd.s.Rating, sd.s.RD, sd.s.Volatility, sd.s.Matches, sd.s.PeriodID); err != nil {
			return rating.MatchResult{}, err
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO rating_history(
                athlete_id, match_id, period_id,
                rating, rd, volatility, change, solver_converged
            ) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)
        `, sd.id, matchID, sd.s.PeriodID,
			sd.s.Rating, sd.s.RD, sd.s.Volatility, sd.d.Change(), sd.diag.Converged); err != nil {
			return rating.MatchResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return rating.MatchResult{}, err
	}
	return res, nil
}

func currentPeriodID(ctx context.Context, q rowQuerier) string {
	var id string
	err := q.QueryRow(ctx, `
        SELECT period_id FROM rating_periods
         WHERE ended_at IS NULL
         ORDER BY started_at DESC
         LIMIT 1
    `).Scan(&id)
	if err != nil {
		return ""
	}
	return id
}

/* -----------------------------
   Rating periods
------------------------------*/

func (db *DB) StartPeriod(ctx context.Context, id, description string) error {
	tag, err := db.Exec(ctx, `
        INSERT INTO rating_periods(period_id, description)
        VALUES ($1,$2)
        ON CONFLICT (period_id) DO NOTHING
    `, id, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodExists
	}
	// Retag every athlete so subsequent history groups by the new boundary.
	_, err = db.Exec(ctx, `UPDATE athlete_ratings SET period_id = $1`, id)
	return err
}

func (db *DB) EndPeriod(ctx context.Context, id string) error {
	tag, err := db.Exec(ctx, `
        UPDATE rating_periods SET ended_at = now()
         WHERE period_id = $1 AND ended_at IS NULL
    `, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
