package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"grapplerank/server/rating"
	"grapplerank/server/store"
)

// Router wires the HTTP API. All reads go straight to the DB; all writes
// that touch ratings go through store.ApplyMatch so the pure engine stays
// the only place rating math happens.
func Router(db *store.DB, cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.Ping(req.Context()); err != nil {
				httpError(w, "db unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	r.Post("/api/athletes", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		var in struct {
			Name           string   `json:"name"`
			Club           string   `json:"club"`
			StartingRating *float64 `json:"starting_rating"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.Name) == "" {
			httpError(w, "missing name", http.StatusBadRequest)
			return
		}
		id, err := db.UpsertAthlete(ctx, in.Name, in.Club)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		seed := cfg.StartingState()
		if in.StartingRating != nil {
			seed.Rating = *in.StartingRating
		}
		state, err := db.SeedRating(ctx, id, seed)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"athlete_id": id, "state": state})
	})

	r.Get("/api/athletes/{id}", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			httpError(w, "bad id", http.StatusBadRequest)
			return
		}

		var name, club string
		if err := db.QueryRow(ctx, `
            SELECT name, club FROM athletes WHERE id = $1
        `, id).Scan(&name, &club); err != nil {
			httpError(w, "athlete not found", http.StatusNotFound)
			return
		}

		state, err := db.GetOrInitRating(ctx, id)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Win/draw/loss record from the match log.
		var wins, draws, losses int
		if err := db.QueryRow(ctx, `
            SELECT
              COUNT(*) FILTER (WHERE (athlete_a = $1 AND result = 1) OR (athlete_b = $1 AND result = 0)),
              COUNT(*) FILTER (WHERE (athlete_a = $1 OR athlete_b = $1) AND result = 0.5),
              COUNT(*) FILTER (WHERE (athlete_a = $1 AND result = 0) OR (athlete_b = $1 AND result = 1))
              FROM matches
        `, id).Scan(&wins, &draws, &losses); err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ciLow, ciHigh := WilsonCI95(wins, draws, wins+draws+losses)

		type HistoryRow struct {
			MatchID    *string   `json:"match_id"`
			PeriodID   *string   `json:"period_id"`
			Rating     float64   `json:"rating"`
			RD         float64   `json:"rating_deviation"`
			Volatility float64   `json:"volatility"`
			Change     float64   `json:"change"`
			Converged  bool      `json:"solver_converged"`
			CreatedAt  time.Time `json:"created_at"`
		}
		rows, err := db.Query(ctx, `
            SELECT match_id, period_id, rating, rd, volatility, change, solver_converged, created_at
              FROM rating_history
             WHERE athlete_id = $1
             ORDER BY id DESC
             LIMIT 100
        `, id)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		history := []HistoryRow{}
		for rows.Next() {
			var h HistoryRow
			if err := rows.Scan(&h.MatchID, &h.PeriodID, &h.Rating, &h.RD, &h.Volatility,
				&h.Change, &h.Converged, &h.CreatedAt); err != nil {
				httpError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			history = append(history, h)
		}

		writeJSON(w, map[string]any{
			"athlete_id": id,
			"name":       name,
			"club":       club,
			"state":      state,
			"record":     map[string]int{"wins": wins, "draws": draws, "losses": losses},
			"win_rate_ci95": map[string]float64{
				"low": ciLow, "high": ciHigh,
			},
			"history": history,
		})
	})

	r.Post("/api/matches", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		var in struct {
			MatchID  string `json:"match_id"`
			AthleteA int64  `json:"athlete_a"`
			AthleteB int64  `json:"athlete_b"`
			Result   string `json:"result"` // win | loss | draw, from A's perspective
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, "bad json", http.StatusBadRequest)
			return
		}
		if in.AthleteA <= 0 || in.AthleteB <= 0 || in.AthleteA == in.AthleteB {
			httpError(w, "athlete_a and athlete_b must be distinct positive ids", http.StatusBadRequest)
			return
		}
		score, err := parseScore(in.Result)
		if err != nil {
			httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if in.MatchID == "" {
			in.MatchID = uuid.NewString()
		}

		res, err := db.ApplyMatch(ctx, in.MatchID, in.AthleteA, in.AthleteB, score, cfg.Rating.Tau)
		if err != nil {
			if errors.Is(err, rating.ErrInvalidScore) || errors.Is(err, rating.ErrInvalidState) {
				httpError(w, err.Error(), http.StatusBadRequest)
				return
			}
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"match_id": in.MatchID,
			"athlete_a": map[string]any{
				"state": res.A, "delta": res.DeltaA, "solver": res.DiagnosticA,
			},
			"athlete_b": map[string]any{
				"state": res.B, "delta": res.DeltaB, "solver": res.DiagnosticB,
			},
		})
	})

	r.Get("/api/leaderboard", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		type Row struct {
			AthleteID  int64     `json:"athlete_id"`
			Name       string    `json:"name"`
			Club       string    `json:"club"`
			Rating     float64   `json:"rating"`
			RD         float64   `json:"rating_deviation"`
			Volatility float64   `json:"volatility"`
			Matches    int       `json:"matches"`
			Updated    time.Time `json:"updated_at"`
		}
		rows, err := db.Query(ctx, `
            SELECT id, name, club, rating, rd, volatility, matches, updated_at
              FROM v_leaderboard
             ORDER BY rating DESC, rd ASC, matches DESC
             LIMIT 500
        `)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []Row{}
		for rows.Next() {
			var x Row
			if err := rows.Scan(&x.AthleteID, &x.Name, &x.Club, &x.Rating, &x.RD,
				&x.Volatility, &x.Matches, &x.Updated); err != nil {
				httpError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, x)
		}
		writeJSON(w, map[string]any{"rows": out})
	})

	r.Get("/api/rating-stats", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		rows, err := db.Query(ctx, `SELECT rating, matches FROM athlete_ratings`)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		var ratings []float64
		var matchCounts []int
		for rows.Next() {
			var x float64
			var m int
			if err := rows.Scan(&x, &m); err != nil {
				httpError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			ratings = append(ratings, x)
			matchCounts = append(matchCounts, m)
		}
		writeJSON(w, computeRatingStats(ratings, matchCounts))
	})

	r.Post("/api/periods", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		var in struct {
			PeriodID    string `json:"period_id"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.PeriodID) == "" {
			httpError(w, "missing period_id", http.StatusBadRequest)
			return
		}
		if err := db.StartPeriod(ctx, in.PeriodID, in.Description); err != nil {
			if errors.Is(err, store.ErrPeriodExists) {
				httpError(w, err.Error(), http.StatusConflict)
				return
			}
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"period_id": in.PeriodID, "started": true})
	})

	r.Post("/api/periods/{id}/end", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		id := chi.URLParam(req, "id")
		if err := db.EndPeriod(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, "no such open period", http.StatusNotFound)
				return
			}
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"period_id": id, "ended": true})
	})

	r.Get("/api/periods", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		type Row struct {
			PeriodID    string     `json:"period_id"`
			Description string     `json:"description"`
			StartedAt   time.Time  `json:"started_at"`
			EndedAt     *time.Time `json:"ended_at"`
		}
		rows, err := db.Query(ctx, `
            SELECT period_id, description, started_at, ended_at
              FROM rating_periods
             ORDER BY started_at
        `)
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []Row{}
		for rows.Next() {
			var x Row
			if err := rows.Scan(&x.PeriodID, &x.Description, &x.StartedAt, &x.EndedAt); err != nil {
				httpError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, x)
		}
		writeJSON(w, map[string]any{"rows": out})
	})

	return r
}

// parseScore maps the wire result to the engine's closed score set.
func parseScore(result string) (rating.Score, error) {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win":
		return rating.Win, nil
	case "loss":
		return rating.Loss, nil
	case "draw":
		return rating.Draw, nil
	default:
		return 0, rating.ErrInvalidScore
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func httpError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
