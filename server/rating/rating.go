// Package rating implements the Glicko-2 skill estimate for pairwise match
// outcomes. The package is purely computational: every update takes a State
// value and returns a new one, performs no I/O, and never touches shared
// mutable state. Callers own storage and the ordering of updates per
// competitor.
//
// See https://www.glicko.net/glicko/glicko2.pdf for the underlying system.
package rating

import (
	"errors"
	"fmt"
	"time"
)

// --- Glicko-2 constants ---
const (
	scale = 173.7178 // rating scale between r <-> mu

	DefaultRating     = 1500.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06

	// DefaultTau is the system constant constraining volatility change.
	// Smaller values keep volatility more stable over time.
	DefaultTau = 0.5
)

var (
	ErrInvalidScore  = errors.New("rating: score must be 0, 0.5 or 1")
	ErrInvalidState  = errors.New("rating: deviation and volatility must be positive")
	ErrPeriodExists  = errors.New("rating: period already exists")
	ErrPeriodMissing = errors.New("rating: period not found")
)

// Score is the match result from one competitor's perspective.
type Score float64

const (
	Loss Score = 0.0
	Draw Score = 0.5
	Win  Score = 1.0
)

// Valid reports whether s is one of the three legal outcomes.
func (s Score) Valid() bool { return s == Loss || s == Draw || s == Win }

// Complement is the same match seen from the other side.
func (s Score) Complement() Score { return Score(1.0 - float64(s)) }

// State holds one competitor's public-scale rating estimate. States are
// values: updates return a new State and never modify the input.
type State struct {
	Rating     float64 `json:"rating"`           // r     (default 1500)
	RD         float64 `json:"rating_deviation"` // RD    (default 350)
	Volatility float64 `json:"volatility"`       // sigma (default 0.06)
	Matches    int     `json:"matches_played"`
	PeriodID   string  `json:"period_id,omitempty"`
}

// NewState returns a fresh competitor at the standard defaults.
func NewState() State {
	return State{Rating: DefaultRating, RD: DefaultRD, Volatility: DefaultVolatility}
}

// NewStateWithRating seeds a specific starting rating, keeping the default
// deviation and volatility.
func NewStateWithRating(r float64) State {
	s := NewState()
	s.Rating = r
	return s
}

func (s State) validate() error {
	if s.RD <= 0 || s.Volatility <= 0 {
		return fmt.Errorf("%w (rd=%g sigma=%g)", ErrInvalidState, s.RD, s.Volatility)
	}
	return nil
}

// Delta records a single rating change for history logging. The engine
// computes it; persisting it is the caller's concern.
type Delta struct {
	Previous float64   `json:"previous_rating"`
	New      float64   `json:"new_rating"`
	At       time.Time `json:"timestamp"`
}

func (d Delta) Change() float64 { return d.New - d.Previous }
