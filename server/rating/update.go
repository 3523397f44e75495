package rating

import (
	"math"
	"time"
)

// Opponent is one opposing result used by the batch (rating-period) update:
// the opponent's public-scale rating and deviation as of the start of the
// period, and the score achieved against them.
type Opponent struct {
	Rating float64
	RD     float64
	Score  Score
}

// Update applies a single match outcome to cur and returns the updated
// state, the rating delta for history logging, and the solver diagnostic.
// The input state is unchanged; invalid scores and non-positive deviation
// or volatility are rejected rather than coerced.
func Update(cur State, oppRating, oppRD float64, s Score, tau float64) (State, Delta, Diagnostic, error) {
	if !s.Valid() {
		return State{}, Delta{}, Diagnostic{}, ErrInvalidScore
	}
	if err := cur.validate(); err != nil {
		return State{}, Delta{}, Diagnostic{}, err
	}
	if oppRD <= 0 {
		return State{}, Delta{}, Diagnostic{}, ErrInvalidState
	}

	mu, phi := toInternal(cur.Rating, cur.RD)
	muj, phij := toInternal(oppRating, oppRD)

	gj := g(phij)
	e := expectedScore(mu, muj, phij)
	v := 1.0 / (gj * gj * e * (1.0 - e))
	delta := v * gj * (float64(s) - e)

	sigma, diag := solveVolatility(delta, phi, v, cur.Volatility, tau)

	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := mu + phiNew*phiNew*gj*(float64(s)-e)

	next := cur
	next.Rating, next.RD = toPublic(muNew, phiNew)
	next.Volatility = sigma
	next.Matches++

	d := Delta{Previous: cur.Rating, New: next.Rating, At: time.Now().UTC()}
	return next, d, diag, nil
}

// MatchResult carries both sides of a processed match.
type MatchResult struct {
	A, B        State
	DeltaA      Delta
	DeltaB      Delta
	DiagnosticA Diagnostic
	DiagnosticB Diagnostic
}

// ProcessMatch updates both competitors from each other's pre-match state.
// outcomeForA is the score from A's perspective; B gets the complement, so
// a draw maps to 0.5 for both.
func ProcessMatch(a, b State, outcomeForA Score, tau float64) (MatchResult, error) {
	newA, dA, diagA, err := Update(a, b.Rating, b.RD, outcomeForA, tau)
	if err != nil {
		return MatchResult{}, err
	}
	newB, dB, diagB, err := Update(b, a.Rating, a.RD, outcomeForA.Complement(), tau)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		A: newA, B: newB,
		DeltaA: dA, DeltaB: dB,
		DiagnosticA: diagA, DiagnosticB: diagB,
	}, nil
}

// UpdateBatch is the canonical Glicko-2 rating-period update: all of the
// period's results are applied at once against the opponents' start-of-period
// ratings. With no results it reduces to Age. The per-match ingestion path
// uses Update instead; this form exists for period closes that want the
// textbook semantics.
func UpdateBatch(cur State, opps []Opponent, tau float64) (State, Diagnostic, error) {
	if err := cur.validate(); err != nil {
		return State{}, Diagnostic{}, err
	}
	if len(opps) == 0 {
		aged, err := Age(cur)
		return aged, Diagnostic{Converged: true}, err
	}

	mu, phi := toInternal(cur.Rating, cur.RD)

	var sumG2E float64 // sum of g^2 * E * (1-E)
	var sumGSE float64 // sum of g * (s - E)
	for _, o := range opps {
		if !o.Score.Valid() {
			return State{}, Diagnostic{}, ErrInvalidScore
		}
		if o.RD <= 0 {
			return State{}, Diagnostic{}, ErrInvalidState
		}
		muj, phij := toInternal(o.Rating, o.RD)
		gj := g(phij)
		e := expectedScore(mu, muj, phij)
		sumG2E += gj * gj * e * (1.0 - e)
		sumGSE += gj * (float64(o.Score) - e)
	}
	v := 1.0 / sumG2E
	delta := v * sumGSE

	sigma, diag := solveVolatility(delta, phi, v, cur.Volatility, tau)

	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := mu + phiNew*phiNew*sumGSE

	next := cur
	next.Rating, next.RD = toPublic(muNew, phiNew)
	next.Volatility = sigma
	next.Matches += len(opps)
	return next, diag, nil
}

// Age applies the "no games this period" step: deviation grows by the
// volatility (phi* = sqrt(phi^2 + sigma^2)) while the rating stays put.
// Nothing in the engine calls this automatically; idle decay is an explicit
// caller decision.
func Age(cur State) (State, error) {
	if err := cur.validate(); err != nil {
		return State{}, err
	}
	_, phi := toInternal(cur.Rating, cur.RD)
	phiStar := math.Sqrt(phi*phi + cur.Volatility*cur.Volatility)
	next := cur
	_, next.RD = toPublic(0, phiStar)
	return next, nil
}
