package rating

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverTerminationRandomized(t *testing.T) {
	// The solver must come back within its iteration caps and produce a
	// sane volatility for any realistic input, no matter how the bracket
	// search or the Illinois loop goes.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		phi := (30 + rng.Float64()*370) / scale
		v := 0.01 + rng.Float64()*9.99
		sigma := 0.01 + rng.Float64()*0.19
		delta := -5 + rng.Float64()*10

		got, diag := solveVolatility(delta, phi, v, sigma, DefaultTau)
		if !(got > 0 && got < 2) {
			t.Fatalf("case %d: sigma out of range: %g (delta=%g phi=%g v=%g sigma=%g diag=%+v)",
				i, got, delta, phi, v, sigma, diag)
		}
		if !diag.Converged && got != sigma {
			t.Fatalf("case %d: fallback must return the prior volatility, got %g want %g", i, got, sigma)
		}
	}
}

func TestSolverBracketCapFallsBack(t *testing.T) {
	// With delta^2 well below phi^2+v the upward bracket scan never finds a
	// sign change inside its cap, and the solve keeps the prior sigma.
	phi := 200.0 / scale
	got, diag := solveVolatility(0.1, phi, 1.5, DefaultVolatility, DefaultTau)
	assert.Equal(t, DefaultVolatility, got)
	assert.False(t, diag.Converged)
	assert.Equal(t, FallbackBracketCap, diag.Fallback)
}

func TestSolverConvergesOnLargeDelta(t *testing.T) {
	// delta^2 > phi^2 + v puts B at ln(delta^2-phi^2-v) and the Illinois
	// loop does real work.
	phi := 80.0 / scale
	mu, _ := toInternal(1500, 80)
	muj, phij := toInternal(2400, 30)
	gj := g(phij)
	e := expectedScore(mu, muj, phij)
	v := 1.0 / (gj * gj * e * (1.0 - e))
	delta := v * gj * (1.0 - e)

	got, diag := solveVolatility(delta, phi, v, DefaultVolatility, DefaultTau)
	require.True(t, diag.Converged, "diag=%+v", diag)
	assert.InDelta(t, 0.06001312504, got, 1e-8)
	assert.Less(t, diag.Iterations, maxIterations)
}

func TestSolverDegenerateInputs(t *testing.T) {
	// Zero-ish phi and v trip the degenerate-denominator guard inside f;
	// the solve must still terminate and return something positive.
	got, _ := solveVolatility(0, 1e-8, 1e-12, DefaultVolatility, DefaultTau)
	assert.Greater(t, got, 0.0)

	// Huge delta drives B far to the right; still terminates.
	got, _ = solveVolatility(1e6, 1.0, 1.0, DefaultVolatility, DefaultTau)
	assert.Greater(t, got, 0.0)
	assert.False(t, math.IsNaN(got))
	assert.False(t, math.IsInf(got, 0))
}

func TestFVolGuards(t *testing.T) {
	a := math.Log(DefaultVolatility * DefaultVolatility)

	// Exponent clamp: gigantic x must not overflow to NaN/Inf.
	got := fVol(1e4, 1.0, 1.0, 1.0, a, DefaultTau)
	assert.False(t, math.IsNaN(got))
	assert.False(t, math.IsInf(got, 0))

	// Degenerate phi^2+v short-circuits to zero.
	assert.Equal(t, 0.0, fVol(0, 1.0, 0, 0, a, DefaultTau))

	// x beyond ~691 makes e^x exceed 1e300 and trips the overflow cutoff.
	assert.Equal(t, 0.0, fVol(699, 1.0, 1.0, 1.0, a, DefaultTau))
}
