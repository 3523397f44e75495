package rating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleRoundTrip(t *testing.T) {
	for r := 0.0; r <= 4000.0; r += 125.0 {
		for rd := 5.0; rd <= 500.0; rd += 15.0 {
			mu, phi := toInternal(r, rd)
			gotR, gotRD := toPublic(mu, phi)
			if math.Abs(gotR-r) > 1e-9*math.Max(1, math.Abs(r)) {
				t.Fatalf("rating round trip drifted: %g -> %g", r, gotR)
			}
			if math.Abs(gotRD-rd) > 1e-9*rd {
				t.Fatalf("deviation round trip drifted: %g -> %g", rd, gotRD)
			}
		}
	}
}

func TestScaleKnownPoints(t *testing.T) {
	mu, phi := toInternal(1500, 173.7178)
	assert.InDelta(t, 0.0, mu, 1e-12)
	assert.InDelta(t, 1.0, phi, 1e-12)

	mu, _ = toInternal(1500+173.7178, 350)
	assert.InDelta(t, 1.0, mu, 1e-12)
}

func TestGDampening(t *testing.T) {
	assert.Equal(t, 1.0, g(0), "zero deviation must count at full weight")

	// g must decrease monotonically as the opponent's deviation grows.
	prev := g(0)
	for phi := 0.1; phi <= 3.0; phi += 0.1 {
		cur := g(phi)
		assert.Less(t, cur, prev, "g not decreasing at phi=%g", phi)
		assert.Greater(t, cur, 0.0)
		prev = cur
	}
}

func TestExpectedScore(t *testing.T) {
	// Equal opponents: a coin flip.
	assert.InDelta(t, 0.5, expectedScore(0, 0, 1.0), 1e-12)

	// Stronger player is favored, and E stays inside (0,1) even for
	// extreme gaps.
	assert.Greater(t, expectedScore(1.0, 0, 0.5), 0.5)
	assert.Less(t, expectedScore(-1.0, 0, 0.5), 0.5)
	for _, gap := range []float64{-50, -10, 0, 10, 50} {
		e := expectedScore(gap, 0, 2.0)
		assert.Greater(t, e, 0.0)
		assert.Less(t, e, 1.0)
	}

	// A noisier opponent drags E toward 0.5.
	sharp := expectedScore(1.0, 0, 0.1)
	noisy := expectedScore(1.0, 0, 2.5)
	assert.Greater(t, sharp, noisy)
	assert.Greater(t, noisy, 0.5)
}
