package rating

import "math"

// Volatility solver: finds the new sigma as the root of Glickman's f(x)
// using an Illinois-style regula falsi. Every failure mode degrades to the
// competitor's prior volatility instead of erroring; the Diagnostic tells
// the caller which path was taken.

const (
	epsilon       = 1e-6 // convergence tolerance on |B - A|
	maxBracketK   = 100  // cap on the bracket scan
	maxIterations = 100  // cap on the Illinois loop
	expClamp      = 700  // |x| bound before exp(x) to avoid overflow
)

// FallbackReason identifies why a solve returned the prior volatility.
type FallbackReason string

const (
	FallbackBracketCap   FallbackReason = "bracket_cap"
	FallbackEndpointNaN  FallbackReason = "endpoint_nan"
	FallbackFlatSecant   FallbackReason = "flat_secant"
	FallbackMidpointNaN  FallbackReason = "midpoint_nan"
	FallbackIterationCap FallbackReason = "iteration_cap"
)

// Diagnostic reports how a volatility solve ended. A fallback is not an
// error: the update still proceeds with the unchanged prior volatility.
type Diagnostic struct {
	Converged  bool           `json:"converged"`
	Fallback   FallbackReason `json:"fallback,omitempty"`
	Iterations int            `json:"iterations"`
}

func fellBack(reason FallbackReason, iters int) Diagnostic {
	return Diagnostic{Fallback: reason, Iterations: iters}
}

// fVol is f(x) from the Glicko-2 paper with the numeric guards the system
// depends on: exponent clamping, overflow and degenerate-denominator cutoffs,
// and NaN/Inf squashed to zero. These guards materially change behavior on
// edge-case inputs and are part of the contract, not an optimization.
func fVol(x, delta, phi, v, a, tau float64) float64 {
	if x > expClamp {
		x = expClamp
	} else if x < -expClamp {
		x = -expClamp
	}
	phi2v := phi*phi + v
	if math.Abs(phi2v) < 1e-10 {
		return 0
	}
	ex := math.Exp(x)
	if ex > 1e300 {
		return 0
	}
	den := 2.0 * (phi2v + ex) * (phi2v + ex)
	if math.Abs(den) < 1e-10 {
		return 0
	}
	res := (ex*(delta*delta-phi2v-ex))/den - (x-a)/(tau*tau)
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return 0
	}
	return res
}

// solveVolatility returns the new volatility given the observed performance
// delta, prior deviation phi, estimated variance v, prior volatility sigma
// and the system constant tau. Both the bracket scan and the root-finding
// loop are capped, so the solve always terminates, and the result is always
// strictly positive (solved or unchanged).
func solveVolatility(delta, phi, v, sigma, tau float64) (float64, Diagnostic) {
	a := math.Log(sigma * sigma)
	A := a

	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		// Scan upward from a in steps of tau until f turns non-negative.
		k := 1
		for k <= maxBracketK && fVol(a+float64(k)*tau, delta, phi, v, a, tau) < 0 {
			k++
		}
		if k > maxBracketK {
			return sigma, fellBack(FallbackBracketCap, 0)
		}
		B = a + float64(k)*tau
	}

	fA := fVol(A, delta, phi, v, a, tau)
	fB := fVol(B, delta, phi, v, a, tau)
	if math.IsNaN(fA) || math.IsNaN(fB) || math.IsInf(fA, 0) || math.IsInf(fB, 0) {
		return sigma, fellBack(FallbackEndpointNaN, 0)
	}

	it := 0
	for math.Abs(B-A) > epsilon && it < maxIterations {
		if math.Abs(fB-fA) < 1e-10 {
			return sigma, fellBack(FallbackFlatSecant, it)
		}
		C := A + (A-B)*fA/(fB-fA)
		fC := fVol(C, delta, phi, v, a, tau)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			return sigma, fellBack(FallbackMidpointNaN, it)
		}
		if fC*fB < 0 {
			A, fA = B, fB
		} else {
			// Illinois correction: halve the stale endpoint's value so the
			// retained bracket keeps converging.
			fA /= 2
		}
		B, fB = C, fC
		it++
	}
	if it >= maxIterations {
		return sigma, fellBack(FallbackIterationCap, it)
	}
	return math.Exp(A / 2.0), Diagnostic{Converged: true, Iterations: it}
}
