package rating

import "math"

// --- internal conversions r/RD <-> mu/phi ---

func toInternal(r, rd float64) (mu, phi float64) {
	return (r - DefaultRating) / scale, rd / scale
}

func toPublic(mu, phi float64) (r, rd float64) {
	return mu*scale + DefaultRating, phi * scale
}

// g dampens the influence of opponents with high rating deviation.
// g(0) = 1, so a zero-deviation opponent counts at full weight.
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// expectedScore is E(mu, mu_j, phi_j): the win probability against an
// opponent at mu_j whose deviation is phi_j, all on the internal scale.
func expectedScore(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phij)*(mu-muj)))
}
