package main

import (
	"math"
	"sort"
	"time"
)

// RatingStats summarizes the current rating population for the stats
// endpoint.
type RatingStats struct {
	TotalAthletes int            `json:"total_athletes"`
	TotalMatches  int            `json:"total_matches"`
	Average       float64        `json:"average_rating"`
	Median        float64        `json:"median_rating"`
	Min           float64        `json:"min_rating"`
	Max           float64        `json:"max_rating"`
	Distribution  map[string]int `json:"rating_distribution"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// distributionBucket assigns a rating to its leaderboard band.
func distributionBucket(r float64) string {
	switch {
	case r < 1500:
		return "below-1500"
	case r < 1600:
		return "1500-1600"
	case r < 1700:
		return "1600-1700"
	case r < 1800:
		return "1700-1800"
	default:
		return "1800+"
	}
}

// computeRatingStats aggregates ratings and per-athlete match counts.
func computeRatingStats(ratings []float64, matchCounts []int) RatingStats {
	stats := RatingStats{
		Distribution: map[string]int{},
		GeneratedAt:  time.Now().UTC(),
	}
	stats.TotalAthletes = len(ratings)
	for _, m := range matchCounts {
		stats.TotalMatches += m
	}
	if len(ratings) == 0 {
		return stats
	}

	sorted := make([]float64, len(ratings))
	copy(sorted, ratings)
	sort.Float64s(sorted)

	sum := 0.0
	for _, r := range sorted {
		sum += r
		stats.Distribution[distributionBucket(r)]++
	}
	stats.Average = sum / float64(len(sorted))
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		stats.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		stats.Median = sorted[mid]
	}
	return stats
}

// WilsonCI95 puts a 95% confidence interval on a win rate from counted
// wins/draws/total, treating a draw as half a win.
func WilsonCI95(wins, draws, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(draws)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}
