// Package analytics implements period aggregation and the statistical
// analyzers over an ingested usage dataset. Every function is a pure read of
// the records it is given.
package analytics

import (
	"math"

	"github.com/samber/lo"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// sampleStdDev uses the n-1 denominator. Fewer than two values yield 0.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
