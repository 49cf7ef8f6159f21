package mert

import (
	"fmt"
	"math"
	"strings"
)

// RegStrategy selects how multiple values for one slot are collapsed
// into a single value, either across the per-reference entries of a
// sentence or across a window of trajectory scores.
type RegStrategy int

const (
	RegNone RegStrategy = iota
	RegAverage
	RegMinimum
)

func parseRegStrategy(s string) (RegStrategy, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return RegNone, nil
	case "average", "avg":
		return RegAverage, nil
	case "min", "minimum":
		return RegMinimum, nil
	}

	return RegNone, fmt.Errorf("unknown regularization strategy %q", s)
}

// scoreMin returns the minimum of scores[start:end].
func scoreMin(scores []float64, start, end int) (float64, error) {
	if end-start < 1 {
		return 0, fmt.Errorf("%w: empty score range [%d,%d)",
			ErrNoReferenceStats, start, end)
	}

	min := math.MaxFloat64
	for i := start; i < end; i++ {
		if scores[i] < min {
			min = scores[i]
		}
	}

	return min, nil
}

// scoreAverage returns the arithmetic mean of scores[start:end]. An
// empty range is an error, never a silent 0.
func scoreAverage(scores []float64, start, end int) (float64, error) {
	if end-start < 1 {
		return 0, fmt.Errorf("%w: empty score range [%d,%d)",
			ErrNoReferenceStats, start, end)
	}

	var total float64
	for i := start; i < end; i++ {
		total += scores[i]
	}

	return total / float64(end-start), nil
}

// foldMin collapses per-reference entries into one entry by element-wise
// minimum. All entries must have the same width.
func foldMin(entries []ScoreStats) (ScoreStats, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: cannot fold zero entries", ErrNoReferenceStats)
	}

	folded := entries[0].Clone()
	for _, entry := range entries[1:] {
		if len(entry) != len(folded) {
			return nil, fmt.Errorf("%w: entry has %d fields, want %d",
				ErrStatsSizeMismatch, len(entry), len(folded))
		}

		for k, v := range entry {
			if v < folded[k] {
				folded[k] = v
			}
		}
	}

	return folded, nil
}

// foldAverage collapses per-reference entries into one entry by
// element-wise mean, rounded to the nearest integer statistic.
func foldAverage(entries []ScoreStats) (ScoreStats, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: cannot fold zero entries", ErrNoReferenceStats)
	}

	width := len(entries[0])
	sums := make([]float64, width)
	for _, entry := range entries {
		if len(entry) != width {
			return nil, fmt.Errorf("%w: entry has %d fields, want %d",
				ErrStatsSizeMismatch, len(entry), width)
		}

		for k, v := range entry {
			sums[k] += float64(v)
		}
	}

	folded := make(ScoreStats, width)
	for k, sum := range sums {
		folded[k] = ScoreStatsType(math.Round(sum / float64(len(entries))))
	}

	return folded, nil
}

// foldEntries applies the given strategy across per-reference entries.
// RegNone requires a single entry: multiplicity with no strategy is a
// configuration error, not something to paper over.
func foldEntries(entries []ScoreStats, strategy RegStrategy) (ScoreStats, error) {
	switch strategy {
	case RegMinimum:
		return foldMin(entries)
	case RegAverage:
		return foldAverage(entries)
	}

	if len(entries) != 1 {
		return nil, fmt.Errorf("%d reference entries but no regularization strategy configured",
			len(entries))
	}

	return entries[0], nil
}
