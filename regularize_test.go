package mert

import (
	"errors"
	"testing"
)

func TestParseRegStrategy(t *testing.T) {
	var tests = []struct {
		in       string
		expected RegStrategy
		fails    bool
	}{
		{"", RegNone, false},
		{"none", RegNone, false},
		{"average", RegAverage, false},
		{"avg", RegAverage, false},
		{"min", RegMinimum, false},
		{"MINIMUM", RegMinimum, false},
		{"bogus", RegNone, true},
	}

	for _, tt := range tests {
		got, err := parseRegStrategy(tt.in)
		if tt.fails {
			if err == nil {
				t.Errorf("parseRegStrategy(%q) did not fail", tt.in)
			}
			continue
		}

		if err != nil || got != tt.expected {
			t.Errorf("parseRegStrategy(%q) = %v, %v; want %v", tt.in, got, err, tt.expected)
		}
	}
}

func TestScoreMinAverage(t *testing.T) {
	scores := []float64{0.4, 0.2, 0.9, 0.3}

	min, err := scoreMin(scores, 0, 3)
	if err != nil || min != 0.2 {
		t.Errorf("scoreMin = %v, %v; want 0.2", min, err)
	}

	avg, err := scoreAverage(scores, 0, 3)
	if err != nil || avg != 0.5 {
		t.Errorf("scoreAverage = %v, %v; want 0.5", avg, err)
	}
}

func TestScoreAverageEmptyRange(t *testing.T) {
	if _, err := scoreAverage([]float64{1, 2}, 1, 1); !errors.Is(err, ErrNoReferenceStats) {
		t.Errorf("empty range: got %v, want ErrNoReferenceStats", err)
	}

	if _, err := scoreMin([]float64{1, 2}, 2, 2); !errors.Is(err, ErrNoReferenceStats) {
		t.Errorf("empty range: got %v, want ErrNoReferenceStats", err)
	}
}

// Element-wise, the minimum fold never exceeds the average fold, which
// never exceeds the per-field maximum.
func TestFoldMinAverageMaxOrder(t *testing.T) {
	entries := []ScoreStats{
		{3, 10, 7, 0},
		{5, 2, 7, 9},
		{4, 6, 1, 3},
	}

	min, err := foldMin(entries)
	if err != nil {
		t.Fatal(err)
	}

	avg, err := foldAverage(entries)
	if err != nil {
		t.Fatal(err)
	}

	max := entries[0].Clone()
	for _, e := range entries[1:] {
		for k, v := range e {
			if v > max[k] {
				max[k] = v
			}
		}
	}

	for k := range min {
		if min[k] > avg[k] || avg[k] > max[k] {
			t.Errorf("field %d: min %d, avg %d, max %d out of order",
				k, min[k], avg[k], max[k])
		}
	}
}

func TestFoldZeroEntries(t *testing.T) {
	if _, err := foldAverage(nil); !errors.Is(err, ErrNoReferenceStats) {
		t.Errorf("foldAverage(nil): got %v, want ErrNoReferenceStats", err)
	}

	if _, err := foldMin(nil); !errors.Is(err, ErrNoReferenceStats) {
		t.Errorf("foldMin(nil): got %v, want ErrNoReferenceStats", err)
	}
}

func TestFoldWidthMismatch(t *testing.T) {
	entries := []ScoreStats{{1, 2}, {1, 2, 3}}

	if _, err := foldMin(entries); !errors.Is(err, ErrStatsSizeMismatch) {
		t.Errorf("foldMin: got %v, want ErrStatsSizeMismatch", err)
	}

	if _, err := foldAverage(entries); !errors.Is(err, ErrStatsSizeMismatch) {
		t.Errorf("foldAverage: got %v, want ErrStatsSizeMismatch", err)
	}
}

func TestFoldEntriesNoneRequiresSingle(t *testing.T) {
	single := []ScoreStats{{1, 2}}
	folded, err := foldEntries(single, RegNone)
	if err != nil || folded[0] != 1 {
		t.Errorf("foldEntries single = %v, %v", folded, err)
	}

	if _, err := foldEntries([]ScoreStats{{1}, {2}}, RegNone); err == nil {
		t.Error("multiple entries with RegNone did not fail")
	}
}
