package mert

import (
	"fmt"
	"strconv"
	"time"
)

// statsComputer is the hook a metric fills in on top of the shared
// two-phase protocol: the entry width and the pure formula mapping an
// aggregated entry to the scalar score.
type statsComputer interface {
	NumberOfScores() int
	calculateScore(totals ScoreStats) float64
}

// statisticsScorer implements the performance-critical scoring protocol
// shared by statistics-based metrics. Phase A aggregates one entry per
// sentence into a running total and applies the metric formula. Phase B
// replays a sequence of diffs: each diff swaps a single row's
// contribution in and out of the total, so a trajectory of D diffs
// costs D row updates instead of D corpus passes. That only works
// because entries combine element-wise and a row's old contribution can
// be subtracted back out.
type statisticsScorer struct {
	*scorerBase

	computer  statsComputer
	regType   RegStrategy
	regWindow int
}

func newStatisticsScorer(name, config string, computer statsComputer) (*statisticsScorer, error) {
	base, err := newScorerBase(name, config)
	if err != nil {
		return nil, err
	}

	s := &statisticsScorer{scorerBase: base, computer: computer}

	s.regType, err = parseRegStrategy(s.getConfig("regtype", "none"))
	if err != nil {
		return nil, err
	}

	if v := s.getConfig("regwin", ""); v != "" {
		s.regWindow, err = strconv.Atoi(v)
		if err != nil || s.regWindow < 0 {
			return nil, fmt.Errorf("bad regwin %q", v)
		}
	}

	return s, nil
}

// Score computes the baseline scalar for one candidate index per
// sentence.
func (s *statisticsScorer) Score(candidates []int) (float64, error) {
	scores, err := s.ScoreDiffs(candidates, nil)
	if err != nil {
		return 0, err
	}

	return scores[0], nil
}

// ScoreDiffs emits the baseline scalar followed by one scalar per diff.
// Diffs are applied strictly in order, each on top of the previous
// selection state.
func (s *statisticsScorer) ScoreDiffs(candidates []int, diffs []Diff) ([]float64, error) {
	if s.scoreData == nil {
		return nil, ErrScoreDataNotLoaded
	}

	if len(candidates) != s.scoreData.Size() {
		return nil, fmt.Errorf("selection has %d entries, table has %d rows",
			len(candidates), s.scoreData.Size())
	}

	now := time.Now()

	width := s.computer.NumberOfScores()
	totals := make(ScoreStats, width)

	for sid, cand := range candidates {
		entry, err := s.scoreData.Get(sid, cand)
		if err != nil {
			return nil, err
		}

		if err := addStats(totals, entry); err != nil {
			return nil, fmt.Errorf("sentence %d candidate %d: %w", sid, cand, err)
		}
	}

	scores := make([]float64, 0, len(diffs)+1)
	scores = append(scores, s.computer.calculateScore(totals))

	selection := append([]int(nil), candidates...)
	for _, d := range diffs {
		if d.Sentence < 0 || d.Sentence >= len(selection) {
			return nil, fmt.Errorf("diff names sentence %d, table has %d rows",
				d.Sentence, len(selection))
		}

		oldEntry, err := s.scoreData.Get(d.Sentence, selection[d.Sentence])
		if err != nil {
			return nil, err
		}

		newEntry, err := s.scoreData.Get(d.Sentence, d.Candidate)
		if err != nil {
			return nil, err
		}

		if len(newEntry) != width {
			return nil, fmt.Errorf("%w: sentence %d candidate %d: entry has %d fields, want %d",
				ErrStatsSizeMismatch, d.Sentence, d.Candidate, len(newEntry), width)
		}

		for k := range totals {
			totals[k] += newEntry[k] - oldEntry[k]
		}

		selection[d.Sentence] = d.Candidate
		scores = append(scores, s.computer.calculateScore(totals))

		stats.Inc("score.diff", 1, 1.0)
	}

	if err := s.regularize(scores); err != nil {
		return nil, err
	}

	stats.Inc("score.baseline", 1, 1.0)
	stats.Timing("score.response_time", int64(time.Since(now)/time.Millisecond), 1.0)

	return scores, nil
}

// regularize smooths the emitted trajectory in place: each score becomes
// the min or average of the raw scores within regWindow positions of it.
func (s *statisticsScorer) regularize(scores []float64) error {
	if s.regType == RegNone || s.regWindow <= 0 {
		return nil
	}

	raw := append([]float64(nil), scores...)
	for i := range scores {
		start := 0
		if i >= s.regWindow {
			start = i - s.regWindow
		}

		end := i + s.regWindow + 1
		if end > len(raw) {
			end = len(raw)
		}

		var err error
		if s.regType == RegAverage {
			scores[i], err = scoreAverage(raw, start, end)
		} else {
			scores[i], err = scoreMin(raw, start, end)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// foldReferenceStats collapses the per-reference entries produced for
// one candidate into a single entry using the configured strategy.
func (s *statisticsScorer) foldReferenceStats(entries []ScoreStats) (ScoreStats, error) {
	return foldEntries(entries, s.regType)
}
