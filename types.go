package mert

import "errors"

// tokenID identifies an entry in a Vocabulary.
type tokenID int64

// ScoreStatsType is the integral type of a single sufficient-statistic
// field.
type ScoreStatsType int64

// Diff is one hypothetical change of the active candidate for a single
// sentence. Diffs are applied in sequence: each one builds on the
// selection state left by the previous one.
type Diff struct {
	Sentence  int
	Candidate int
}

// Error conditions surfaced by the scoring core. All of them indicate
// programming or configuration faults; none are retried internally.
var (
	ErrScoreDataNotLoaded = errors.New("score data not loaded")
	ErrReferencesNotSet   = errors.New("references not set")
	ErrInvalidFactor      = errors.New("invalid factor")
	ErrStatsSizeMismatch  = errors.New("statistics size mismatch")
	ErrNoReferenceStats   = errors.New("no reference statistics")
	ErrFilterFailed       = errors.New("filter command failed")
)
