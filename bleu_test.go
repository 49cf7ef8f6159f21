package mert

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeRefFile(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ref.txt")

	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func bleuWithRefs(t *testing.T, config string, refFiles ...string) *BLEUScorer {
	t.Helper()

	b, err := NewBLEUScorer(config)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.SetReferenceFiles(refFiles); err != nil {
		t.Fatal(err)
	}

	return b
}

func TestBLEUNumberOfScores(t *testing.T) {
	b, err := NewBLEUScorer("")
	if err != nil {
		t.Fatal(err)
	}

	if got := b.NumberOfScores(); got != 9 {
		t.Errorf("NumberOfScores = %d, want 9", got)
	}
}

func TestBLEUPerfectMatch(t *testing.T) {
	ref := writeRefFile(t, "the cat sat on the mat")
	b := bleuWithRefs(t, "", ref)

	var entry ScoreStats
	if err := b.PrepareStats(0, "the cat sat on the mat", &entry); err != nil {
		t.Fatal(err)
	}

	d := NewScoreData(b)
	if err := d.Add(entry, 0); err != nil {
		t.Fatal(err)
	}
	b.SetScoreData(d)

	score, err := b.Score([]int{0})
	if err != nil {
		t.Fatal(err)
	}

	if !almostEqual(score, 1.0) {
		t.Errorf("perfect match scored %v, want 1.0", score)
	}
}

// A candidate that is a strict prefix of the reference has perfect
// n-gram precision and only pays the brevity penalty.
func TestBLEUBrevityPenalty(t *testing.T) {
	ref := writeRefFile(t, "a b c d e")
	b := bleuWithRefs(t, "", ref)

	var entry ScoreStats
	if err := b.PrepareStats(0, "a b c d", &entry); err != nil {
		t.Fatal(err)
	}

	want := ScoreStats{4, 4, 3, 3, 2, 2, 1, 1, 5}
	for i := range want {
		if entry[i] != want[i] {
			t.Errorf("entry[%d] = %d, want %d", i, entry[i], want[i])
		}
	}

	score := b.calculateScore(entry)
	if expected := math.Exp(1 - 5.0/4.0); !almostEqual(score, expected) {
		t.Errorf("score = %v, want %v", score, expected)
	}
}

func TestBLEUNoMatches(t *testing.T) {
	ref := writeRefFile(t, "a b c d e")
	b := bleuWithRefs(t, "", ref)

	var entry ScoreStats
	if err := b.PrepareStats(0, "v w x y z", &entry); err != nil {
		t.Fatal(err)
	}

	if score := b.calculateScore(entry); score != 0 {
		t.Errorf("disjoint candidate scored %v, want 0", score)
	}
}

// Repeated candidate tokens are clipped against the reference count.
func TestBLEUClipping(t *testing.T) {
	ref := writeRefFile(t, "the cat")
	b := bleuWithRefs(t, "", ref)

	var entry ScoreStats
	if err := b.PrepareStats(0, "the the the cat", &entry); err != nil {
		t.Fatal(err)
	}

	// Unigrams: "the" matches once, "cat" once.
	if entry[0] != 2 || entry[1] != 4 {
		t.Errorf("unigram stats = %d/%d, want 2/4", entry[0], entry[1])
	}
}

func TestBLEUClosestRefLength(t *testing.T) {
	ref1 := writeRefFile(t, "a b c d e")
	ref2 := writeRefFile(t, "a b")
	b := bleuWithRefs(t, "", ref1, ref2)

	var entry ScoreStats
	if err := b.PrepareStats(0, "a b c d", &entry); err != nil {
		t.Fatal(err)
	}

	if got := entry[8]; got != 5 {
		t.Errorf("closest reference length = %d, want 5", got)
	}
}

func TestBLEUShortestRefLength(t *testing.T) {
	ref1 := writeRefFile(t, "a b c d e")
	ref2 := writeRefFile(t, "a b")
	b := bleuWithRefs(t, "reflen:shortest", ref1, ref2)

	var entry ScoreStats
	if err := b.PrepareStats(0, "a b c d", &entry); err != nil {
		t.Fatal(err)
	}

	if got := entry[8]; got != 2 {
		t.Errorf("shortest reference length = %d, want 2", got)
	}
}

func TestBLEUBadRefLenConfig(t *testing.T) {
	if _, err := NewBLEUScorer("reflen:bogus"); err == nil {
		t.Error("bogus reflen accepted")
	}
}

func TestBLEUPrepareStatsBeforeReferences(t *testing.T) {
	b, err := NewBLEUScorer("")
	if err != nil {
		t.Fatal(err)
	}

	var entry ScoreStats
	err = b.PrepareStats(0, "the cat", &entry)
	if !errors.Is(err, ErrReferencesNotSet) {
		t.Errorf("got %v, want ErrReferencesNotSet", err)
	}
}

func TestBLEUReferenceFactorError(t *testing.T) {
	ref := writeRefFile(t, "bare tokens")

	b, err := NewBLEUScorer("factors:1")
	if err != nil {
		t.Fatal(err)
	}

	err = b.SetReferenceFiles([]string{ref})
	if !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("got %v, want ErrInvalidFactor", err)
	}
}

func TestBLEUMismatchedReferenceFiles(t *testing.T) {
	ref1 := writeRefFile(t, "a b c", "d e f")
	ref2 := writeRefFile(t, "a b c")

	b, err := NewBLEUScorer("")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.SetReferenceFiles([]string{ref1, ref2}); err == nil {
		t.Error("mismatched reference files accepted")
	}
}

// End to end: extract statistics for a two-sentence corpus with two
// candidates each, then walk a diff trajectory.
func TestBLEUTwoPhase(t *testing.T) {
	ref := writeRefFile(t, "the cat sat on the mat", "a stitch in time saves nine")
	b := bleuWithRefs(t, "", ref)

	candidates := [][]string{
		{"the cat sat on the mat", "a cat sat on a mat"},
		{"a stitch in time saves nine", "time saves nine"},
	}

	d := NewScoreData(b)
	for sid, hyps := range candidates {
		for _, hyp := range hyps {
			var entry ScoreStats
			if err := b.PrepareStats(sid, hyp, &entry); err != nil {
				t.Fatal(err)
			}
			if err := d.Add(entry, sid); err != nil {
				t.Fatal(err)
			}
		}
	}
	b.SetScoreData(d)

	scores, err := b.ScoreDiffs([]int{0, 0}, []Diff{
		{Sentence: 0, Candidate: 1},
		{Sentence: 1, Candidate: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(scores))
	}

	if !almostEqual(scores[0], 1.0) {
		t.Errorf("baseline = %v, want 1.0 (both 1-best are exact)", scores[0])
	}

	for i := 1; i < len(scores); i++ {
		if scores[i] >= scores[i-1] {
			t.Errorf("worse candidates did not lower the score: %v", scores)
		}
	}
}
