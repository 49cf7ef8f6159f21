package mert

import (
	"fmt"
	"time"
)

// PERScorer computes the position-independent error rate: candidates
// are matched against the reference as bags of tokens, so word order
// does not matter. Each statistics entry is [correct, hyp_len, ref_len].
//
// With multiple reference files, a per-reference entry is computed for
// each and folded by the configured regularization strategy (regtype);
// multiple references with no strategy is a configuration error.
type PERScorer struct {
	*statisticsScorer

	refs [][]perReference
}

type perReference struct {
	bag    map[tokenID]int
	length int
}

func NewPERScorer(config string) (*PERScorer, error) {
	p := new(PERScorer)

	ss, err := newStatisticsScorer("PER", config, p)
	if err != nil {
		return nil, err
	}
	p.statisticsScorer = ss

	return p, nil
}

func (p *PERScorer) NumberOfScores() int {
	return 3
}

func (p *PERScorer) SetReferenceFiles(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no reference files given", ErrReferencesNotSet)
	}

	var refs [][]perReference

	for fi, path := range paths {
		lines, err := readLines(path)
		if err != nil {
			return err
		}

		if fi == 0 {
			refs = make([][]perReference, len(lines))
		} else if len(lines) != len(refs) {
			return fmt.Errorf("reference file %s has %d sentences, want %d",
				path, len(lines), len(refs))
		}

		for sid, line := range lines {
			processed, err := p.preprocessSentence(line)
			if err != nil {
				return fmt.Errorf("%s line %d: %w", path, sid+1, err)
			}

			ids := p.tokenizeAndEncode(processed)

			bag := make(map[tokenID]int, len(ids))
			for _, id := range ids {
				bag[id]++
			}

			refs[sid] = append(refs[sid], perReference{bag: bag, length: len(ids)})
		}
	}

	p.refs = refs
	clog.Infof("loaded %d reference sentences from %d files", len(refs), len(paths))

	return nil
}

func (p *PERScorer) PrepareStats(sentence int, text string, entry *ScoreStats) error {
	now := time.Now()

	if p.refs == nil {
		return ErrReferencesNotSet
	}

	if sentence < 0 || sentence >= len(p.refs) {
		return fmt.Errorf("sentence index %d out of range (have %d references)",
			sentence, len(p.refs))
	}

	processed, err := p.preprocessSentence(text)
	if err != nil {
		return err
	}

	ids := p.tokenizeAndEncode(processed)

	perRef := make([]ScoreStats, 0, len(p.refs[sentence]))
	for _, ref := range p.refs[sentence] {
		perRef = append(perRef, ScoreStats{
			ScoreStatsType(ref.countMatches(ids)),
			ScoreStatsType(len(ids)),
			ScoreStatsType(ref.length),
		})
	}

	folded, err := p.foldReferenceStats(perRef)
	if err != nil {
		return fmt.Errorf("sentence %d: %w", sentence, err)
	}

	*entry = folded

	stats.Inc("prepare_stats", 1, 1.0)
	stats.Timing("prepare_stats.response_time",
		int64(time.Since(now)/time.Millisecond), 1.0)

	return nil
}

// countMatches is the bag intersection size: each reference token can
// be matched at most as often as the reference contains it.
func (r *perReference) countMatches(ids []tokenID) int {
	remaining := make(map[tokenID]int, len(r.bag))
	for id, count := range r.bag {
		remaining[id] = count
	}

	var correct int
	for _, id := range ids {
		if remaining[id] > 0 {
			remaining[id]--
			correct++
		}
	}

	return correct
}

// calculateScore penalizes overlong hypotheses: every token past the
// reference length cancels out one correct match.
func (p *PERScorer) calculateScore(totals ScoreStats) float64 {
	correct := float64(totals[0])
	hypLen := float64(totals[1])
	refLen := float64(totals[2])

	if refLen == 0 {
		return 0
	}

	num := correct
	if over := hypLen - refLen; over > 0 {
		num -= over
	}

	return num / refLen
}
