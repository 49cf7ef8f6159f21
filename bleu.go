package mert

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const bleuNgramOrder = 4

// Reference length strategies for the brevity penalty.
type refLengthStrategy int

const (
	refLenClosest refLengthStrategy = iota
	refLenShortest
	refLenAverage
)

// BLEUScorer computes BLEU over order-4 n-grams. Each statistics entry
// is [match_1, count_1, ..., match_4, count_4, ref_len]: matched and
// emitted n-gram counts per order plus the reference length used for
// the brevity penalty. Multiple references are handled by clipping
// candidate n-gram counts against the element-wise maximum of the
// per-reference counts.
//
// Config keys: reflen (closest|shortest|average, default closest), plus
// the general scorer keys.
type BLEUScorer struct {
	*statisticsScorer

	refLen refLengthStrategy
	refs   []bleuReference
}

type bleuReference struct {
	// counts holds, per n-gram, the maximum count any single reference
	// assigns to it.
	counts  map[string]int
	lengths []int
}

func NewBLEUScorer(config string) (*BLEUScorer, error) {
	b := new(BLEUScorer)

	ss, err := newStatisticsScorer("BLEU", config, b)
	if err != nil {
		return nil, err
	}
	b.statisticsScorer = ss

	switch v := b.getConfig("reflen", "closest"); v {
	case "closest":
		b.refLen = refLenClosest
	case "shortest":
		b.refLen = refLenShortest
	case "average":
		b.refLen = refLenAverage
	default:
		return nil, fmt.Errorf("unknown reflen strategy %q", v)
	}

	return b, nil
}

func (b *BLEUScorer) NumberOfScores() int {
	return 2*bleuNgramOrder + 1
}

// SetReferenceFiles loads one or more reference files, each holding one
// sentence per line. All files must cover the same number of sentences.
func (b *BLEUScorer) SetReferenceFiles(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no reference files given", ErrReferencesNotSet)
	}

	var refs []bleuReference

	for fi, path := range paths {
		lines, err := readLines(path)
		if err != nil {
			return err
		}

		if fi == 0 {
			refs = make([]bleuReference, len(lines))
			for i := range refs {
				refs[i].counts = make(map[string]int)
			}
		} else if len(lines) != len(refs) {
			return fmt.Errorf("reference file %s has %d sentences, want %d",
				path, len(lines), len(refs))
		}

		for sid, line := range lines {
			processed, err := b.preprocessSentence(line)
			if err != nil {
				return fmt.Errorf("%s line %d: %w", path, sid+1, err)
			}

			ids := b.tokenizeAndEncode(processed)
			refs[sid].lengths = append(refs[sid].lengths, len(ids))

			for key, count := range countNgrams(ids, bleuNgramOrder) {
				if count > refs[sid].counts[key] {
					refs[sid].counts[key] = count
				}
			}
		}
	}

	b.refs = refs
	clog.Infof("loaded %d reference sentences from %d files", len(refs), len(paths))

	return nil
}

// PrepareStats fills entry with the n-gram match statistics of text
// against the references for the given sentence.
func (b *BLEUScorer) PrepareStats(sentence int, text string, entry *ScoreStats) error {
	now := time.Now()

	if b.refs == nil {
		return ErrReferencesNotSet
	}

	if sentence < 0 || sentence >= len(b.refs) {
		return fmt.Errorf("sentence index %d out of range (have %d references)",
			sentence, len(b.refs))
	}

	processed, err := b.preprocessSentence(text)
	if err != nil {
		return err
	}

	ids := b.tokenizeAndEncode(processed)
	ref := &b.refs[sentence]

	out := make(ScoreStats, b.NumberOfScores())

	matches := make([]int, bleuNgramOrder)
	for key, count := range countNgrams(ids, bleuNgramOrder) {
		n := ngramLen(key)

		clipped := count
		if max := ref.counts[key]; clipped > max {
			clipped = max
		}

		matches[n-1] += clipped
	}

	for n := 1; n <= bleuNgramOrder; n++ {
		total := len(ids) - n + 1
		if total < 0 {
			total = 0
		}

		out[2*(n-1)] = ScoreStatsType(matches[n-1])
		out[2*(n-1)+1] = ScoreStatsType(total)
	}

	out[2*bleuNgramOrder] = ScoreStatsType(ref.pickLength(len(ids), b.refLen))

	*entry = out

	stats.Inc("prepare_stats", 1, 1.0)
	stats.Timing("prepare_stats.response_time",
		int64(time.Since(now)/time.Millisecond), 1.0)

	return nil
}

// calculateScore is log-domain BLEU with the standard brevity penalty.
// Any order with zero matches sends the whole score to zero.
func (b *BLEUScorer) calculateScore(totals ScoreStats) float64 {
	var logbleu float64

	for n := 0; n < bleuNgramOrder; n++ {
		correct := float64(totals[2*n])
		total := float64(totals[2*n+1])
		if correct <= 0 || total <= 0 {
			return 0
		}

		logbleu += math.Log(correct) - math.Log(total)
	}

	logbleu /= bleuNgramOrder

	hypLen := float64(totals[1])
	refLen := float64(totals[2*bleuNgramOrder])
	if hypLen > 0 && hypLen < refLen {
		logbleu += 1 - refLen/hypLen
	}

	return math.Exp(logbleu)
}

func (r *bleuReference) pickLength(hypLen int, strategy refLengthStrategy) int {
	switch strategy {
	case refLenShortest:
		min := r.lengths[0]
		for _, l := range r.lengths[1:] {
			if l < min {
				min = l
			}
		}
		return min

	case refLenAverage:
		var sum int
		for _, l := range r.lengths {
			sum += l
		}
		return int(math.Round(float64(sum) / float64(len(r.lengths))))
	}

	best := r.lengths[0]
	for _, l := range r.lengths[1:] {
		if abs(l-hypLen) < abs(best-hypLen) {
			best = l
		}
	}

	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}

// countNgrams counts every n-gram of length 1..order in ids. Keys embed
// the ids joined by ":", so n-grams of different lengths never collide.
func countNgrams(ids []tokenID, order int) map[string]int {
	counts := make(map[string]int)

	for n := 1; n <= order; n++ {
		for i := 0; i+n <= len(ids); i++ {
			counts[ngramKey(ids[i:i+n])]++
		}
	}

	return counts
}

func ngramKey(ids []tokenID) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}

	return b.String()
}

func ngramLen(key string) int {
	return strings.Count(key, ":") + 1
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(bufio.NewReader(f))
	for s.Scan() {
		lines = append(lines, s.Text())
	}

	return lines, s.Err()
}
