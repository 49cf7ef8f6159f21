package mert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ScoreStats is one sufficient-statistics entry: a fixed-width numeric
// summary of a candidate vs. reference comparison. The core never
// interprets the fields; only the metric that produced an entry knows
// what they mean. Every entry produced for a given metric has exactly
// NumberOfScores() fields.
type ScoreStats []ScoreStatsType

func (s ScoreStats) Clone() ScoreStats {
	return append(ScoreStats(nil), s...)
}

func (s ScoreStats) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}

	return strings.Join(parts, " ")
}

func parseScoreStats(line string, width int) (ScoreStats, error) {
	fields := strings.Fields(line)
	if len(fields) != width {
		return nil, fmt.Errorf("%w: entry has %d fields, want %d",
			ErrStatsSizeMismatch, len(fields), width)
	}

	entry := make(ScoreStats, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad statistic %q: %v", f, err)
		}
		entry[i] = ScoreStatsType(v)
	}

	return entry, nil
}

// addStats accumulates entry into totals element-wise. Mismatched widths
// are fatal for the operation; they must never be silently combined.
func addStats(totals, entry ScoreStats) error {
	if len(entry) != len(totals) {
		return fmt.Errorf("%w: entry has %d fields, want %d",
			ErrStatsSizeMismatch, len(entry), len(totals))
	}

	for k := range totals {
		totals[k] += entry[k]
	}

	return nil
}

// ScoreArray holds the entries for one sentence, one per candidate in
// its n-best list.
type ScoreArray struct {
	entries []ScoreStats
}

func (a *ScoreArray) Add(entry ScoreStats) {
	a.entries = append(a.entries, entry)
}

func (a *ScoreArray) Get(candidate int) (ScoreStats, error) {
	if candidate < 0 || candidate >= len(a.entries) {
		return nil, fmt.Errorf("candidate index %d out of range (have %d)",
			candidate, len(a.entries))
	}

	return a.entries[candidate], nil
}

func (a *ScoreArray) Size() int {
	return len(a.entries)
}

// ScoreData is the corpus-level statistics table: one ScoreArray per
// source sentence. The row count is fixed once extraction finishes;
// scorers hold a non-owning reference and must not outlive it.
type ScoreData struct {
	name   string
	width  int
	arrays []*ScoreArray
}

// NewScoreData makes an empty table for the given metric.
func NewScoreData(scorer Scorer) *ScoreData {
	return &ScoreData{name: scorer.Name(), width: scorer.NumberOfScores()}
}

func (d *ScoreData) Name() string {
	return d.name
}

func (d *ScoreData) Size() int {
	return len(d.arrays)
}

// Add appends entry to the row for sentence. Rows are created in order:
// sentence may name an existing row or the next new one.
func (d *ScoreData) Add(entry ScoreStats, sentence int) error {
	if len(entry) != d.width {
		return fmt.Errorf("%w: entry has %d fields, want %d",
			ErrStatsSizeMismatch, len(entry), d.width)
	}

	switch {
	case sentence < len(d.arrays):
		// existing row
	case sentence == len(d.arrays):
		d.arrays = append(d.arrays, new(ScoreArray))
	default:
		return fmt.Errorf("sentence index %d out of order (have %d rows)",
			sentence, len(d.arrays))
	}

	d.arrays[sentence].Add(entry)
	return nil
}

func (d *ScoreData) Get(sentence, candidate int) (ScoreStats, error) {
	if sentence < 0 || sentence >= len(d.arrays) {
		return nil, fmt.Errorf("sentence index %d out of range (have %d)",
			sentence, len(d.arrays))
	}

	return d.arrays[sentence].Get(candidate)
}

const (
	scoresTxtBegin = "SCORES_TXT_BEGIN_0"
	scoresTxtEnd   = "SCORES_TXT_END_0"
)

// Save writes the table as plain text, one block per sentence:
//
//	SCORES_TXT_BEGIN_0 <sid> <count> <width> <name>
//	<one line of space-separated integers per candidate>
//	SCORES_TXT_END_0
func (d *ScoreData) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for sid, array := range d.arrays {
		fmt.Fprintf(w, "%s %d %d %d %s\n",
			scoresTxtBegin, sid, array.Size(), d.width, d.name)

		for _, entry := range array.entries {
			fmt.Fprintln(w, entry.String())
		}

		fmt.Fprintln(w, scoresTxtEnd)
	}

	return w.Flush()
}

// LoadScoreData reads a table written by Save and checks it against the
// scorer's name and entry width.
func LoadScoreData(scorer Scorer, path string) (*ScoreData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := NewScoreData(scorer)
	if err := d.load(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return d, nil
}

func (d *ScoreData) load(r io.Reader) error {
	s := bufio.NewScanner(r)

	for s.Scan() {
		header := strings.Fields(s.Text())
		if len(header) != 5 || header[0] != scoresTxtBegin {
			return fmt.Errorf("bad score data header %q", s.Text())
		}

		sid, err := strconv.Atoi(header[1])
		if err != nil {
			return fmt.Errorf("bad sentence id %q", header[1])
		}

		count, err := strconv.Atoi(header[2])
		if err != nil {
			return fmt.Errorf("bad candidate count %q", header[2])
		}

		width, err := strconv.Atoi(header[3])
		if err != nil {
			return fmt.Errorf("bad entry width %q", header[3])
		}

		if width != d.width {
			return fmt.Errorf("%w: file has width %d, scorer wants %d",
				ErrStatsSizeMismatch, width, d.width)
		}

		if name := header[4]; name != d.name {
			return fmt.Errorf("score data is for metric %s, not %s",
				name, d.name)
		}

		for i := 0; i < count; i++ {
			if !s.Scan() {
				return fmt.Errorf("sentence %d: truncated block", sid)
			}

			entry, err := parseScoreStats(s.Text(), width)
			if err != nil {
				return fmt.Errorf("sentence %d: %w", sid, err)
			}

			if err := d.Add(entry, sid); err != nil {
				return err
			}
		}

		if !s.Scan() || s.Text() != scoresTxtEnd {
			return fmt.Errorf("sentence %d: missing %s", sid, scoresTxtEnd)
		}
	}

	return s.Err()
}
