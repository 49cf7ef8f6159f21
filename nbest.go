package mert

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/phf/go-queue/queue"
)

// NbestEntry is one hypothesis from an n-best list in the usual
// "sid ||| hypothesis ||| features [||| score]" line format. Everything
// past the hypothesis is kept verbatim for the caller.
type NbestEntry struct {
	Sentence int
	Text     string
	Rest     []string
}

const nbestSep = " ||| "

func parseNbestLine(line string) (NbestEntry, error) {
	fields := strings.Split(line, nbestSep)
	if len(fields) < 2 {
		return NbestEntry{}, fmt.Errorf("bad n-best line %q", line)
	}

	sid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return NbestEntry{}, fmt.Errorf("bad sentence id in n-best line %q", line)
	}

	return NbestEntry{Sentence: sid, Text: fields[1], Rest: fields[2:]}, nil
}

// NbestReader walks an n-best list one sentence at a time. Hypotheses
// are buffered in a FIFO until the sentence id changes, then handed out
// as one batch. Lines for a sentence must be contiguous, and sentence
// ids must not decrease.
type NbestReader struct {
	s       *bufio.Scanner
	pending *queue.Queue
	carry   *NbestEntry

	sid   int
	batch []NbestEntry
	err   error
	done  bool
}

func NewNbestReader(r io.Reader) *NbestReader {
	return &NbestReader{
		s:       bufio.NewScanner(bufio.NewReader(r)),
		pending: queue.New(),
	}
}

// Next advances to the next sentence's batch. It returns false at the
// end of input or on error; check Err afterwards.
func (r *NbestReader) Next() bool {
	if r.err != nil || r.done {
		return false
	}

	if r.carry != nil {
		r.pending.PushBack(*r.carry)
		r.carry = nil
	}

	for r.s.Scan() {
		line := strings.TrimRight(r.s.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry, err := parseNbestLine(line)
		if err != nil {
			r.err = err
			return false
		}

		if r.pending.Len() > 0 {
			front := r.pending.Front().(NbestEntry)
			if entry.Sentence != front.Sentence {
				if entry.Sentence < front.Sentence {
					r.err = fmt.Errorf("n-best sentence id went backwards: %d after %d",
						entry.Sentence, front.Sentence)
					return false
				}

				r.carry = &entry
				return r.flush()
			}
		}

		r.pending.PushBack(entry)
	}

	if err := r.s.Err(); err != nil {
		r.err = err
		return false
	}

	r.done = true
	return r.flush()
}

func (r *NbestReader) flush() bool {
	if r.pending.Len() == 0 {
		return false
	}

	r.batch = r.batch[:0]
	for r.pending.Len() > 0 {
		r.batch = append(r.batch, r.pending.PopFront().(NbestEntry))
	}

	r.sid = r.batch[0].Sentence
	return true
}

// Batch returns the current sentence id and its hypotheses. The slice
// is only valid until the next call to Next.
func (r *NbestReader) Batch() (int, []NbestEntry) {
	return r.sid, r.batch
}

func (r *NbestReader) Err() error {
	return r.err
}

// ExtractScoreData runs statistics extraction over a whole n-best list.
// References are looked up by the true sentence id, but table rows are
// assigned in n-best order, so a list that skips sentence ids still
// produces a dense table.
func ExtractScoreData(s Scorer, r *NbestReader) (*ScoreData, error) {
	data := NewScoreData(s)

	row := 0
	for r.Next() {
		sid, batch := r.Batch()
		for _, hyp := range batch {
			var entry ScoreStats
			if err := s.PrepareStats(sid, hyp.Text, &entry); err != nil {
				return nil, fmt.Errorf("sentence %d: %w", sid, err)
			}

			if err := data.Add(entry, row); err != nil {
				return nil, err
			}
		}
		row++
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	return data, nil
}
