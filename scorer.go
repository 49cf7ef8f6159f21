package mert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// factorDelim separates the annotation channels packed into one token,
// e.g. surface|lemma|pos.
const factorDelim = "|"

// Scorer is the contract every metric implements. A scorer owns its
// configuration and preprocessing pipeline and holds a non-owning
// reference to the statistics table it scores from; the table must
// outlive the scorer.
//
// There are no do-nothing defaults: a metric implements the full set or
// it is not a Scorer.
type Scorer interface {
	Name() string

	// NumberOfScores is the fixed width of every statistics entry this
	// metric produces. It is stable for the lifetime of the scorer.
	NumberOfScores() int

	// SetReferenceFiles supplies the reference texts. It must be called
	// before any call to PrepareStats.
	SetReferenceFiles(paths []string) error

	// PrepareStats preprocesses text, compares it against the references
	// for the given sentence and fills entry with exactly NumberOfScores
	// fields.
	PrepareStats(sentence int, text string, entry *ScoreStats) error

	// Score computes the corpus-level scalar for one candidate selected
	// per sentence.
	Score(candidates []int) (float64, error)

	// ScoreDiffs emits the baseline scalar for candidates followed by
	// one scalar per diff, each diff applied on top of the selection
	// state left by the previous one. The result always has
	// len(diffs)+1 elements.
	ScoreDiffs(candidates []int, diffs []Diff) ([]float64, error)

	// SetScoreData binds the scorer to a populated statistics table.
	// Scoring before this is an error.
	SetScoreData(data *ScoreData)

	SetFactors(spec string) error
	SetFilter(command string) error
}

// PrepareStatsString is the string-keyed variant of PrepareStats: it
// parses the sentence index and delegates.
func PrepareStatsString(s Scorer, sentence, text string, entry *ScoreStats) error {
	sid, err := strconv.Atoi(strings.TrimSpace(sentence))
	if err != nil {
		return fmt.Errorf("bad sentence index %q: %v", sentence, err)
	}

	return s.PrepareStats(sid, text, entry)
}

// scorerBase carries the state and provided behavior shared by every
// metric: the immutable config, factor selection, the external filter
// and the tokenize+encode step.
type scorerBase struct {
	name         string
	vocab        *Vocabulary
	config       map[string]string
	factors      []int
	filter       *preProcessFilter
	stem         stemmer
	scoreData    *ScoreData
	preserveCase bool
}

func newScorerBase(name, config string) (*scorerBase, error) {
	cfg, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	s := &scorerBase{
		name:   name,
		vocab:  NewVocabulary(),
		config: cfg,
	}

	s.preserveCase = s.getConfig("case", "true") == "true"

	if lang := s.getConfig("stem", ""); lang != "" {
		s.stem, err = newMertStemmer(lang)
		if err != nil {
			return nil, fmt.Errorf("stem config: %v", err)
		}
	}

	if spec := s.getConfig("factors", ""); spec != "" {
		if err := s.SetFactors(spec); err != nil {
			return nil, err
		}
	}

	if cmd := s.getConfig("filter", ""); cmd != "" {
		if err := s.SetFilter(cmd); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// parseConfig splits a "key:value,key:value" string into an immutable
// map. Unrecognized keys are kept for metric-specific use.
func parseConfig(config string) (map[string]string, error) {
	cfg := make(map[string]string)
	if config == "" {
		return cfg, nil
	}

	for _, pair := range strings.Split(config, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("malformed config entry %q", pair)
		}

		cfg[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	return cfg, nil
}

func (s *scorerBase) Name() string {
	return s.name
}

// Vocab returns the token table this scorer encodes through. It may be
// shared read-only with other scorers once extraction has finished.
func (s *scorerBase) Vocab() *Vocabulary {
	return s.vocab
}

// SetVocab binds an externally owned token table, replacing the default
// one. The table must outlive the scorer.
func (s *scorerBase) SetVocab(v *Vocabulary) {
	s.vocab = v
}

func (s *scorerBase) SetScoreData(data *ScoreData) {
	s.scoreData = data
}

// ReferenceSize returns the number of rows in the bound statistics
// table, or 0 if none is bound.
func (s *scorerBase) ReferenceSize() int {
	if s.scoreData == nil {
		return 0
	}

	return s.scoreData.Size()
}

// getConfig returns the value of a config variable, or def if it was
// not provided.
func (s *scorerBase) getConfig(key, def string) string {
	if v, ok := s.config[key]; ok {
		return v
	}

	return def
}

// SetFactors configures which annotation channels of each token are
// kept, as a comma-separated list of indices. It must be called before
// statistics extraction begins.
func (s *scorerBase) SetFactors(spec string) error {
	if spec == "" {
		s.factors = nil
		return nil
	}

	var factors []int
	for _, field := range strings.Split(spec, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: bad factor index %q", ErrInvalidFactor, field)
		}

		factors = append(factors, n)
	}

	s.factors = factors
	return nil
}

// SetFilter configures the external preprocessing command. An empty
// command clears the filter.
func (s *scorerBase) SetFilter(command string) error {
	if command == "" {
		s.filter = nil
		return nil
	}

	timeout := defaultFilterTimeout
	if v := s.getConfig("filter-timeout", ""); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("bad filter-timeout %q", v)
		}
		timeout = time.Duration(secs) * time.Second
	}

	s.filter = newPreProcessFilter(command, timeout)
	return nil
}

// applyFactors keeps only the configured factor fields of every token.
// A token missing a configured factor is an error; the whole sentence is
// scanned so the error names every offending token, not just the first.
func (s *scorerBase) applyFactors(sentence string) (string, error) {
	if len(s.factors) == 0 {
		return sentence, nil
	}

	tokens := strings.Fields(sentence)
	out := make([]string, len(tokens))
	var bad []string

	for i, token := range tokens {
		fields := strings.Split(token, factorDelim)

		kept := make([]string, 0, len(s.factors))
		ok := true
		for _, f := range s.factors {
			if f >= len(fields) {
				ok = false
				break
			}
			kept = append(kept, fields[f])
		}

		if !ok {
			bad = append(bad, token)
			continue
		}

		out[i] = strings.Join(kept, factorDelim)
	}

	if len(bad) > 0 {
		return "", fmt.Errorf("%w: tokens missing configured factors: %s",
			ErrInvalidFactor, strings.Join(bad, " "))
	}

	return strings.Join(out, " "), nil
}

// applyFilter pipes the sentence through the external filter, if one is
// configured.
func (s *scorerBase) applyFilter(sentence string) (string, error) {
	if s.filter == nil {
		return sentence, nil
	}

	return s.filter.Run(sentence)
}

// preprocessSentence is the per-sentence pipeline every metric runs on
// candidates and references: factor selection, then the external
// filter. The factor-then-filter order is load-bearing; stored
// statistics from previous runs depend on it.
func (s *scorerBase) preprocessSentence(sentence string) (string, error) {
	factored, err := s.applyFactors(sentence)
	if err != nil {
		return "", err
	}

	return s.applyFilter(factored)
}

// tokenizeAndEncode splits a preprocessed line on whitespace and
// resolves each token through the vocabulary. Tokens are NFC-normalized
// first; case is folded unless the config preserves it, and tokens are
// stemmed when a stem language is configured.
func (s *scorerBase) tokenizeAndEncode(line string) []tokenID {
	line = norm.NFC.String(line)
	if !s.preserveCase {
		line = strings.ToLower(line)
	}

	fields := strings.Fields(line)
	encoded := make([]tokenID, len(fields))
	for i, field := range fields {
		if s.stem != nil {
			field = s.stem.Stem(field)
		}

		encoded[i] = s.vocab.Encode(field)
	}

	return encoded
}
