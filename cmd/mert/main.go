package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
)

import (
	"github.com/cactus/go-statsd-client/statsd"

	mert "github.com/CUNI-Khresmoi/CUNI-Khresmoi-Moses"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

var (
	statsdserver = flag.String("statsd.server", "", "statsd server (host:port)")
	statsdname   = flag.String("statsd.name", "mert", "statsd name")
)

var (
	scorerType   = flag.String("scorer", "BLEU", "metric name (BLEU, PER)")
	scorerConfig = flag.String("config", "", "metric config (key:value,...)")
	refFiles     = flag.String("refs", "", "comma-separated reference files")
	nbestFile    = flag.String("nbest", "", "n-best list file")
	scoresFile   = flag.String("scores", "scores.data", "score data file")
	vocabFile    = flag.String("vocab", "", "sqlite vocabulary store")
	selection    = flag.String("selection", "", "candidate selection file (one index per line)")
)

// vocabScorer is satisfied by every metric built on the scorer base.
type vocabScorer interface {
	Vocab() *mert.Vocabulary
	SetVocab(v *mert.Vocabulary)
}

func extract(s mert.Scorer) error {
	if *refFiles == "" {
		return fmt.Errorf("extract needs -refs")
	}
	if *nbestFile == "" {
		return fmt.Errorf("extract needs -nbest")
	}

	var store *mert.VocabStore
	if *vocabFile != "" {
		var err error
		store, err = mert.OpenVocabStore(*vocabFile)
		if err != nil {
			return err
		}
		defer store.Close()

		vocab, err := store.Load()
		if err != nil {
			return err
		}

		s.(vocabScorer).SetVocab(vocab)
	}

	if err := s.SetReferenceFiles(strings.Split(*refFiles, ",")); err != nil {
		return err
	}

	f, err := os.Open(*nbestFile)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := mert.ExtractScoreData(s, mert.NewNbestReader(f))
	if err != nil {
		return err
	}

	if err := data.Save(*scoresFile); err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(s.(vocabScorer).Vocab()); err != nil {
			return err
		}
	}

	fmt.Printf("wrote %s (%d sentences)\n", *scoresFile, data.Size())
	return nil
}

func eval(s mert.Scorer) error {
	data, err := mert.LoadScoreData(s, *scoresFile)
	if err != nil {
		return err
	}

	s.SetScoreData(data)

	candidates := make([]int, data.Size())
	if *selection != "" {
		candidates, err = readSelection(*selection)
		if err != nil {
			return err
		}

		if len(candidates) != data.Size() {
			return fmt.Errorf("selection has %d entries, score data has %d sentences",
				len(candidates), data.Size())
		}
	}

	score, err := s.Score(candidates)
	if err != nil {
		return err
	}

	fmt.Printf("%s = %f\n", s.Name(), score)
	return nil
}

func readSelection(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var candidates []int
	sc := bufio.NewScanner(bufio.NewReader(f))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("bad candidate index %q", line)
		}

		candidates = append(candidates, n)
	}

	return candidates, sc.Err()
}

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatalf("Creating cpu profile: %s", err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *statsdserver != "" {
		s, err := statsd.New(*statsdserver, *statsdname)
		if err != nil {
			log.Fatalf("Initializing statsd: %s", err)
		}

		mert.SetStatter(s)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: mert [flags] extract|eval")
		os.Exit(1)
	}

	s, err := mert.CreateScorer(*scorerType, *scorerConfig)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd := args[0]; cmd {
	case "extract":
		err = extract(s)
	case "eval":
		err = eval(s)
	default:
		log.Fatalf("Unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatal(err)
	}
}
