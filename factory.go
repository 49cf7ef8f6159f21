package mert

import (
	"fmt"
	"strings"
)

// CreateScorer builds a metric by name. Names are matched
// case-insensitively; config is the metric's "key:value,..." string.
func CreateScorer(name, config string) (Scorer, error) {
	switch strings.ToUpper(name) {
	case "BLEU":
		return NewBLEUScorer(config)
	case "PER":
		return NewPERScorer(config)
	}

	return nil, fmt.Errorf("unknown scorer type: %s", name)
}
