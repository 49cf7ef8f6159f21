package mert

import (
	"regexp"
	"strings"

	"bitbucket.org/tebeka/snowball"
)

type stemmer interface {
	Stem(word string) string
}

// Wrap a snowball stemmer in one that leaves punctuation tokens alone.
type mertStemmer struct {
	sub   *snowball.Stemmer
	words *regexp.Regexp
}

func newMertStemmer(lang string) (*mertStemmer, error) {
	s, err := snowball.New(lang)
	if err != nil {
		return nil, err
	}

	return &mertStemmer{sub: s, words: regexp.MustCompile(`\w`)}, nil
}

func (s *mertStemmer) Stem(token string) string {
	// Only tokens with a word character go through the snowball stemmer.
	if s.words.FindString(token) == "" {
		return token
	}

	return s.sub.Stem(strings.ToLower(token))
}
