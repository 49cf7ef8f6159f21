package mert

// Vocabulary is a bidirectional token⇄id table shared by every scorer
// working on the same corpus. It is read-mostly: new ids are only created
// during statistics extraction, and extraction assumes a single writer.
// Ids start at 1 and are assigned in first-seen order.
type Vocabulary struct {
	ids  map[string]tokenID
	text []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]tokenID)}
}

// Encode returns the id for text, creating one if the token is unseen.
func (v *Vocabulary) Encode(text string) tokenID {
	if id, ok := v.ids[text]; ok {
		return id
	}

	v.text = append(v.text, text)
	id := tokenID(len(v.text))
	v.ids[text] = id

	return id
}

// Lookup returns the id for text without creating one.
func (v *Vocabulary) Lookup(text string) (tokenID, bool) {
	id, ok := v.ids[text]
	return id, ok
}

// Text resolves an id back to its token.
func (v *Vocabulary) Text(id tokenID) (string, bool) {
	if id < 1 || int(id) > len(v.text) {
		return "", false
	}

	return v.text[id-1], true
}

func (v *Vocabulary) Len() int {
	return len(v.text)
}
