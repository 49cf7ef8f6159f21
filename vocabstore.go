package mert

import (
	"database/sql"
	"fmt"
	"os"

	// Blank import loads go-sqlite3 support into database/sql.
	_ "github.com/mattn/go-sqlite3"
)

const vocabStoreVersion = "1"

// VocabStore persists a Vocabulary in sqlite so that token ids stay
// stable across tuning iterations. Ids in the store are the same ids the
// in-memory table hands out: token n is row n.
type VocabStore struct {
	db *sql.DB
	q  *vocabStmts
}

type vocabStmts struct {
	selectToken *sql.Stmt
	insertToken *sql.Stmt
	selectAll   *sql.Stmt
	maxID       *sql.Stmt
}

// OpenVocabStore opens the store at path, initializing the schema if the
// file does not exist yet.
func OpenVocabStore(path string) (*VocabStore, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}

		if err = initVocabStore(path); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("file:%s?cache=shared&mode=rwc", path)

	db, err := sql.Open("sqlite3", url)
	if err != nil {
		return nil, err
	}

	if err = vocabPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	var version string
	row := db.QueryRow("SELECT text FROM info WHERE attribute = 'version'")
	if err = row.Scan(&version); err != nil {
		db.Close()
		return nil, err
	}

	if version != vocabStoreVersion {
		db.Close()
		return nil, fmt.Errorf("cannot read version %s vocabulary store", version)
	}

	q, err := prepareVocabSql(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &VocabStore{db: db, q: q}, nil
}

func (s *VocabStore) Close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

func initVocabStore(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE info (
	attribute TEXT NOT NULL PRIMARY KEY,
	text TEXT NOT NULL)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
CREATE TABLE tokens (
	id INTEGER PRIMARY KEY,
	text TEXT UNIQUE NOT NULL)`)
	if err != nil {
		return err
	}

	_, err = db.Exec("INSERT INTO info (attribute, text) VALUES ('version', ?)",
		vocabStoreVersion)

	return err
}

func vocabPragmas(db *sql.DB) error {
	// Speed-for-reliability tradeoffs that help bulk extraction runs.
	for _, pragma := range []string{
		"PRAGMA journal_mode=truncate",
		"PRAGMA temp_store=memory",
		"PRAGMA synchronous=OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

func prepareVocabSql(db *sql.DB) (*vocabStmts, error) {
	q := new(vocabStmts)

	var err error

	q.selectToken, err = db.Prepare(
		"SELECT id FROM tokens WHERE text = ?")
	if err != nil {
		return nil, err
	}

	q.insertToken, err = db.Prepare(
		"INSERT INTO tokens (id, text) VALUES (?, ?)")
	if err != nil {
		return nil, err
	}

	q.selectAll, err = db.Prepare(
		"SELECT id, text FROM tokens ORDER BY id")
	if err != nil {
		return nil, err
	}

	q.maxID, err = db.Prepare(
		"SELECT COALESCE(MAX(id), 0) FROM tokens")
	if err != nil {
		return nil, err
	}

	return q, nil
}

// GetOrCreateToken returns the stored id for text, inserting the token at
// the next free id if it is unseen.
func (s *VocabStore) GetOrCreateToken(text string) (tokenID, error) {
	var id int64

	err := s.q.selectToken.QueryRow(text).Scan(&id)
	if err == nil {
		return tokenID(id), nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	if err = s.q.maxID.QueryRow().Scan(&id); err != nil {
		return 0, err
	}

	id++
	if _, err = s.q.insertToken.Exec(id, text); err != nil {
		return 0, err
	}

	return tokenID(id), nil
}

// Load reads the whole store into a fresh in-memory Vocabulary. Stored
// ids must be contiguous from 1; anything else means the store was not
// written by Save.
func (s *VocabStore) Load() (*Vocabulary, error) {
	rows, err := s.q.selectAll.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	v := NewVocabulary()
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}

		if got := v.Encode(text); got != tokenID(id) {
			return nil, fmt.Errorf("vocabulary store has gap at id %d", id)
		}
	}

	return v, rows.Err()
}

// Save writes every token in v that the store does not have yet. Ids are
// preserved, so v should have been loaded from (or started alongside)
// this store.
func (s *VocabStore) Save(v *Vocabulary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	insert := tx.Stmt(s.q.insertToken)

	var maxID int64
	if err = tx.Stmt(s.q.maxID).QueryRow().Scan(&maxID); err != nil {
		tx.Rollback()
		return err
	}

	for id := maxID + 1; id <= int64(v.Len()); id++ {
		text, ok := v.Text(tokenID(id))
		if !ok {
			tx.Rollback()
			return fmt.Errorf("vocabulary has no token for id %d", id)
		}

		if _, err = insert.Exec(id, text); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
