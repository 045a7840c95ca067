package staging

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/g2gml/pg/pg"
)

// sqliteBatchSize is the number of inserts committed together
const sqliteBatchSize = 1000

const sqliteSchema = `
CREATE TABLE records (
	seq     INTEGER PRIMARY KEY,
	payload BLOB NOT NULL
)`

// sqliteStore stages encoded records in a scratch SQLite database
type sqliteStore struct {
	db      *sql.DB
	path    string
	tx      *sql.Tx
	insert  *sql.Stmt
	pending int
	count   int
	closed  bool
	log     *logrus.Entry
}

func openSQLiteStore(dir string, worker int, log *logrus.Entry) (*sqliteStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("pg2neo-w%d-%s.db", worker, uuid.NewString()))
	log = log.WithFields(logrus.Fields{
		"component": "SQLiteStore",
		"worker":    worker,
		"path":      path,
	})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging database: %w", err)
	}
	// the pending transaction and the replay query share one connection
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			os.Remove(path)
			log.WithError(err).Error("Failed to initialize staging database")
			return nil, fmt.Errorf("failed to initialize staging database: %w", err)
		}
	}
	log.Debug("Staging database created")

	return &sqliteStore{db: db, path: path, log: log}, nil
}

// Append inserts one record, opening a new transaction when none is pending
func (s *sqliteStore) Append(rec pg.Record) error {
	if s.closed {
		return os.ErrClosed
	}
	data, err := pg.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if s.tx == nil {
		if s.tx, err = s.db.Begin(); err != nil {
			return fmt.Errorf("failed to begin staging transaction: %w", err)
		}
		if s.insert, err = s.tx.Prepare("INSERT INTO records (payload) VALUES (?)"); err != nil {
			s.rollback()
			return fmt.Errorf("failed to prepare staging insert: %w", err)
		}
	}
	if _, err := s.insert.Exec(data); err != nil {
		return fmt.Errorf("failed to stage record: %w", err)
	}
	s.count++
	s.pending++
	if s.pending >= sqliteBatchSize {
		return s.commit()
	}
	return nil
}

func (s *sqliteStore) commit() error {
	if s.tx == nil {
		return nil
	}
	s.insert.Close()
	err := s.tx.Commit()
	s.tx, s.insert, s.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit staged records: %w", err)
	}
	return nil
}

func (s *sqliteStore) rollback() {
	if s.tx == nil {
		return
	}
	if s.insert != nil {
		s.insert.Close()
	}
	s.tx.Rollback()
	s.tx, s.insert, s.pending = nil, nil, 0
}

// Replay commits pending inserts and decodes records in insertion order
func (s *sqliteStore) Replay(fn func(pg.Record) error) error {
	if s.closed {
		return os.ErrClosed
	}
	if err := s.commit(); err != nil {
		return err
	}

	rows, err := s.db.Query("SELECT seq, payload FROM records ORDER BY seq")
	if err != nil {
		return fmt.Errorf("failed to query staged records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return fmt.Errorf("failed to scan staged record: %w", err)
		}
		rec, err := pg.UnmarshalRecord(payload)
		if err != nil {
			return fmt.Errorf("failed to decode staged record %d: %w", seq, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Len returns the number of appended records
func (s *sqliteStore) Len() int {
	return s.count
}

// Close drops the database and removes its file
func (s *sqliteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.rollback()
	err := s.db.Close()
	for _, p := range []string{s.path, s.path + "-journal"} {
		if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to release staging database")
		return err
	}
	s.log.WithField("records", s.count).Debug("Staging database released")
	return nil
}
