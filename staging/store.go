// Package staging keeps the records a worker parsed so it can replay them
// without parsing its shard a second time.
package staging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/g2gml/pg/pg"
)

// Kind selects the backing store
type Kind string

const (
	// None disables staging; the caller keeps raw lines instead
	None   Kind = "none"
	File   Kind = "file"
	SQLite Kind = "sqlite"
)

// ErrUnknownKind is returned by ParseKind and Open for an unsupported kind
var ErrUnknownKind = errors.New("unknown staging kind")

// ParseKind converts a configuration value to a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case None, File, SQLite:
		return k, nil
	case "":
		return File, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Store is a private append-only record log owned by one worker
type Store interface {
	// Append stages one record
	Append(rec pg.Record) error
	// Replay calls fn for every staged record in append order
	Replay(fn func(pg.Record) error) error
	// Len returns the number of staged records
	Len() int
	// Close releases the store and deletes its backing data. It is safe to
	// call more than once.
	Close() error
}

// Open creates an empty store of the given kind under dir. An empty dir means
// the system temporary directory. The store logs through log, or through the
// standard logger when log is nil.
func Open(kind Kind, dir string, worker int, log *logrus.Entry) (Store, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	var (
		s   Store
		err error
	)
	switch kind {
	case File:
		s, err = openFileStore(dir, worker, log)
	case SQLite:
		s, err = openSQLiteStore(dir, worker, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
