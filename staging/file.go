package staging

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/g2gml/pg/pg"
)

const (
	frameHeaderSize = 4
	writeBufferSize = 64 << 10
	// maxFrameSize bounds a single staged record read back from disk
	maxFrameSize = 1 << 30
)

// fileStore appends length-framed binary records to a scratch file
type fileStore struct {
	file   *os.File
	w      *bufio.Writer
	count  int
	size   int64
	closed bool
	log    *logrus.Entry
}

func openFileStore(dir string, worker int, log *logrus.Entry) (*fileStore, error) {
	log = log.WithFields(logrus.Fields{
		"component": "FileStore",
		"worker":    worker,
	})

	pattern := fmt.Sprintf("pg2neo-w%d-%s-*.stage", worker, uuid.NewString())
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		log.WithError(err).Error("Failed to create staging file")
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	log = log.WithField("path", file.Name())
	log.Debug("Staging file created")

	return &fileStore{
		file: file,
		w:    bufio.NewWriterSize(file, writeBufferSize),
		log:  log,
	}, nil
}

// Append writes one frame: a little-endian uint32 length and the encoded record
func (fs *fileStore) Append(rec pg.Record) error {
	if fs.closed {
		return os.ErrClosed
	}
	data, err := pg.MarshalRecord(rec)
	if err != nil {
		return err
	}
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := fs.w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write staging frame: %w", err)
	}
	if _, err := fs.w.Write(data); err != nil {
		return fmt.Errorf("failed to write staging frame: %w", err)
	}
	fs.count++
	fs.size += int64(frameHeaderSize + len(data))
	return nil
}

// Replay flushes pending frames and decodes the file from offset zero
func (fs *fileStore) Replay(fn func(pg.Record) error) error {
	if fs.closed {
		return os.ErrClosed
	}
	if err := fs.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush staging file: %w", err)
	}

	r := bufio.NewReaderSize(io.NewSectionReader(fs.file, 0, fs.size), writeBufferSize)
	var header [frameHeaderSize]byte
	var data []byte
	for n := 0; ; n++ {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				if n != fs.count {
					return fmt.Errorf("staging file holds %d records, expected %d", n, fs.count)
				}
				return nil
			}
			return fmt.Errorf("failed to read frame %d: %w", n, err)
		}
		length := binary.LittleEndian.Uint32(header[:])
		if length > maxFrameSize {
			return fmt.Errorf("frame %d too large: %d bytes", n, length)
		}
		if cap(data) < int(length) {
			data = make([]byte, length)
		}
		data = data[:length]
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("failed to read frame %d: %w", n, err)
		}
		rec, err := pg.UnmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("failed to decode frame %d: %w", n, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Len returns the number of appended records
func (fs *fileStore) Len() int {
	return fs.count
}

// Close closes and removes the scratch file
func (fs *fileStore) Close() error {
	if fs.closed {
		return nil
	}
	fs.closed = true
	name := fs.file.Name()
	err := fs.file.Close()
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	if err != nil {
		fs.log.WithError(err).Error("Failed to release staging file")
		return err
	}
	fs.log.WithField("records", fs.count).Debug("Staging file released")
	return nil
}
