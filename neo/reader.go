package neo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/g2gml/pg/schema"
)

// Column is one header cell split into its name and type
type Column struct {
	Name string
	Type string
}

// Reader reads a table written by this package
type Reader struct {
	r      *csv.Reader
	header []Column
}

// NewReader returns a reader for a node or edge table
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.Comma = cellSep
	cr.LazyQuotes = true
	return &Reader{r: cr}
}

// Header reads the header row on first use and returns its columns
func (r *Reader) Header() ([]Column, error) {
	if r.header != nil {
		return r.header, nil
	}
	cells, err := r.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("table has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make([]Column, len(cells))
	for i, c := range cells {
		idx := strings.LastIndexByte(c, ':')
		if idx < 0 {
			return nil, fmt.Errorf("header column %d %q has no type", i+1, c)
		}
		cols[i] = Column{Name: c[:idx], Type: c[idx+1:]}
	}
	r.header = cols
	return cols, nil
}

// Read returns the cells of the next data row, or io.EOF
func (r *Reader) Read() ([]string, error) {
	if _, err := r.Header(); err != nil {
		return nil, err
	}
	return r.r.Read()
}

// Schema rebuilds the property schema from the header, skipping the fixed
// leading columns
func (r *Reader) Schema() (*schema.Schema, error) {
	cols, err := r.Header()
	if err != nil {
		return nil, err
	}
	s := schema.New()
	for _, c := range cols {
		if c.Name == "" || c.Type == "ID" {
			continue
		}
		s.Set(c.Name, schema.Type(c.Type))
	}
	return s, nil
}

// SplitList returns the values held by a property cell of type t. An empty
// cell holds no values.
func SplitList(cell string, t schema.Type) []string {
	if cell == "" {
		return nil
	}
	if !t.IsArray() {
		return []string{cell}
	}
	return strings.Split(cell, listSep)
}
