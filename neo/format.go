// Package neo writes and reads the tab-separated tables accepted by
// neo4j-admin bulk import.
package neo

import (
	"strings"

	"github.com/g2gml/pg/pg"
	"github.com/g2gml/pg/schema"
)

const (
	cellSep = '\t'
	listSep = ";"
)

// Fixed leading columns of each table
var (
	NodeColumns = []string{"id:ID", ":LABEL"}
	EdgeColumns = []string{":START_ID", ":END_ID", ":TYPE"}
)

// NodeHeader returns the header row of the node table, newline included
func NodeHeader(s *schema.Schema) []byte {
	return header(NodeColumns, s)
}

// EdgeHeader returns the header row of the edge table, newline included
func EdgeHeader(s *schema.Schema) []byte {
	return header(EdgeColumns, s)
}

func header(fixed []string, s *schema.Schema) []byte {
	var b []byte
	for i, c := range fixed {
		if i > 0 {
			b = append(b, cellSep)
		}
		b = append(b, c...)
	}
	for _, f := range s.Fields() {
		b = append(b, cellSep)
		b = appendCell(b, f.Key)
		b = append(b, ':')
		b = append(b, string(f.Type)...)
	}
	return append(b, '\n')
}

// AppendNodeRow appends one node row shaped by s to buf
func AppendNodeRow(buf []byte, n *pg.Node, s *schema.Schema) []byte {
	buf = appendCell(buf, n.ID)
	buf = append(buf, cellSep)
	buf = appendCell(buf, strings.Join(n.Labels, listSep))
	buf = appendProperties(buf, &n.Properties, s)
	return append(buf, '\n')
}

// AppendEdgeRow appends one edge row shaped by s to buf. Only the first label
// is written, as the relationship type.
func AppendEdgeRow(buf []byte, e *pg.Edge, s *schema.Schema) []byte {
	buf = appendCell(buf, e.From)
	buf = append(buf, cellSep)
	buf = appendCell(buf, e.To)
	buf = append(buf, cellSep)
	buf = appendCell(buf, e.Type())
	buf = appendProperties(buf, &e.Properties, s)
	return append(buf, '\n')
}

func appendProperties(buf []byte, props *pg.Properties, s *schema.Schema) []byte {
	for _, key := range s.Keys() {
		buf = append(buf, cellSep)
		if values := props.Values(key); len(values) > 0 {
			buf = appendCell(buf, strings.Join(values, listSep))
		}
	}
	return buf
}

// Quote wraps cell in double quotes, doubling the quotes inside, if it holds
// a double quote or a tab. Other cells are returned unchanged.
func Quote(cell string) string {
	if !needsQuote(cell) {
		return cell
	}
	return string(appendQuoted(nil, cell))
}

func needsQuote(cell string) bool {
	return strings.ContainsAny(cell, "\"\t")
}

func appendCell(buf []byte, cell string) []byte {
	if !needsQuote(cell) {
		return append(buf, cell...)
	}
	return appendQuoted(buf, cell)
}

func appendQuoted(buf []byte, cell string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(cell); i++ {
		if cell[i] == '"' {
			buf = append(buf, '"')
		}
		buf = append(buf, cell[i])
	}
	return append(buf, '"')
}
