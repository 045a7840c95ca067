package pg

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SyntaxError reports the farthest position a line could be parsed to and the
// tokens that would have allowed parsing to continue there.
type SyntaxError struct {
	Line     int
	Column   int
	Offset   int
	Expected []string
	Found    string // empty at end of input
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message())
}

// Message describes the failure without its position
func (e *SyntaxError) Message() string {
	found := "end of input"
	if e.Found != "" {
		found = strconv.Quote(e.Found)
	}
	return fmt.Sprintf("expected %s but %s found", describeExpected(e.Expected), found)
}

func describeExpected(expected []string) string {
	switch len(expected) {
	case 0:
		return "nothing"
	case 1:
		return expected[0]
	}
	return strings.Join(expected[:len(expected)-1], ", ") + " or " + expected[len(expected)-1]
}

func sortedUnique(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i > 0 && s == out[n-1] {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}
