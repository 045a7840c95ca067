package pg

import (
	"strings"
	"unicode/utf8"
)

// Expectation descriptions reported in a SyntaxError
const (
	expectWhitespace  = `[ \t]`
	expectBareChar    = `[^: \t\r\n]`
	expectColon       = `":"`
	expectHash        = `"#"`
	expectNewline     = `[\r\n]`
	expectEnd         = "end of input"
	expectDoubleQuote = `"\""`
	expectSingleQuote = `"'"`
	expectBackslash   = `"\\"`
	expectEscape      = `["'\\bfnrtv]`
	expectUndirected  = `"--"`
	expectDirected    = `"->"`
	expectAnyChar     = "any character"
)

// parser reads one line of the property-graph text format. It backtracks on
// failed alternatives and remembers the farthest failure for error reporting.
type parser struct {
	input    string
	pos      int
	failPos  int
	expected []string
}

// Parse converts one line into a node, an edge, or an empty record for lines
// holding only whitespace and comments. The line terminator may be present or
// already stripped.
func Parse(line string) (Record, error) {
	p := &parser{input: line}
	rec, ok := p.record()
	if !ok {
		return Record{}, p.syntaxError()
	}
	return rec, nil
}

// record parses the full line
func (p *parser) record() (Record, bool) {
	p.commentLines()

	save := p.pos
	p.skipWS()
	p.comment()
	if p.eof() {
		return Record{}, true
	}
	p.pos = save

	p.skipWS()
	first, ok := p.value()
	if !ok {
		return Record{}, false
	}

	var rec Record
	var labels *[]string
	var props *Properties
	if edge := p.edgeTail(first); edge != nil {
		rec.Edge = edge
		labels, props = &edge.Labels, &edge.Properties
	} else {
		rec.Node = &Node{ID: first}
		labels, props = &rec.Node.Labels, &rec.Node.Properties
	}

	*labels = p.labels()
	p.properties(props)
	p.inlineComment()
	if !p.endOfLine() {
		return Record{}, false
	}

	p.commentLines()
	p.skipWS()
	p.comment()
	if !p.eof() {
		p.fail(expectEnd)
		return Record{}, false
	}
	return rec, true
}

// edgeTail tries `WS+ Direction WS+ Value` after the first value and rewinds on failure
func (p *parser) edgeTail(from string) *Edge {
	save := p.pos
	if p.ws1() {
		if dir, ok := p.direction(); ok && p.ws1() {
			if to, ok := p.value(); ok {
				return &Edge{From: from, To: to, Direction: dir}
			}
		}
	}
	p.pos = save
	return nil
}

// labels reads zero or more `WS* ":" WS* Value`
func (p *parser) labels() []string {
	var labels []string
	for {
		save := p.pos
		p.skipWS()
		if !p.literal(":", expectColon) {
			p.pos = save
			return labels
		}
		p.skipWS()
		v, ok := p.value()
		if !ok {
			p.pos = save
			return labels
		}
		labels = append(labels, v)
	}
}

// properties reads zero or more `WS* Value WS* ":" WS* Value`
func (p *parser) properties(props *Properties) {
	for {
		save := p.pos
		p.skipWS()
		if key, ok := p.value(); ok {
			p.skipWS()
			if p.literal(":", expectColon) {
				p.skipWS()
				if v, ok := p.value(); ok {
					props.Add(key, v)
					continue
				}
			}
		}
		p.pos = save
		return
	}
}

// direction reads "--" or "->"
func (p *parser) direction() (Direction, bool) {
	if p.literal("--", expectUndirected) {
		return Undirected, true
	}
	if p.literal("->", expectDirected) {
		return Directed, true
	}
	return Undirected, false
}

// value reads a quoted or bare value
func (p *parser) value() (string, bool) {
	if !p.eof() {
		switch c := p.input[p.pos]; c {
		case '"', '\'':
			return p.quoted(c)
		}
	}
	start := p.pos
	for !p.eof() && isBareChar(p.input[p.pos]) {
		p.pos++
	}
	p.fail(expectBareChar)
	if p.pos == start {
		p.fail(expectDoubleQuote)
		p.fail(expectSingleQuote)
		return "", false
	}
	return p.input[start:p.pos], true
}

// quoted reads a value enclosed in q, resolving escape sequences
func (p *parser) quoted(q byte) (string, bool) {
	start := p.pos
	p.pos++
	from := p.pos
	var sb *strings.Builder
	for !p.eof() {
		c := p.input[p.pos]
		if c == q {
			s := p.input[from:p.pos]
			p.pos++
			if sb == nil {
				return s, true
			}
			sb.WriteString(s)
			return sb.String(), true
		}
		if c != '\\' {
			p.pos++
			continue
		}
		if sb == nil {
			sb = &strings.Builder{}
		}
		sb.WriteString(p.input[from:p.pos])
		p.pos++
		r, ok := p.escape()
		if !ok {
			p.pos = start
			return "", false
		}
		sb.WriteByte(r)
		from = p.pos
	}
	if q == '"' {
		p.fail(expectDoubleQuote)
	} else {
		p.fail(expectSingleQuote)
	}
	p.fail(expectBackslash)
	p.fail(expectAnyChar)
	p.pos = start
	return "", false
}

// escape reads the character following a backslash
func (p *parser) escape() (byte, bool) {
	if !p.eof() {
		var r byte
		switch p.input[p.pos] {
		case '\'', '"', '\\':
			r = p.input[p.pos]
		case 'b':
			r = '\b'
		case 'f':
			r = '\f'
		case 'n':
			r = '\n'
		case 'r':
			r = '\r'
		case 't':
			r = '\t'
		case 'v':
			r = '\v'
		}
		if r != 0 {
			p.pos++
			return r, true
		}
	}
	p.fail(expectEscape)
	return 0, false
}

// inlineComment consumes an optional trailing `WS* "#" non-newline*`
func (p *parser) inlineComment() {
	save := p.pos
	p.skipWS()
	if !p.comment() {
		p.pos = save
	}
}

// comment consumes "#" and the rest of the physical line
func (p *parser) comment() bool {
	if !p.literal("#", expectHash) {
		return false
	}
	for !p.eof() && !isNewline(p.input[p.pos]) {
		p.pos++
	}
	return true
}

// commentLines skips blank and comment-only physical lines that end in a newline
func (p *parser) commentLines() {
	for {
		save := p.pos
		p.skipWS()
		p.comment()
		if !p.newline() {
			p.pos = save
			return
		}
	}
}

// endOfLine accepts end of input or a single newline character
func (p *parser) endOfLine() bool {
	if p.eof() {
		return true
	}
	if p.newline() {
		return true
	}
	p.fail(expectEnd)
	return false
}

func (p *parser) newline() bool {
	if !p.eof() && isNewline(p.input[p.pos]) {
		p.pos++
		return true
	}
	p.fail(expectNewline)
	return false
}

// ws1 requires at least one whitespace character
func (p *parser) ws1() bool {
	return p.skipWS() > 0
}

func (p *parser) skipWS() int {
	start := p.pos
	for !p.eof() && isWhitespace(p.input[p.pos]) {
		p.pos++
	}
	p.fail(expectWhitespace)
	return p.pos - start
}

func (p *parser) literal(s, expectation string) bool {
	if strings.HasPrefix(p.input[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	p.fail(expectation)
	return false
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

// fail records an expectation at the current position if it is the farthest seen
func (p *parser) fail(expectation string) {
	if p.pos < p.failPos {
		return
	}
	if p.pos > p.failPos {
		p.failPos = p.pos
		p.expected = p.expected[:0]
	}
	p.expected = append(p.expected, expectation)
}

func (p *parser) syntaxError() *SyntaxError {
	line, col := 1, 1
	for _, r := range p.input[:p.failPos] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	found := ""
	if p.failPos < len(p.input) {
		r, _ := utf8.DecodeRuneInString(p.input[p.failPos:])
		found = string(r)
	}
	return &SyntaxError{
		Line:     line,
		Column:   col,
		Offset:   p.failPos,
		Expected: sortedUnique(p.expected),
		Found:    found,
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isNewline(c byte) bool {
	return c == '\r' || c == '\n'
}

func isBareChar(c byte) bool {
	return c != ':' && !isWhitespace(c) && !isNewline(c)
}
