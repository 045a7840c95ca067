package pg

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// props builds Properties from alternating key/value arguments
func props(kv ...string) Properties {
	var p Properties
	for i := 0; i+1 < len(kv); i += 2 {
		p.Add(kv[i], kv[i+1])
	}
	return p
}

var recordOpts = cmp.Options{
	cmp.AllowUnexported(Properties{}),
	cmpopts.EquateEmpty(),
}

func TestParseNodes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Node
	}{
		{
			name: "labels and properties",
			line: `alice :Person name:"Ann Lee" age:30`,
			want: Node{ID: "alice", Labels: []string{"Person"}, Properties: props("name", "Ann Lee", "age", "30")},
		},
		{
			name: "bare id only",
			line: "n1",
			want: Node{ID: "n1"},
		},
		{
			name: "repeated key collapses into a list",
			line: "n1 tag:x tag:y other:z tag:w",
			want: Node{ID: "n1", Properties: props("tag", "x", "tag", "y", "other", "z", "tag", "w")},
		},
		{
			name: "several labels keep their order",
			line: "n1 :B :A\t: C",
			want: Node{ID: "n1", Labels: []string{"B", "A", "C"}},
		},
		{
			name: "label attached to id",
			line: "n1:Person",
			want: Node{ID: "n1", Labels: []string{"Person"}},
		},
		{
			name: "quoted id and key",
			line: `"node one" "first name" : 'Ann'`,
			want: Node{ID: "node one", Properties: props("first name", "Ann")},
		},
		{
			name: "escapes inside quotes",
			line: `n1 s:"a\"b\\c\td\ne" t:'it\'s' u:"\b\f\r\v"`,
			want: Node{ID: "n1", Properties: props("s", "a\"b\\c\td\ne", "t", "it's", "u", "\b\f\r\v")},
		},
		{
			name: "inline comment",
			line: "n1 :Person name:x # trailing note",
			want: Node{ID: "n1", Labels: []string{"Person"}, Properties: props("name", "x")},
		},
		{
			name: "leading whitespace and trailing newline",
			line: "  n1 k:v\r\n",
			want: Node{ID: "n1", Properties: props("k", "v")},
		},
		{
			name: "comment lines around the record",
			line: "# header\n\nn1 k:v\n# footer",
			want: Node{ID: "n1", Properties: props("k", "v")},
		},
		{
			name: "hash inside a bare value",
			line: "n#1 k:v#2",
			want: Node{ID: "n#1", Properties: props("k", "v#2")},
		},
		{
			name: "unicode values",
			line: "ノード :人 名前:\"山田 太郎\"",
			want: Node{ID: "ノード", Labels: []string{"人"}, Properties: props("名前", "山田 太郎")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			require.NoError(t, err)
			require.NotNil(t, rec.Node)
			assert.Nil(t, rec.Edge)
			if diff := cmp.Diff(tt.want, *rec.Node, recordOpts); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseEdges(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Edge
	}{
		{
			name: "directed with label and property",
			line: "alice -> bob :KNOWS since:2020",
			want: Edge{From: "alice", To: "bob", Direction: Directed, Labels: []string{"KNOWS"}, Properties: props("since", "2020")},
		},
		{
			name: "undirected without labels",
			line: "a -- b",
			want: Edge{From: "a", To: "b", Direction: Undirected},
		},
		{
			name: "quoted endpoints and tabs",
			line: "\"a b\"\t->\t'c d' :R :S w:1 w:2",
			want: Edge{From: "a b", To: "c d", Direction: Directed, Labels: []string{"R", "S"}, Properties: props("w", "1", "w", "2")},
		},
		{
			name: "comment after edge",
			line: "a -> b # note",
			want: Edge{From: "a", To: "b", Direction: Directed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			require.NoError(t, err)
			require.NotNil(t, rec.Edge)
			assert.Nil(t, rec.Node)
			if diff := cmp.Diff(tt.want, *rec.Edge, recordOpts); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, line := range []string{"", "   ", "\t", "# comment", "   # indented comment", "#", "\n", "# a\n# b\n"} {
		rec, err := Parse(line)
		require.NoError(t, err, "line %q", line)
		assert.True(t, rec.Empty(), "line %q", line)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		column   int
		found    string
		expected []string
	}{
		{
			name:     "unterminated double quote",
			line:     `alice name:"Ann`,
			column:   16,
			expected: []string{`"\""`, `"\\"`, "any character"},
		},
		{
			name:     "invalid escape",
			line:     `alice name:"a\qb"`,
			column:   15,
			found:    "q",
			expected: []string{`["'\\bfnrtv]`},
		},
		{
			name:   "properties before labels",
			line:   "alice name:x :Person",
			column: 14,
			found:  ":",
		},
		{
			name:   "missing property value",
			line:   "alice name:",
			column: 12,
		},
		{
			name:   "malformed direction",
			line:   "a --> b",
			column: 7,
			found:  "b",
		},
		{
			name:   "dangling direction",
			line:   "a ->",
			column: 5,
		},
		{
			name:   "second record on the same input",
			line:   "a\nb",
			column: 1,
			found:  "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "want *SyntaxError, got %T", err)
			assert.Equal(t, tt.column, se.Column)
			assert.Equal(t, tt.found, se.Found)
			if tt.expected != nil {
				assert.ElementsMatch(t, tt.expected, se.Expected)
			}
			assert.NotEmpty(t, se.Expected)
		})
	}
}

func TestSyntaxErrorMessage(t *testing.T) {
	_, err := Parse(`alice name:"Ann`)
	require.Error(t, err)
	assert.Equal(t, `line 1, column 16: expected "\"", "\\" or any character but end of input found`, err.Error())

	_, err = Parse("a\nb")
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)
}

func TestEdgeType(t *testing.T) {
	rec, err := Parse("a -> b :FIRST :SECOND")
	require.NoError(t, err)
	assert.Equal(t, "FIRST", rec.Edge.Type())

	rec, err = Parse("a -> b")
	require.NoError(t, err)
	assert.Equal(t, "", rec.Edge.Type())
	assert.Equal(t, "->", rec.Edge.Direction.String())
	assert.Equal(t, "--", Undirected.String())
}
