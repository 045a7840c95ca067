package pg

// Direction defines the connector between the two endpoints of an edge
type Direction int

const (
	Undirected Direction = iota
	Directed
)

// String returns the literal used in the text format
func (d Direction) String() string {
	if d == Directed {
		return "->"
	}
	return "--"
}

// Properties is an insertion-ordered multimap of property keys to values
type Properties struct {
	keys   []string
	values map[string][]string
}

// Add appends a value under key; a new key is placed after all existing keys
func (p *Properties) Add(key, value string) {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

// Keys returns the property keys in source order
func (p *Properties) Keys() []string {
	return p.keys
}

// Values returns the values stored under key, in source order
func (p *Properties) Values(key string) []string {
	return p.values[key]
}

// Len returns the number of distinct keys
func (p *Properties) Len() int {
	return len(p.keys)
}

// Node represents a graph node
type Node struct {
	ID         string
	Labels     []string
	Properties Properties
}

// Edge represents a graph edge
type Edge struct {
	From       string
	To         string
	Direction  Direction
	Labels     []string
	Properties Properties
}

// Type returns the relationship type, which is the first label of the edge
func (e *Edge) Type() string {
	if len(e.Labels) == 0 {
		return ""
	}
	return e.Labels[0]
}

// Record is the result of parsing one line: a node, an edge, or nothing
type Record struct {
	Node *Node
	Edge *Edge
}

// Empty reports whether the line held only whitespace or comments
func (r Record) Empty() bool {
	return r.Node == nil && r.Edge == nil
}
