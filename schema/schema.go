// Package schema tracks the column types of node and edge properties.
//
// A Schema is an insertion-ordered mapping from property key to Type. The
// position of a key is fixed by its first insertion; later updates may change
// its type but never its column.
package schema

import "github.com/g2gml/pg/pg"

// Field is one column of a schema
type Field struct {
	Key  string
	Type Type
}

// Schema is an insertion-ordered property key to type mapping
type Schema struct {
	keys  []string
	types map[string]Type
}

// New returns an empty schema
func New() *Schema {
	return &Schema{types: make(map[string]Type)}
}

// FromFields builds a schema holding fields in the given order
func FromFields(fields []Field) *Schema {
	s := New()
	for _, f := range fields {
		s.Set(f.Key, f.Type)
	}
	return s
}

// Set registers key with type t, keeping the key's position if it already exists
func (s *Schema) Set(key string, t Type) {
	if _, ok := s.types[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.types[key] = t
}

// SetIfAbsent registers key only if it is new and reports whether it did
func (s *Schema) SetIfAbsent(key string, t Type) bool {
	if _, ok := s.types[key]; ok {
		return false
	}
	s.Set(key, t)
	return true
}

// Get returns the type registered for key
func (s *Schema) Get(key string) (Type, bool) {
	t, ok := s.types[key]
	return t, ok
}

// Keys returns the keys in column order
func (s *Schema) Keys() []string {
	return s.keys
}

// Fields returns a snapshot of the columns in order
func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.keys))
	for i, k := range s.keys {
		fields[i] = Field{Key: k, Type: s.types[k]}
	}
	return fields
}

// Len returns the number of columns
func (s *Schema) Len() int {
	return len(s.keys)
}

// Clone returns an independent copy
func (s *Schema) Clone() *Schema {
	return FromFields(s.Fields())
}

// Equal reports whether both schemas hold the same columns in the same order
func (s *Schema) Equal(o *Schema) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, k := range s.keys {
		if o.keys[i] != k || o.types[k] != s.types[k] {
			return false
		}
	}
	return true
}

// Conflict describes a multi-valued property whose values sniff to different
// scalar types. The first type is kept.
type Conflict struct {
	Key   string
	First Type
	Other Type
}

// Observe applies one record's properties to s. A single-valued key is
// registered with its sniffed type only if the key is new. A multi-valued key
// is registered as a list of the first value's type unless the key already
// holds a list type; values of other types are reported as conflicts.
func Observe(s *Schema, props *pg.Properties, sniff Sniffer) []Conflict {
	var conflicts []Conflict
	for _, key := range props.Keys() {
		values := props.Values(key)
		if len(values) == 1 {
			s.SetIfAbsent(key, sniff(values[0]))
			continue
		}
		first := sniff(values[0])
		for _, v := range values[1:] {
			if t := sniff(v); t != first {
				conflicts = append(conflicts, Conflict{Key: key, First: first, Other: t})
			}
		}
		if t, ok := s.types[key]; !ok || !t.IsArray() {
			s.Set(key, first.Array())
		}
	}
	return conflicts
}

// Merge folds schemas in argument order. The type of a key comes from the last
// schema that holds it; its position from the first.
func Merge(schemas ...*Schema) *Schema {
	merged := New()
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, k := range s.keys {
			merged.Set(k, s.types[k])
		}
	}
	return merged
}
