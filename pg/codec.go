package pg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const codecVersion byte = 1

const (
	kindNode byte = 1
	kindEdge byte = 2
)

// MarshalRecord converts a Node or Edge record to a versioned little-endian byte slice
func MarshalRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)
	buf.WriteByte(codecVersion)

	switch {
	case rec.Node != nil:
		buf.WriteByte(kindNode)
		writeString(&buf, rec.Node.ID)
		writeStrings(&buf, rec.Node.Labels)
		writeProperties(&buf, &rec.Node.Properties)
	case rec.Edge != nil:
		buf.WriteByte(kindEdge)
		writeString(&buf, rec.Edge.From)
		writeString(&buf, rec.Edge.To)
		buf.WriteByte(byte(rec.Edge.Direction))
		writeStrings(&buf, rec.Edge.Labels)
		writeProperties(&buf, &rec.Edge.Properties)
	default:
		return nil, errors.New("cannot serialize an empty record")
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord converts a byte slice produced by MarshalRecord back to a Record
func UnmarshalRecord(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, errors.New("empty data for deserialization")
	}
	buf := bytes.NewReader(data)

	version, _ := buf.ReadByte()
	if version != codecVersion {
		return Record{}, fmt.Errorf("unsupported version: %d", version)
	}
	kind, err := buf.ReadByte()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record kind: %w", err)
	}

	switch kind {
	case kindNode:
		node := &Node{}
		if node.ID, err = readString(buf); err != nil {
			return Record{}, fmt.Errorf("failed to read node ID: %w", err)
		}
		if node.Labels, err = readStrings(buf); err != nil {
			return Record{}, fmt.Errorf("failed to read node labels: %w", err)
		}
		if err := readProperties(buf, &node.Properties); err != nil {
			return Record{}, fmt.Errorf("failed to read node properties: %w", err)
		}
		return Record{Node: node}, nil
	case kindEdge:
		edge := &Edge{}
		if edge.From, err = readString(buf); err != nil {
			return Record{}, fmt.Errorf("failed to read edge source: %w", err)
		}
		if edge.To, err = readString(buf); err != nil {
			return Record{}, fmt.Errorf("failed to read edge target: %w", err)
		}
		dir, err := buf.ReadByte()
		if err != nil {
			return Record{}, fmt.Errorf("failed to read edge direction: %w", err)
		}
		edge.Direction = Direction(dir)
		if edge.Labels, err = readStrings(buf); err != nil {
			return Record{}, fmt.Errorf("failed to read edge labels: %w", err)
		}
		if err := readProperties(buf, &edge.Properties); err != nil {
			return Record{}, fmt.Errorf("failed to read edge properties: %w", err)
		}
		return Record{Edge: edge}, nil
	default:
		return Record{}, fmt.Errorf("unsupported record kind %d", kind)
	}
}

// writeString writes a length-prefixed string; writes to a bytes.Buffer cannot fail
func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func writeStrings(buf *bytes.Buffer, ss []string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(ss)))
	buf.Write(n[:])
	for _, s := range ss {
		writeString(buf, s)
	}
}

// writeProperties writes the key count followed by each key and its value list, in order
func writeProperties(buf *bytes.Buffer, props *Properties) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(props.Len()))
	buf.Write(n[:])
	for _, key := range props.Keys() {
		writeString(buf, key)
		writeStrings(buf, props.Values(key))
	}
}

func readUint32(buf *bytes.Reader) (uint32, error) {
	var n uint32
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func readString(buf *bytes.Reader) (string, error) {
	n, err := readUint32(buf)
	if err != nil {
		return "", fmt.Errorf("failed to read string length: %w", err)
	}
	if int(n) > buf.Len() {
		return "", fmt.Errorf("string length %d exceeds remaining buffer %d", n, buf.Len())
	}
	b := make([]byte, n)
	if _, err := buf.Read(b); err != nil && n > 0 {
		return "", fmt.Errorf("failed to read string: %w", err)
	}
	return string(b), nil
}

func readStrings(buf *bytes.Reader) ([]string, error) {
	count, err := readUint32(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	// every string carries at least its 4-byte length
	if int(count) > buf.Len()/4 {
		return nil, fmt.Errorf("count %d exceeds remaining buffer %d", count, buf.Len())
	}
	ss := make([]string, count)
	for i := range ss {
		if ss[i], err = readString(buf); err != nil {
			return nil, fmt.Errorf("failed to read string at index %d: %w", i, err)
		}
	}
	return ss, nil
}

func readProperties(buf *bytes.Reader, props *Properties) error {
	count, err := readUint32(buf)
	if err != nil {
		return fmt.Errorf("failed to read property count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		key, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read key at index %d: %w", i, err)
		}
		values, err := readStrings(buf)
		if err != nil {
			return fmt.Errorf("failed to read values of %q: %w", key, err)
		}
		for _, v := range values {
			props.Add(key, v)
		}
	}
	return nil
}
