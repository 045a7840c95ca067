package schema

import (
	"strconv"
	"strings"
	"time"
)

// Type is a Neo4j bulk-import column type such as "long" or "string[]"
type Type string

const (
	Long     Type = "long"
	Double   Type = "double"
	Boolean  Type = "boolean"
	Date     Type = "date"
	DateTime Type = "datetime"
	String   Type = "string"
)

const arraySuffix = "[]"

// Array returns the list form of a scalar type
func (t Type) Array() Type {
	if t.IsArray() {
		return t
	}
	return t + arraySuffix
}

// IsArray reports whether t is a list type
func (t Type) IsArray() bool {
	return strings.HasSuffix(string(t), arraySuffix)
}

// Sniffer classifies a raw value into a scalar type
type Sniffer func(value string) Type

// Sniff classifies a raw value. It never fails: anything unrecognized is a string.
func Sniff(value string) Type {
	switch {
	case value == "":
		return String
	case isInteger(value):
		return Long
	case isDecimal(value):
		return Double
	case strings.EqualFold(value, "true") || strings.EqualFold(value, "false"):
		return Boolean
	}
	if len(value) == len("2006-01-02") {
		if _, err := time.Parse("2006-01-02", value); err == nil {
			return Date
		}
	}
	if _, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return DateTime
	}
	return String
}

// isInteger accepts an optional sign followed by digits that fit in 64 bits
func isInteger(s string) bool {
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isDecimal accepts plain decimal and exponent notation; ParseFloat alone would
// also take "NaN", "Inf" and hexadecimal forms
func isDecimal(s string) bool {
	sawDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
		default:
			return false
		}
	}
	if !sawDigit {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
