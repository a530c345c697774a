/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Field is one column name/value pair of a Row
type Field struct {
	Name  string
	Value interface{}
}

// Row is a result row that keeps the column order of the query schema.
// It serializes as a JSON object whose keys follow that order.
type Row []Field

// NewRow zips column names with values. Extra values without a name are
// dropped.
func NewRow(names []string, values []interface{}) Row {
	row := make(Row, 0, len(names))
	for i, name := range names {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		row = append(row, Field{Name: name, Value: v})
	}
	return row
}

// Get returns the value of the named column
func (r Row) Get(name string) (interface{}, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the named column rendered as text, or "" when absent
func (r Row) GetString(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// MarshalJSON implements json.Marshaler preserving column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encode(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := encode(Canonical(f.Value))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Canonical rewrites values that have no stable JSON form into one:
// timestamps and civil dates/times become ISO-8601 strings and exact
// numerics become decimal strings. Slices and maps are walked. Anything
// else is returned untouched and left to the JSON encoder, which rejects
// functions, channels, complex numbers and non-finite floats.
func Canonical(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case civil.Date:
		return t.String()
	case civil.DateTime:
		return t.String()
	case civil.Time:
		return t.String()
	case *big.Rat:
		if t == nil {
			return nil
		}
		return ratString(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Canonical(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = Canonical(e)
		}
		return out
	default:
		return v
	}
}

// FormatValue renders a single value as plain text for non-JSON output
// such as few-shot examples.
func FormatValue(v interface{}) string {
	switch t := Canonical(v).(type) {
	case nil:
		return "NULL"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// MarshalPretty serializes v as JSON with two-space indentation and no
// HTML escaping. Nil slices are the caller's concern: pass an empty slice
// to get "[]".
func MarshalPretty(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Canonical(v)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MaxDecimalScale is the widest exact scale a query can return (BIGNUMERIC)
const MaxDecimalScale = 38

// DecimalString renders r with at most scale fractional digits, dropping
// trailing zeros
func DecimalString(r *big.Rat, scale int) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(scale)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func ratString(r *big.Rat) string {
	return DecimalString(r, MaxDecimalScale)
}
