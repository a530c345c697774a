/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package bigquery

import (
	"errors"
	"math/big"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"bq-data-agent/internal/dataset"
)

// rowIterator is the part of *bigquery.RowIterator used for reading
type rowIterator interface {
	Next(dst interface{}) error
}

// readRows drains it into ordered rows, stopping after limit rows when
// limit is positive. schema is consulted after each Next because the
// iterator only learns it with the first page.
func readRows(it rowIterator, schema func() bigquery.Schema, limit int) ([]dataset.Row, error) {
	rows := []dataset.Row{}
	for limit <= 0 || len(rows) < limit {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, toRow(schema(), values))
	}
	return rows, nil
}

func iteratorRows(it *bigquery.RowIterator, limit int) ([]dataset.Row, error) {
	return readRows(it, func() bigquery.Schema { return it.Schema }, limit)
}

// toRow pairs values with the schema field names. RECORD values become
// nested rows and REPEATED values become lists.
func toRow(schema bigquery.Schema, values []bigquery.Value) dataset.Row {
	names := make([]string, len(schema))
	out := make([]interface{}, len(schema))
	for i, field := range schema {
		names[i] = field.Name
		if i < len(values) {
			out[i] = toValue(field, values[i])
		}
	}
	return dataset.NewRow(names, out)
}

func toValue(field *bigquery.FieldSchema, v bigquery.Value) interface{} {
	if v == nil {
		return nil
	}
	if field.Repeated {
		list, ok := v.([]bigquery.Value)
		if !ok {
			return v
		}
		elem := *field
		elem.Repeated = false
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = toValue(&elem, e)
		}
		return out
	}
	switch field.Type {
	case bigquery.RecordFieldType:
		if rec, ok := v.([]bigquery.Value); ok {
			return toRow(field.Schema, rec)
		}
	case bigquery.NumericFieldType:
		if r, ok := v.(*big.Rat); ok && r != nil {
			return dataset.DecimalString(r, bigquery.NumericScaleDigits)
		}
	case bigquery.BigNumericFieldType:
		if r, ok := v.(*big.Rat); ok && r != nil {
			return dataset.DecimalString(r, bigquery.BigNumericScaleDigits)
		}
	}
	return v
}

// columns flattens a table schema into column records. Nested fields are
// named with dotted paths.
func columns(schema bigquery.Schema, prefix string) []dataset.Column {
	var out []dataset.Column
	for _, field := range schema {
		name := field.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		out = append(out, dataset.Column{
			Name:        name,
			Type:        string(field.Type),
			Mode:        mode(field),
			Description: field.Description,
		})
		if field.Type == bigquery.RecordFieldType {
			out = append(out, columns(field.Schema, name)...)
		}
	}
	return out
}

func mode(field *bigquery.FieldSchema) string {
	switch {
	case field.Repeated:
		return "REPEATED"
	case field.Required:
		return "REQUIRED"
	default:
		return "NULLABLE"
	}
}
