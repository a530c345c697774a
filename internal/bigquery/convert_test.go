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
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/executor"
)

// sliceIterator replays canned value rows
type sliceIterator struct {
	rows [][]bigquery.Value
	err  error
	next int
}

func (s *sliceIterator) Next(dst interface{}) error {
	if s.next >= len(s.rows) {
		if s.err != nil {
			return s.err
		}
		return iterator.Done
	}
	*(dst.(*[]bigquery.Value)) = s.rows[s.next]
	s.next++
	return nil
}

var topNSchema = bigquery.Schema{
	{Name: "value", Type: bigquery.StringFieldType},
	{Name: "count", Type: bigquery.IntegerFieldType},
}

var profileSchema = bigquery.Schema{
	{Name: "source_table_id", Type: bigquery.StringFieldType},
	{Name: "column_name", Type: bigquery.StringFieldType},
	{Name: "percent_null", Type: bigquery.FloatFieldType},
	{Name: "top_n", Type: bigquery.RecordFieldType, Repeated: true, Schema: topNSchema},
}

func TestReadRowsConvertsNestedRecords(t *testing.T) {
	it := &sliceIterator{rows: [][]bigquery.Value{{
		"p.d.orders", "status", 1.5,
		[]bigquery.Value{
			[]bigquery.Value{"shipped", int64(10)},
			[]bigquery.Value{"open", int64(2)},
		},
	}}}

	rows, err := readRows(it, func() bigquery.Schema { return profileSchema }, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	out, err := dataset.MarshalPretty(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source_table_id": "p.d.orders",
		"column_name": "status",
		"percent_null": 1.5,
		"top_n": [{"value": "shipped", "count": 10}, {"value": "open", "count": 2}]
	}`, out)
}

func TestReadRowsHonoursLimit(t *testing.T) {
	schema := bigquery.Schema{{Name: "n", Type: bigquery.IntegerFieldType}}
	it := &sliceIterator{rows: [][]bigquery.Value{{int64(1)}, {int64(2)}, {int64(3)}, {int64(4)}}}

	rows, err := readRows(it, func() bigquery.Schema { return schema }, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReadRowsEmptyIsNotNil(t *testing.T) {
	rows, err := readRows(&sliceIterator{}, func() bigquery.Schema { return nil }, 0)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReadRowsPropagatesErrors(t *testing.T) {
	it := &sliceIterator{err: errors.New("quota exceeded")}
	_, err := readRows(it, func() bigquery.Schema { return nil }, 0)
	assert.EqualError(t, err, "quota exceeded")
}

func TestColumnsFlattensRecords(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "id", Type: bigquery.IntegerFieldType, Required: true, Description: "Order id"},
		{Name: "address", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
			{Name: "city", Type: bigquery.StringFieldType},
		}},
		{Name: "tags", Type: bigquery.StringFieldType, Repeated: true},
	}

	assert.Equal(t, []dataset.Column{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED", Description: "Order id"},
		{Name: "address", Type: "RECORD", Mode: "NULLABLE"},
		{Name: "address.city", Type: "STRING", Mode: "NULLABLE"},
		{Name: "tags", Type: "STRING", Mode: "REPEATED"},
	}, columns(schema, ""))
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(executor.Credentials{}))
	assert.Len(t, ClientOptions(executor.Credentials{AccessToken: "ya29.token"}), 1)
}

func mustRat(t *testing.T, s string) *big.Rat {
	t.Helper()
	r, ok := new(big.Rat).SetString(s)
	require.True(t, ok, s)
	return r
}

func TestReadRowsKeepsDecimalScale(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "amount", Type: bigquery.NumericFieldType},
		{Name: "ratio", Type: bigquery.BigNumericFieldType},
		{Name: "tiny", Type: bigquery.BigNumericFieldType},
		{Name: "prices", Type: bigquery.NumericFieldType, Repeated: true},
	}
	it := &sliceIterator{rows: [][]bigquery.Value{{
		mustRat(t, "12.500000000"),
		mustRat(t, "0.12345678901234567890123456789012345678"),
		mustRat(t, "-0.0000000001"),
		[]bigquery.Value{mustRat(t, "3"), mustRat(t, "0.000000001")},
	}}}

	rows, err := readRows(it, func() bigquery.Schema { return schema }, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	out, err := dataset.MarshalPretty(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"amount": "12.5",
		"ratio": "0.12345678901234567890123456789012345678",
		"tiny": "-0.0000000001",
		"prices": ["3", "0.000000001"]
	}`, out)
}
