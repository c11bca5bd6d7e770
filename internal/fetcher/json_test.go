package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonRow struct {
	Type  string     `json:"type"`
	Local [2]float64 `json:"local"`
}

func decodeRows(t *testing.T, input string) ([]jsonRow, error) {
	t.Helper()
	items, errs := DecodeJSONArray[jsonRow](context.Background(), strings.NewReader(input))
	var out []jsonRow
	for it := range items {
		out = append(out, it)
	}
	return out, <-errs
}

func TestDecodeJSONArray(t *testing.T) {
	rows, err := decodeRows(t, `[{"type":"Theft","local":[-23.5,-46.6]},{"type":"Drugs","local":[-23.6,-46.7]}]`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Drugs", rows[1].Type)
	assert.Equal(t, [2]float64{-23.5, -46.6}, rows[0].Local)
}

func TestDecodeJSONArray_EmptyInput(t *testing.T) {
	rows, err := decodeRows(t, "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = decodeRows(t, "[]")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeJSONArray_Errors(t *testing.T) {
	_, err := decodeRows(t, `{"type":"Theft"}`)
	assert.ErrorContains(t, err, "expected array")

	rows, err := decodeRows(t, `[{"type":"Theft"},{"type":5}]`)
	assert.ErrorContains(t, err, "decode element 1")
	assert.Len(t, rows, 1)

	_, err = decodeRows(t, `[{"type":"Theft"}`)
	assert.Error(t, err)
}
