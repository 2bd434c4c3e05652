package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendMetadataFilterNumbersPlaceholders(t *testing.T) {
	sqlStr := `SELECT id FROM chunks WHERE TRUE`
	args := []interface{}{}
	sqlStr, args = appendMetadataFilter(sqlStr, args, map[string]string{"source": "report.pdf"})
	require.Equal(t, `SELECT id FROM chunks WHERE TRUE AND metadata->>($1::text) = $2`, sqlStr)
	require.Equal(t, []interface{}{"source", "report.pdf"}, args)
}

func TestAppendMetadataFilterContinuesNumbering(t *testing.T) {
	sqlStr := `SELECT id FROM chunks WHERE x = $1`
	args := []interface{}{"seed"}
	sqlStr, args = appendMetadataFilter(sqlStr, args, map[string]string{
		"source": "deck.pptx",
		"kind":   "slide",
	})
	require.Equal(t, `SELECT id FROM chunks WHERE x = $1 AND metadata->>($2::text) = $3 AND metadata->>($4::text) = $5`, sqlStr)
	require.Equal(t, []interface{}{"seed", "kind", "slide", "source", "deck.pptx"}, args)
}

func TestAppendMetadataFilterEmpty(t *testing.T) {
	sqlStr, args := appendMetadataFilter(`SELECT 1`, nil, nil)
	require.Equal(t, `SELECT 1`, sqlStr)
	require.Empty(t, args)
}
