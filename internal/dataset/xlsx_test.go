package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solvmetria/internal/fetcher"
)

func writeXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "muestras.xlsx")
	require.NoError(t, fetcher.WriteXLSX(path, sheet, rows[0], rows[1:]))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeXLSX(t, "Datos", [][]string{
		append([]string{"Extra"}, strings.Split(header, ",")...),
		{"x", "Cauca", "Popayán", "4.9", "1.4", "9.1", "43831", "Café"},
		{"y", "Cauca"},
	})

	samples, err := ReadXLSX(path, "Datos")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "Popayán", samples[0].Municipality)
	require.NotNil(t, samples[0].Aluminum)
	assert.InDelta(t, 1.4, *samples[0].Aluminum, 1e-9)
	year, ok := samples[0].AnalysisYear()
	assert.True(t, ok)
	assert.Equal(t, 2020, year)

	// Short rows read as missing cells.
	assert.Equal(t, "Unknown", samples[1].Municipality)
	assert.Nil(t, samples[1].PH)
}

func TestReadXLSX_MissingColumns(t *testing.T) {
	path := writeXLSX(t, "Sheet1", [][]string{{"Departamento"}, {"Cauca"}})

	_, err := ReadXLSX(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}
