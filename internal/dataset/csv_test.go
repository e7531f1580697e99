package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Departamento,Municipio,pH_agua_suelo,Aluminio intercambiable,Materia organica,Fecha de Análisis,Cultivo"

func TestReadCSV(t *testing.T) {
	data := header + ",Textura\n" +
		"Antioquia,Rionegro,5.4,0.8,6.2,03/05/2019,Café,Franco\n" +
		",,abc,,3,not a date,\n"

	samples, err := ReadCSV(strings.NewReader(data), 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	first := samples[0]
	assert.Equal(t, 0, first.Row)
	assert.Equal(t, "Antioquia", first.Region)
	require.NotNil(t, first.PH)
	assert.InDelta(t, 5.4, *first.PH, 1e-9)
	require.NotNil(t, first.AnalysisDate)
	assert.Equal(t, 5, int(first.AnalysisDate.Month()))

	second := samples[1]
	assert.Equal(t, 1, second.Row)
	assert.Equal(t, "Unknown", second.Region)
	assert.Equal(t, "Unknown", second.Municipality)
	assert.Nil(t, second.PH)
	assert.Nil(t, second.Aluminum)
	assert.Nil(t, second.AnalysisDate)
	require.NotNil(t, second.OrganicMatter)
}

func TestReadCSV_SemicolonAndBOM(t *testing.T) {
	data := "\ufeff" + strings.ReplaceAll(header, ",", ";") + "\n" +
		"Boyacá;Tunja;6,1;0,2;3,5;2020-02-01;Papa\n"

	samples, err := ReadCSV(strings.NewReader(data), 0)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Boyacá", samples[0].Region)
	require.NotNil(t, samples[0].PH)
	assert.InDelta(t, 6.1, *samples[0].PH, 1e-9)
}

func TestReadCSV_ExplicitTab(t *testing.T) {
	data := strings.ReplaceAll(header, ",", "\t") + "\n" +
		"Caldas\tManizales\t5.0\t0.5\t8\t01/01/2021\tCafé\n"

	samples, err := ReadCSV(strings.NewReader(data), '\t')
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Manizales", samples[0].Municipality)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Departamento,Municipio\nA,B\n"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "pH_agua_suelo")
	assert.Contains(t, err.Error(), "Cultivo")
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv is empty")
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(header+"\n"), 0)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReadCSV_RaggedRows(t *testing.T) {
	data := header + "\n" +
		"Caldas,Manizales,5.2\n" +
		"Caldas,Chinchiná,6.0,0.3,4,02/02/2022,Café,extra,cells\n" +
		"Caldas,Villamaría,5.8,0.4,3,01/01/2021,Café\n"

	samples, err := ReadCSV(strings.NewReader(data), 0)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	short := samples[0]
	assert.Equal(t, "Manizales", short.Municipality)
	require.NotNil(t, short.PH)
	assert.InDelta(t, 5.2, *short.PH, 1e-9)
	assert.Nil(t, short.Aluminum)
	assert.Nil(t, short.OrganicMatter)
	assert.Nil(t, short.AnalysisDate)

	long := samples[1]
	assert.Equal(t, "Chinchiná", long.Municipality)
	assert.Equal(t, "Café", long.Crop)
	require.NotNil(t, long.Aluminum)
	assert.InDelta(t, 0.3, *long.Aluminum, 1e-9)

	assert.Equal(t, 2, samples[2].Row)
}
