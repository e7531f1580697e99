package dataset

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/solvmetria/internal/fetcher"
	"github.com/sells-group/solvmetria/internal/model"
)

// ReadXLSX decodes the sample table from a workbook. An empty sheetName
// reads the first sheet.
func ReadXLSX(path, sheetName string) ([]model.SoilSample, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheetName})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read xlsx")
	}
	if len(rows) == 0 {
		return nil, eris.New("dataset: xlsx sheet is empty")
	}
	return fromRows(normalizeHeader(rows[0]), rows[1:])
}

// fromRows maps positional rows onto rawRecord by header name.
func fromRows(header []string, rows [][]string) ([]model.SoilSample, error) {
	if err := checkColumns(header); err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	cell := func(row []string, col string) string {
		if i := idx[col]; i < len(row) {
			return row[i]
		}
		return ""
	}

	out := make([]model.SoilSample, 0, len(rows))
	for i, row := range rows {
		rec := rawRecord{
			Region:        cell(row, model.ColumnRegion),
			Municipality:  cell(row, model.ColumnMunicipality),
			PH:            cell(row, model.ColumnPH),
			Aluminum:      cell(row, model.ColumnAluminum),
			OrganicMatter: cell(row, model.ColumnOrganicMatter),
			AnalysisDate:  cell(row, model.ColumnAnalysisDate),
			Crop:          cell(row, model.ColumnCrop),
		}
		out = append(out, rec.toSample(i))
	}
	return out, nil
}
