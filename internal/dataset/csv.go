package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solvmetria/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV decodes a delimited sample table. A zero delim is sniffed from the
// header line among ',', ';' and tab.
func ReadCSV(r io.Reader, delim rune) ([]model.SoilSample, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: csv is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv header")
	}
	header = normalizeHeader(header)
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(&fittedReader{r: cr, width: len(header)}, header...)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create csv decoder")
	}

	var out []model.SoilSample
	for row := 0; ; row++ {
		var rec rawRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode csv row %d", row+1)
		}
		out = append(out, rec.toSample(row))
	}
	return out, nil
}

// fittedReader pads short records with empty cells and drops extra cells so
// every record matches the header width.
type fittedReader struct {
	r     *csv.Reader
	width int
}

func (f *fittedReader) Read() ([]string, error) {
	rec, err := f.r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) > f.width {
		return rec[:f.width], nil
	}
	for len(rec) < f.width {
		rec = append(rec, "")
	}
	return rec, nil
}

// sniffDelimiter picks the candidate that occurs most often in the first line.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// checkColumns reports every required column absent from header.
func checkColumns(header []string) error {
	var missing []string
	for _, col := range model.RequiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("dataset: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
