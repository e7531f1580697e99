package dataset

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/fetcher"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/store"
)

// ErrMissingSource is returned when the configured dataset file does not
// exist. Callers continue with an empty dataset.
var ErrMissingSource = eris.New("dataset: source not found")

// Kind classifies a dataset source string.
type Kind string

const (
	KindCSV      Kind = "csv"
	KindXLSX     Kind = "xlsx"
	KindZIP      Kind = "zip"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindHTTP     Kind = "http"
)

// KindOf classifies source by scheme, then by file extension. Files with an
// unrecognised extension are read as delimited text.
func KindOf(source string) Kind {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(lower, "sqlite://"):
		return KindSQLite
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP
	}
	switch filepath.Ext(lower) {
	case ".xlsx":
		return KindXLSX
	case ".zip":
		return KindZIP
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	default:
		return KindCSV
	}
}

// Loader reads a Dataset from the source named in DatasetConfig.
type Loader struct {
	cfg     config.DatasetConfig
	fetcher fetcher.Fetcher
}

// NewLoader creates a Loader. A nil fetcher gets an HTTPFetcher built from cfg.
func NewLoader(cfg config.DatasetConfig, f fetcher.Fetcher) *Loader {
	if f == nil {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		})
	}
	return &Loader{cfg: cfg, fetcher: f}
}

// Source returns the configured source string.
func (l *Loader) Source() string { return l.cfg.Source }

// Load reads and indexes the dataset. A missing local file yields
// ErrMissingSource.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	samples, err := l.ReadSamples(ctx)
	if err != nil {
		return nil, err
	}
	ds := New(redact(l.cfg.Source), samples)
	zap.L().Info("dataset: loaded",
		zap.String("source", redact(l.cfg.Source)),
		zap.Int("samples", ds.Len()),
		zap.Int("regions", len(ds.regions)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// ReadSamples reads the raw sample list without indexing it.
func (l *Loader) ReadSamples(ctx context.Context) ([]model.SoilSample, error) {
	src := l.cfg.Source
	switch KindOf(src) {
	case KindPostgres:
		return l.readPostgres(ctx, src)
	case KindSQLite:
		return l.readSQLite(ctx, strings.TrimPrefix(src, "sqlite://"))
	case KindHTTP:
		return l.readRemote(ctx, src)
	default:
		return l.readFile(ctx, src)
	}
}

func (l *Loader) readFile(ctx context.Context, p string) ([]model.SoilSample, error) {
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrMissingSource, "dataset: %s", p)
		}
		return nil, eris.Wrapf(err, "dataset: stat %s", p)
	}

	switch KindOf(p) {
	case KindXLSX:
		return ReadXLSX(p, l.cfg.SheetName)
	case KindZIP:
		dir, err := os.MkdirTemp(l.cfg.TempDir, "solvmetria-zip-*")
		if err != nil {
			return nil, eris.Wrap(err, "dataset: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck
		extracted, err := fetcher.ExtractDataFile(p, dir, ".csv", ".tsv", ".txt", ".xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "dataset: extract zip")
		}
		return l.readFile(ctx, extracted)
	case KindSQLite:
		return l.readSQLite(ctx, p)
	default:
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: open %s", p)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f, l.delimiter(p))
	}
}

func (l *Loader) delimiter(p string) rune {
	if r := []rune(l.cfg.Delimiter); len(r) == 1 {
		return r[0]
	}
	if strings.EqualFold(filepath.Ext(p), ".tsv") {
		return '\t'
	}
	return 0
}

func (l *Loader) readSQLite(ctx context.Context, p string) ([]model.SoilSample, error) {
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrMissingSource, "dataset: %s", p)
	}
	st, err := store.NewSQLite(p, l.cfg.Table)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	return st.ReadSamples(ctx)
}

func (l *Loader) readPostgres(ctx context.Context, dsn string) ([]model.SoilSample, error) {
	st, err := store.NewPostgres(ctx, dsn, l.cfg.Table, nil)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	return st.ReadSamples(ctx)
}

// readRemote mirrors the URL into the temp dir and reads the local copy.
func (l *Loader) readRemote(ctx context.Context, rawURL string) ([]model.SoilSample, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: parse url")
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "dataset.csv"
	}

	dir := l.cfg.TempDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "solvmetria")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "dataset: create download dir")
	}
	local := filepath.Join(dir, name)

	if _, err := fetcher.Mirror(ctx, l.fetcher, rawURL, local); err != nil {
		return nil, eris.Wrap(err, "dataset: download")
	}
	return l.readFile(ctx, local)
}

// redact hides credentials in DSNs before logging.
func redact(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.User == nil {
		return source
	}
	return u.Redacted()
}
