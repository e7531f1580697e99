package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractDataFile extracts the single entry of a ZIP archive whose extension
// is one of exts (for example ".csv", ".xlsx"). Directories and other files
// are ignored. Returns the path of the extracted file.
func ExtractDataFile(zipPath, destDir string, exts ...string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open zip")
	}
	defer r.Close() //nolint:errcheck

	var matches []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(f.Name))) {
			matches = append(matches, f)
		}
	}

	if len(matches) != 1 {
		return "", eris.Errorf("fetcher: expected exactly 1 data file in %s, got %d", filepath.Base(zipPath), len(matches))
	}

	return extractZIPEntry(matches[0], destDir)
}

// extractZIPEntry writes f into destDir and returns the written path.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetcher: illegal zip path %q", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open zip entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, rc); err != nil {
		return "", err
	}
	return destPath, nil
}
