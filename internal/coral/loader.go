// Package coral loads coral locations from a zipped CSV archive.
package coral

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/safesea/internal/domain"
)

// DefaultRowLimit is the number of valid rows kept from an archive.
const DefaultRowLimit = 100

const (
	latColumn = "latitude"
	lonColumn = "longitude"
)

var (
	ErrArchiveNotFound    = errors.New("coral archive not found")
	ErrNoCSVEntry         = errors.New("archive contains no csv entry")
	ErrMissingColumn      = errors.New("missing coordinate column")
	ErrNoValidCoordinates = errors.New("no valid coordinates")
)

// Load reads the first CSV entry of the zip archive at path and returns at
// most limit rows with valid coordinates. A limit <= 0 uses DefaultRowLimit.
func Load(path string, limit int) ([]domain.CoralRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		}
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	entry := firstCSV(zr.File)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCSVEntry, path)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	records, err := Parse(rc, limit)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", entry.Name, err)
	}
	return records, nil
}

func firstCSV(files []*zip.File) *zip.File {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			return f
		}
	}
	return nil
}

// Parse reads CSV with a header row. Rows whose latitude or longitude do not
// parse, or fall outside the valid range, are skipped. Filtering happens
// before the limit is applied.
func Parse(r io.Reader, limit int) ([]domain.CoralRecord, error) {
	if limit <= 0 {
		limit = DefaultRowLimit
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	latIdx, lonIdx := indexOf(header, latColumn), indexOf(header, lonColumn)
	if latIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, latColumn)
	}
	if lonIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, lonColumn)
	}

	var records []domain.CoralRecord
	for len(records) < limit {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		coord, ok := parseCoordinate(row, latIdx, lonIdx)
		if !ok {
			continue
		}
		records = append(records, domain.CoralRecord{
			Coordinate: coord,
			Fields:     extraFields(header, row, latIdx, lonIdx),
		})
	}

	if len(records) == 0 {
		return nil, ErrNoValidCoordinates
	}
	return records, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func parseCoordinate(row []string, latIdx, lonIdx int) (domain.Coordinate, bool) {
	if latIdx >= len(row) || lonIdx >= len(row) {
		return domain.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	c := domain.Coordinate{Lat: lat, Lon: lon}
	// NaN fails both range comparisons.
	if !c.Valid() {
		return domain.Coordinate{}, false
	}
	return c, true
}

func extraFields(header, row []string, latIdx, lonIdx int) map[string]string {
	var fields map[string]string
	for i, h := range header {
		if i == latIdx || i == lonIdx || i >= len(row) || h == "" {
			continue
		}
		if fields == nil {
			fields = make(map[string]string, len(header)-2)
		}
		fields[h] = row[i]
	}
	return fields
}
