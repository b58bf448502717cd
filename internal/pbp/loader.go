package pbp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

var (
	// ErrNoInputFiles is returned when the input patterns resolve to nothing.
	ErrNoInputFiles = errors.New("no play files matched")

	// ErrMissingColumn is returned when an input file lacks a required header.
	ErrMissingColumn = errors.New("missing required column")
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ResolveInputs expands glob patterns and plain paths into a sorted,
// de-duplicated file list. Plain paths are returned as given even if they do
// not exist, so the open error surfaces when the file is read.
func ResolveInputs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		matches := []string{pattern}
		if strings.ContainsAny(pattern, "*?[") {
			var err error
			matches, err = filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("bad input pattern %q: %w", pattern, err)
			}
		}

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputFiles, strings.Join(patterns, ", "))
	}

	sort.Strings(files)
	return files, nil
}

// LoadPlays reads every file and concatenates the records in file order.
// Any unreadable file aborts the load.
func LoadPlays(paths []string) ([]PlayRecord, error) {
	var all []PlayRecord
	for _, path := range paths {
		records, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// LoadFile reads a single play-by-play CSV file.
func LoadFile(path string) ([]PlayRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plays %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadPlays(f)
	if err != nil {
		return nil, fmt.Errorf("read plays %s: %w", path, err)
	}
	return records, nil
}

// ReadPlays decodes play records from CSV, verifying the header first.
func ReadPlays(r io.Reader) ([]PlayRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := gocsv.DefaultCSVReader(bytes.NewReader(data)).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	var rows []playRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	records := make([]PlayRecord, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return records, nil
}

// playRow is the on-disk shape of a PlayRecord.
type playRow struct {
	Season             decimal `csv:"Season"`
	Week               decimal `csv:"Week"`
	HomeTeam           string  `csv:"HomeTeam"`
	AwayTeam           string  `csv:"AwayTeam"`
	TeamWithPossession string  `csv:"TeamWithPossession"`
	DriveNumber        decimal `csv:"DriveNumber"`
	PlayOutcome        string  `csv:"PlayOutcome"`
}

func (r playRow) record() PlayRecord {
	rec := PlayRecord{
		Season:             r.Season.value,
		Week:               r.Week.value,
		HomeTeam:           r.HomeTeam,
		AwayTeam:           r.AwayTeam,
		TeamWithPossession: r.TeamWithPossession,
		PlayOutcome:        r.PlayOutcome,
	}
	if r.DriveNumber.set {
		rec.DriveNumber = Drive(r.DriveNumber.value)
	}
	return rec
}

// decimal is a base-10 integer cell. gocsv's own int decoding reads a
// leading zero as an octal prefix, so "08" would fail. Anything after a
// decimal point is dropped ("3.0" is 3) and a blank cell stays unset.
type decimal struct {
	value int
	set   bool
}

func (d *decimal) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = decimal{}
		return nil
	}
	whole, _, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*d = decimal{value: int(n), set: true}
	return nil
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	for _, col := range RequiredColumns {
		if !present[col] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}
