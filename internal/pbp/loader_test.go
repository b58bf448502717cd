package pbp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome,Quarter
2024,1,KC,BAL,KC,1,5 yard run,1
2024,1,KC,BAL,KC,1,"Pass incomplete, intended for #87",1
2024,1,KC,BAL,BAL,2,-3 yard run,1
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadPlays(t *testing.T) {
	records, err := ReadPlays(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, PlayRecord{
		Season:             2024,
		Week:               1,
		HomeTeam:           "KC",
		AwayTeam:           "BAL",
		TeamWithPossession: "KC",
		DriveNumber:        Drive(1),
		PlayOutcome:        "Pass incomplete, intended for #87",
	}, records[1])
	assert.Equal(t, "BAL", records[2].TeamWithPossession)
}

func TestReadPlays_ByteOrderMark(t *testing.T) {
	records, err := ReadPlays(strings.NewReader("\xef\xbb\xbf" + sampleCSV))
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2024, records[0].Season)
}

func TestReadPlays_DecimalIntegers(t *testing.T) {
	tests := []struct {
		name  string
		week  string
		drive string
		want  int
	}{
		{"zero padded", "08", "09", 8},
		{"leading zero is not octal", "010", "010", 10},
		{"float export", "3.0", "12.0", 3},
		{"padded with spaces", " 7 ", "4", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome\n" +
				"2024," + tt.week + ",KC,BAL,KC," + tt.drive + ",5 yard run\n"

			records, err := ReadPlays(strings.NewReader(body))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Week)
			require.NotNil(t, records[0].DriveNumber)
		})
	}
}

func TestReadPlays_ZeroPaddedDrive(t *testing.T) {
	body := "Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome\n" +
		"2024,1,KC,BAL,KC,010,5 yard run\n"

	records, err := ReadPlays(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, Drive(10), records[0].DriveNumber)
}

func TestReadPlays_BlankDriveNumber(t *testing.T) {
	body := "Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome\n" +
		"2024,1,KC,BAL,KC,,Extra point is good\n"

	records, err := ReadPlays(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].DriveNumber)
	assert.Equal(t, 1, records[0].Week)
}

func TestReadPlays_BadInteger(t *testing.T) {
	body := "Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome\n" +
		"2024,0x1,KC,BAL,KC,1,5 yard run\n"

	_, err := ReadPlays(strings.NewReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x1")
}

func TestReadPlays_MissingColumn(t *testing.T) {
	body := "Season,Week,HomeTeam,AwayTeam,TeamWithPossession,PlayOutcome\n2024,1,KC,BAL,KC,5 yard run\n"

	_, err := ReadPlays(strings.NewReader(body))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "DriveNumber")
}

func TestReadPlays_Empty(t *testing.T) {
	_, err := ReadPlays(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestResolveInputs(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "2024_plays.csv", sampleCSV)
	a := writeFile(t, dir, "2023_plays.csv", sampleCSV)
	writeFile(t, dir, "notes.txt", "ignore me")

	files, err := ResolveInputs([]string{filepath.Join(dir, "*_plays.csv"), b})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestResolveInputs_NoMatches(t *testing.T) {
	_, err := ResolveInputs([]string{filepath.Join(t.TempDir(), "*_plays.csv")})
	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestLoadPlays(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", sampleCSV)
	b := writeFile(t, dir, "b.csv", sampleCSV)

	records, err := LoadPlays([]string{a, b})
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestLoadPlays_MissingFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", sampleCSV)

	records, err := LoadPlays([]string{a, filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "missing.csv")
}
