package plink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFAM(t *testing.T) {
	samples, err := LoadFAM(filepath.Join("..", "..", "testdata", "chr1.fam"))
	require.NoError(t, err)

	require.Len(t, samples, 4)
	assert.Equal(t, Sample{FamilyID: "1", IndividualID: "204001230001_BACH0001", Line: 1}, samples[0])
	assert.Equal(t, "3", samples[1].FamilyID)
}

func TestReadFAM_Whitespace(t *testing.T) {
	samples, err := ReadFAM(strings.NewReader("F1\tI1 0 0 1 -9\n\n  F2   I2\n"))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "I1", samples[0].IndividualID)
	assert.Equal(t, "F2", samples[1].FamilyID)
	assert.Equal(t, 3, samples[1].Line)
}

func TestReadFAM_ShortRow(t *testing.T) {
	_, err := ReadFAM(strings.NewReader("F1 I1\nF2\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestLoadFAM_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fam")
	require.NoError(t, os.WriteFile(path, []byte("lonely\n"), 0o644))

	_, err := LoadFAM(path)
	assert.ErrorContains(t, err, "bad.fam at line 1")
}

func TestMatch_Substring(t *testing.T) {
	samples := []Sample{
		{FamilyID: "1", IndividualID: "204001230001_BACH0001"},
		{FamilyID: "2", IndividualID: "204001230002_BACH0002"},
		{FamilyID: "10", IndividualID: "204001230010_BACH00010"},
	}

	s, n := Match(samples, "BACH0002")
	assert.Equal(t, 1, n)
	assert.Equal(t, "2", s.FamilyID)

	// "BACH0001" is also contained in "BACH00010": the first row wins and
	// the ambiguity is reported through the count.
	s, n = Match(samples, "BACH0001")
	assert.Equal(t, 2, n)
	assert.Equal(t, "1", s.FamilyID)

	_, n = Match(samples, "BACH9999")
	assert.Equal(t, 0, n)
}
