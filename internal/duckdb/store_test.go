package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/snp2redcap/internal/genotype"
	"github.com/inodb/snp2redcap/internal/vcf"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func result(panel, sample, pos, gt string, cat genotype.Category, ds float64) CallResult {
	return CallResult{
		Panel: panel,
		Call: vcf.Call{
			SampleID:  sample,
			VariantID: vcf.FormatVariantID("19", pos, "C", "T"),
			Chrom:     "19",
			Position:  pos,
			Ref:       "C",
			Alt:       "T",
			Genotype:  gt,
			Dosage:    ds,
		},
		Category: cat,
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteAndLookupCalls(t *testing.T) {
	s := openInMemory(t)

	results := []CallResult{
		result("apoe", "BACH0001", "45412079", "0|0", genotype.HomozygousReference, 0.03),
		result("apoe", "BACH0001", "45411941", "0|2", genotype.Heterozygous, 1.02),
		result("apoe", "BACH0002", "45411941", "2|2", genotype.HomozygousAlternate, 1.99),
		result("apoe", "BACH0001", "45411941", "0|2", genotype.Heterozygous, 1.02),
	}
	require.NoError(t, s.WriteCalls("run-1", results))

	n, err := s.CountCalls("run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "duplicate call is dropped")

	calls, err := s.LookupSample("run-1", "BACH0001")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "45411941", calls[0].Call.Position)
	assert.Equal(t, genotype.Heterozygous, calls[0].Category)
	assert.Equal(t, "45412079", calls[1].Call.Position)
	assert.Equal(t, results[0], calls[1])

	calls, err = s.LookupSample("run-2", "BACH0001")
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestInputsAndClearRun(t *testing.T) {
	s := openInMemory(t)

	mod := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.WriteInput("run-1", "aqp4", FileFingerprint{Path: "aqp4.vcf", Size: 1234, ModTime: mod}))
	require.NoError(t, s.WriteCalls("run-1", []CallResult{
		result("aqp4", "BACH0001", "24439072", "0|0", genotype.HomozygousReference, 0),
	}))

	inputs, err := s.Inputs("run-1")
	require.NoError(t, err)
	require.Contains(t, inputs, "aqp4")
	assert.Equal(t, int64(1234), inputs["aqp4"].Size)
	assert.True(t, mod.Equal(inputs["aqp4"].ModTime))

	require.NoError(t, s.ClearRun("run-1"))

	n, err := s.CountCalls("run-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	inputs, err = s.Inputs("run-1")
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.vcf")
	require.NoError(t, os.WriteFile(path, []byte("#CHROM\n"), 0o644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(7), fp.Size)

	_, err = StatFile(filepath.Join(t.TempDir(), "missing.vcf"))
	assert.Error(t, err)
}
