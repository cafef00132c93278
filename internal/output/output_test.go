package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/snp2redcap/internal/genotype"
)

func TestWideWriter(t *testing.T) {
	table := &genotype.MergedTable{
		AlleleFields: []string{"aqp4_allele1", "apoe_allele1"},
		DosageFields: []string{"aqp4_dosage1", "apoe_dosage1"},
		Rows: []genotype.MergedRow{
			{
				SampleID: "BACH0001",
				Alleles:  map[string]genotype.Category{"aqp4_allele1": "1", "apoe_allele1": "3"},
				Dosages:  map[string]float64{"aqp4_dosage1": 0.01, "apoe_dosage1": 1.98},
			},
			{
				SampleID: "BACH0003",
				Alleles:  map[string]genotype.Category{"aqp4_allele1": "2"},
				Dosages:  map[string]float64{"aqp4_dosage1": 1},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWideWriter(&buf).Write(table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "sample\taqp4_allele1\tapoe_allele1\taqp4_dosage1\tapoe_dosage1", lines[0])
	assert.Equal(t, "BACH0001\t1\t3\t0.01\t1.98", lines[1])
	assert.Equal(t, "BACH0003\t2\tNA\t1\tNA", lines[2])
}

func TestRowWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRowWriter(&buf)

	require.NoError(t, w.Write([]string{"1", "204001230001_BACH0001", "42"}))
	require.NoError(t, w.Write([]string{"2", "204001230002_BACH0002", ""}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "1 204001230001_BACH0001 42\n2 204001230002_BACH0002 \n", buf.String())
}
