// Package output provides writers for merged genotype tables and plink
// phenotype files.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/snp2redcap/internal/genotype"
)

// missingValue marks a field with no call for the sample.
const missingValue = "NA"

// WideWriter writes a merged genotype table as tab-delimited text with a
// header row: sample, then each allele field, then each dosage field.
type WideWriter struct {
	w *bufio.Writer
}

// NewWideWriter creates a new tab-delimited writer.
func NewWideWriter(w io.Writer) *WideWriter {
	return &WideWriter{w: bufio.NewWriter(w)}
}

// Write writes the header and every row of t, then flushes.
func (ww *WideWriter) Write(t *genotype.MergedTable) error {
	header := make([]string, 0, 1+len(t.AlleleFields)+len(t.DosageFields))
	header = append(header, "sample")
	header = append(header, t.AlleleFields...)
	header = append(header, t.DosageFields...)
	if _, err := ww.w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}

	values := make([]string, len(header))
	for _, row := range t.Rows {
		values = values[:0]
		values = append(values, row.SampleID)
		for _, f := range t.AlleleFields {
			cat, ok := row.Alleles[f]
			if !ok {
				values = append(values, missingValue)
				continue
			}
			values = append(values, string(cat))
		}
		for _, f := range t.DosageFields {
			ds, ok := row.Dosages[f]
			if !ok {
				values = append(values, missingValue)
				continue
			}
			values = append(values, strconv.FormatFloat(ds, 'f', -1, 64))
		}

		if _, err := ww.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}

	return ww.w.Flush()
}
