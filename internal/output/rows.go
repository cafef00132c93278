package output

import (
	"encoding/csv"
	"io"
)

// RowWriter writes headerless space-delimited rows, the layout plink expects
// for --pheno and --covar files.
type RowWriter struct {
	w *csv.Writer
}

// NewRowWriter creates a space-delimited row writer.
func NewRowWriter(w io.Writer) *RowWriter {
	cw := csv.NewWriter(w)
	cw.Comma = ' '
	return &RowWriter{w: cw}
}

// Write writes a single row.
func (rw *RowWriter) Write(fields []string) error {
	return rw.w.Write(fields)
}

// Flush flushes buffered rows and reports any write error.
func (rw *RowWriter) Flush() error {
	rw.w.Flush()
	return rw.w.Error()
}
