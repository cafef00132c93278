package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// FixedColumns are the positional columns preceding the per-sample columns.
var FixedColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}

const idColumn = 2

// Table is the long-form content of one genotype file.
type Table struct {
	Path     string   // Source path ("" when read from a stream)
	Meta     []string // Comment lines preceding the header
	Header   []string // Cleaned header fields
	Samples  []string // Cleaned sample names, in header order
	Variants []string // Variant IDs, in file order
	Calls    []Call   // One call per (variant, sample), variants in file order
}

// Loader reads genotype files produced by `bcftools view` on a panel of SNPs.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader that logs nothing.
func NewLoader() *Loader {
	return &Loader{logger: zap.NewNop()}
}

// SetLogger sets the logger for warning and debug messages.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load reads a genotype file from disk. Gzipped files are detected by their
// magic bytes. Use "-" for stdin.
func (l *Loader) Load(path string) (*Table, error) {
	if path == "-" {
		return l.Read("", os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genotype file: %w", err)
	}
	defer f.Close()

	return l.Read(path, f)
}

// Read reads a genotype file from r. The name is used in error messages.
func (l *Loader) Read(name string, r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		br = bufio.NewReader(gz)
	}

	comments, rows, err := splitLines(br)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayName(name), err)
	}

	if len(comments) == 0 {
		return nil, &ParseError{Path: name, Message: "no # header line found"}
	}

	header := comments[len(comments)-1]
	t := &Table{
		Path: name,
		Meta: make([]string, 0, len(comments)-1),
	}
	for _, c := range comments[:len(comments)-1] {
		t.Meta = append(t.Meta, c.text)
	}

	fields := strings.Split(header.text, "\t")
	if len(fields) < len(FixedColumns) {
		return nil, &ParseError{
			Path:    name,
			Line:    header.number,
			Message: fmt.Sprintf("header has %d columns, expected at least %d", len(fields), len(FixedColumns)+1),
		}
	}
	if len(fields) == len(FixedColumns) {
		return nil, &ParseError{Path: name, Line: header.number, Message: "no sample columns"}
	}

	samples, collided := CleanSampleNames(fields[len(FixedColumns):])
	if collided {
		l.logger.Warn("sample names collide after prefix removal, keeping raw names",
			zap.String("file", displayName(name)))
	}
	t.Samples = samples
	t.Header = make([]string, 0, len(fields))
	for _, f := range fields[:len(FixedColumns)] {
		t.Header = append(t.Header, CleanColumn(f, false))
	}
	t.Header = append(t.Header, samples...)

	t.Calls = make([]Call, 0, len(rows)*len(samples))
	for _, row := range rows {
		calls, variantID, err := parseRow(name, row, len(fields), samples)
		if err != nil {
			return nil, err
		}
		t.Variants = append(t.Variants, variantID)
		t.Calls = append(t.Calls, calls...)
	}

	l.logger.Debug("loaded genotype file",
		zap.String("file", displayName(name)),
		zap.Int("samples", len(t.Samples)),
		zap.Int("variants", len(t.Variants)))

	return t, nil
}

// line is a non-empty input line with its 1-based line number.
type line struct {
	number int
	text   string
}

// splitLines separates # comment lines from data lines. Empty lines are
// dropped.
func splitLines(r *bufio.Reader) (comments, rows []line, err error) {
	n := 0
	for {
		text, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, nil, err
		}
		if text == "" && err == io.EOF {
			return comments, rows, nil
		}
		n++

		text = strings.TrimRight(text, "\r\n")
		switch {
		case text == "":
		case strings.HasPrefix(text, "#"):
			comments = append(comments, line{number: n, text: text})
		default:
			rows = append(rows, line{number: n, text: text})
		}

		if err == io.EOF {
			return comments, rows, nil
		}
	}
}

// parseRow splits a data line into one Call per sample.
func parseRow(name string, row line, width int, samples []string) ([]Call, string, error) {
	fields := strings.Split(row.text, "\t")
	if len(fields) != width {
		return nil, "", &ParseError{
			Path:    name,
			Line:    row.number,
			Message: fmt.Sprintf("expected %d columns, found %d", width, len(fields)),
		}
	}

	variantID := fields[idColumn]
	chrom, pos, ref, alt, err := SplitVariantID(variantID)
	if err != nil {
		return nil, "", &FormatError{
			Path:    name,
			Line:    row.number,
			Variant: variantID,
			Value:   variantID,
			Message: err.Error(),
		}
	}

	calls := make([]Call, 0, len(samples))
	for i, sample := range samples {
		cell := fields[len(FixedColumns)+i]
		gt, ds, err := splitGenotypeCell(cell)
		if err != nil {
			return nil, "", &FormatError{
				Path:    name,
				Line:    row.number,
				Sample:  sample,
				Variant: variantID,
				Value:   cell,
				Message: err.Error(),
			}
		}
		calls = append(calls, Call{
			SampleID:  sample,
			VariantID: variantID,
			Chrom:     chrom,
			Position:  pos,
			Ref:       ref,
			Alt:       alt,
			Genotype:  gt,
			Dosage:    ds,
		})
	}

	return calls, variantID, nil
}

// splitGenotypeCell parses a GT:DS[:...] sample cell. Components after the
// dosage are ignored.
func splitGenotypeCell(cell string) (string, float64, error) {
	parts := strings.SplitN(cell, ":", 3)
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("expected GT:DS, found %d component(s)", len(parts))
	}

	ds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid dosage: %s", parts[1])
	}

	return parts[0], ds, nil
}

// CleanColumn normalizes a header field: the line ending and leading '#' are
// removed, and when stripPrefix is set everything up to and including the
// first underscore is discarded.
func CleanColumn(col string, stripPrefix bool) string {
	col = strings.TrimRight(col, "\r\n")
	col = strings.TrimLeft(col, "#")
	if stripPrefix {
		if _, rest, found := strings.Cut(col, "_"); found {
			col = rest
		}
	}
	return col
}

// CleanSampleNames strips the caller-supplied prefix from each sample column.
// If two cleaned names would be identical the raw names are returned instead
// and collided is true.
func CleanSampleNames(raw []string) (names []string, collided bool) {
	names = make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, col := range raw {
		names[i] = CleanColumn(col, true)
		if seen[names[i]] {
			collided = true
		}
		seen[names[i]] = true
	}

	if !collided {
		return names, false
	}

	for i, col := range raw {
		names[i] = CleanColumn(col, false)
	}
	return names, true
}

func displayName(name string) string {
	if name == "" {
		return "<stdin>"
	}
	return name
}

// ParseError reports a structural problem with a genotype file.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("vcf parse error in %s: %s", displayName(e.Path), e.Message)
	}
	return fmt.Sprintf("vcf parse error in %s at line %d: %s", displayName(e.Path), e.Line, e.Message)
}

// FormatError reports a malformed cell value.
type FormatError struct {
	Path    string
	Line    int
	Sample  string
	Variant string
	Value   string
	Message string
}

func (e *FormatError) Error() string {
	if e.Sample == "" {
		return fmt.Sprintf("vcf format error in %s at line %d (variant %s): %s",
			displayName(e.Path), e.Line, e.Variant, e.Message)
	}
	return fmt.Sprintf("vcf format error in %s at line %d (variant %s, sample %s): %q: %s",
		displayName(e.Path), e.Line, e.Variant, e.Sample, e.Value, e.Message)
}
