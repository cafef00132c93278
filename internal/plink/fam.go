// Package plink reads plink FAM sample manifests.
package plink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sample is one FAM row. Only the family and individual IDs are used.
type Sample struct {
	FamilyID     string
	IndividualID string
	Line         int
}

// LoadFAM reads a FAM file from disk.
func LoadFAM(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fam file: %w", err)
	}
	defer f.Close()

	samples, err := ReadFAM(f)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return samples, nil
}

// ReadFAM reads whitespace-delimited FAM rows. Blank lines are skipped.
func ReadFAM(r io.Reader) ([]Sample, error) {
	var samples []Sample

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, &ParseError{Line: lineNumber, Message: "expected family and individual IDs"}
		}
		samples = append(samples, Sample{
			FamilyID:     fields[0],
			IndividualID: fields[1],
			Line:         lineNumber,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fam file: %w", err)
	}

	return samples, nil
}

// Match returns the first sample whose individual ID contains id, and the
// total number of samples that do. Genotyping IDs embed the study ID with
// array prefixes, so containment rather than equality is tested; callers
// should treat matches > 1 as ambiguous.
func Match(samples []Sample, id string) (Sample, int) {
	var first Sample
	matches := 0
	for _, s := range samples {
		if !strings.Contains(s.IndividualID, id) {
			continue
		}
		if matches == 0 {
			first = s
		}
		matches++
	}
	return first, matches
}

// ParseError reports a malformed FAM row.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fam parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("fam parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
}
