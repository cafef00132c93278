package genotype

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/inodb/snp2redcap/internal/vcf"
)

// Column name suffixes of the position-keyed wide columns.
const (
	AllelesSuffix = "_alleles"
	DosageSuffix  = "_dosage"
)

// AllelesColumn returns the allele-category column name for a position.
func AllelesColumn(pos string) string { return pos + AllelesSuffix }

// DosageColumn returns the dosage column name for a position.
func DosageColumn(pos string) string { return pos + DosageSuffix }

// Value is the classified call of one sample at one position.
type Value struct {
	Category Category
	Dosage   float64
}

// WideRow holds every position's value for one sample.
type WideRow struct {
	SampleID string
	Values   map[string]Value // keyed by position
}

// WideTable is one row per sample with a pair of columns per position.
type WideTable struct {
	Positions []string  // Distinct positions, ascending
	Rows      []WideRow // Sorted by sample ID
}

// Observation is a long-form (sample, position) value.
type Observation struct {
	SampleID string
	Position string
	Category Category
	Dosage   float64
}

// Pivot classifies each call and groups the calls by sample. Each
// (sample, position) pair must occur at most once.
func Pivot(calls []vcf.Call, c Classifier) (*WideTable, error) {
	bySample := make(map[string]map[string]Value)
	positions := make(map[string]bool)

	for _, call := range calls {
		cat, err := c.Classify(call.Genotype)
		if err != nil {
			return nil, fmt.Errorf("classify sample %s at %s: %w", call.SampleID, call.VariantID, err)
		}

		values, ok := bySample[call.SampleID]
		if !ok {
			values = make(map[string]Value)
			bySample[call.SampleID] = values
		}
		if _, dup := values[call.Position]; dup {
			return nil, &DuplicateCallError{SampleID: call.SampleID, Position: call.Position}
		}

		values[call.Position] = Value{Category: cat, Dosage: call.Dosage}
		positions[call.Position] = true
	}

	t := &WideTable{
		Positions: make([]string, 0, len(positions)),
		Rows:      make([]WideRow, 0, len(bySample)),
	}
	for pos := range positions {
		t.Positions = append(t.Positions, pos)
	}
	sortPositions(t.Positions)

	for sample, values := range bySample {
		t.Rows = append(t.Rows, WideRow{SampleID: sample, Values: values})
	}
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i].SampleID < t.Rows[j].SampleID })

	return t, nil
}

// Melt flattens a wide table back into long form.
func Melt(t *WideTable) []Observation {
	var obs []Observation
	for _, row := range t.Rows {
		for _, pos := range t.Positions {
			v, ok := row.Values[pos]
			if !ok {
				continue
			}
			obs = append(obs, Observation{
				SampleID: row.SampleID,
				Position: pos,
				Category: v.Category,
				Dosage:   v.Dosage,
			})
		}
	}
	return obs
}

// Columns returns the data column names: alleles then dosage, per position.
func (t *WideTable) Columns() []string {
	cols := make([]string, 0, 2*len(t.Positions))
	for _, pos := range t.Positions {
		cols = append(cols, AllelesColumn(pos), DosageColumn(pos))
	}
	return cols
}

// Row returns the row for a sample.
func (t *WideTable) Row(sampleID string) (WideRow, bool) {
	i := sort.Search(len(t.Rows), func(i int) bool { return t.Rows[i].SampleID >= sampleID })
	if i < len(t.Rows) && t.Rows[i].SampleID == sampleID {
		return t.Rows[i], true
	}
	return WideRow{}, false
}

// sortPositions orders integer positions numerically, ahead of any
// non-integer positions, which sort as strings.
func sortPositions(positions []string) {
	sort.Slice(positions, func(i, j int) bool {
		a, errA := strconv.ParseInt(positions[i], 10, 64)
		b, errB := strconv.ParseInt(positions[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return positions[i] < positions[j]
	})
}

// DuplicateCallError reports more than one call for a sample at a position.
type DuplicateCallError struct {
	SampleID string
	Position string
}

func (e *DuplicateCallError) Error() string {
	return fmt.Sprintf("duplicate call for sample %s at position %s", e.SampleID, e.Position)
}
