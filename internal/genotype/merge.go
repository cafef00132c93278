package genotype

import (
	"fmt"
	"sort"
)

// MergedRow is one sample's renamed allele and dosage fields across panels.
// A field is absent when the sample had no call for it.
type MergedRow struct {
	SampleID string
	Alleles  map[string]Category
	Dosages  map[string]float64
}

// MergedTable is the left join of several panels' wide tables.
type MergedTable struct {
	AlleleFields []string // Renamed allele columns, in panel then position order
	DosageFields []string // Renamed dosage columns, in panel then position order
	Rows         []MergedRow
}

// Merge left-joins right onto left by sample ID and renames position-keyed
// columns using renames. Samples found only in right are dropped.
func Merge(left, right *WideTable, renames map[string]string) (*MergedTable, error) {
	return MergeAll([]*WideTable{left, right}, renames)
}

// MergeAll left-joins every table onto the first. The tables' column sets
// must be disjoint and every key of renames must name a column of one of
// them. Columns without a rename keep their position-keyed name.
func MergeAll(tables []*WideTable, renames map[string]string) (*MergedTable, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("merge: no tables")
	}

	owner := make(map[string]int)
	for i, t := range tables {
		for _, col := range t.Columns() {
			if j, ok := owner[col]; ok {
				return nil, fmt.Errorf("merge: column %s present in tables %d and %d", col, j, i)
			}
			owner[col] = i
		}
	}

	keys := make([]string, 0, len(renames))
	for k := range renames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := owner[k]; !ok {
			return nil, &MissingColumnError{Column: k, Field: renames[k]}
		}
	}

	rename := func(col string) string {
		if name, ok := renames[col]; ok {
			return name
		}
		return col
	}

	m := &MergedTable{}
	for _, t := range tables {
		for _, pos := range t.Positions {
			m.AlleleFields = append(m.AlleleFields, rename(AllelesColumn(pos)))
			m.DosageFields = append(m.DosageFields, rename(DosageColumn(pos)))
		}
	}

	base := tables[0]
	m.Rows = make([]MergedRow, 0, len(base.Rows))
	for _, row := range base.Rows {
		merged := MergedRow{
			SampleID: row.SampleID,
			Alleles:  make(map[string]Category),
			Dosages:  make(map[string]float64),
		}
		for _, t := range tables {
			r, ok := t.Row(row.SampleID)
			if !ok {
				continue
			}
			for pos, v := range r.Values {
				merged.Alleles[rename(AllelesColumn(pos))] = v.Category
				merged.Dosages[rename(DosageColumn(pos))] = v.Dosage
			}
		}
		m.Rows = append(m.Rows, merged)
	}

	return m, nil
}

// MissingColumnError reports a renamed column that no panel produced, e.g. a
// SNP absent from the panel's variant file.
type MissingColumnError struct {
	Column string
	Field  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %s (for field %s): position not present in any panel", e.Column, e.Field)
}
