// Package pheno joins REDCap phenotype exports with a genotyping manifest
// and writes plink phenotype and covariate files.
package pheno

import (
	"fmt"
	"strings"

	linq "github.com/ahmetb/go-linq"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/inodb/snp2redcap/internal/plink"
)

// Clinical is the subset of a REDCap record used for GWAS files.
type Clinical struct {
	IDNo      string `mapstructure:"idno"`
	Event     string `mapstructure:"redcap_event_name"`
	Sex       string `mapstructure:"sex"`
	Age       string `mapstructure:"age"`
	Education string `mapstructure:"education"`
	Phenotype string `mapstructure:"-"`
}

// CovariateFields are exported alongside the phenotype field.
var CovariateFields = []string{"sex", "age", "education"}

// ExportFields returns the REDCap fields to export for phenotypeField.
func ExportFields(phenotypeField string) []string {
	fields := []string{"idno"}
	fields = append(fields, CovariateFields...)
	return append(fields, phenotypeField)
}

// DecodeClinical decodes exported rows. The phenotype is read from
// phenotypeField.
func DecodeClinical(rows []map[string]string, phenotypeField string) ([]Clinical, error) {
	out := make([]Clinical, 0, len(rows))
	for i, row := range rows {
		var c Clinical
		if err := mapstructure.Decode(row, &c); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		if _, ok := row["idno"]; !ok {
			return nil, fmt.Errorf("decode record %d: no idno field", i)
		}
		c.Phenotype = row[phenotypeField]
		out = append(out, c)
	}
	return out, nil
}

// Subject is a clinical record matched to its genotyping sample.
type Subject struct {
	FID       string
	IID       string
	IDNo      string
	Sex       string
	Age       string
	Education string
	Phenotype string
}

// Builder matches clinical records to manifest rows.
type Builder struct {
	// IDSuffix selects the records of one event instance, e.g. "--1".
	IDSuffix string
	logger   *zap.Logger
}

// NewBuilder creates a builder keeping records whose idno ends in idSuffix.
func NewBuilder(idSuffix string) *Builder {
	return &Builder{IDSuffix: idSuffix, logger: zap.NewNop()}
}

// SetLogger sets the logger for unmatched and ambiguous records.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Build returns one subject per distinct study ID found in the manifest,
// sorted by FID then IID. A study ID is the part of idno before "--".
// Matching is by substring of the manifest IID; a later record with the same
// study ID replaces the earlier one. Study IDs sharing an IID are kept, in
// study ID order, with a warning.
func (b *Builder) Build(records []Clinical, manifest []plink.Sample) []Subject {
	var selected []Clinical
	linq.From(records).
		WhereT(func(c Clinical) bool { return strings.HasSuffix(c.IDNo, b.IDSuffix) }).
		SelectT(func(c Clinical) Clinical {
			c.IDNo = StudyID(c.IDNo)
			return c
		}).
		ToSlice(&selected)

	byID := make(map[string]Subject)
	iidOwner := make(map[string]string)
	for _, c := range selected {
		if c.IDNo == "" {
			b.logger.Warn("skipping record with empty idno")
			continue
		}

		s, n := plink.Match(manifest, c.IDNo)
		switch {
		case n == 0:
			b.logger.Debug("no manifest sample for record", zap.String("idno", c.IDNo))
			continue
		case n > 1:
			b.logger.Warn("record matches several manifest samples, using the first",
				zap.String("idno", c.IDNo),
				zap.String("iid", s.IndividualID),
				zap.Int("matches", n))
		}

		if owner, ok := iidOwner[s.IndividualID]; ok && owner != c.IDNo {
			b.logger.Warn("manifest sample already matched by another record",
				zap.String("iid", s.IndividualID),
				zap.String("idno", c.IDNo),
				zap.String("first_idno", owner))
		} else if !ok {
			iidOwner[s.IndividualID] = c.IDNo
		}

		byID[c.IDNo] = Subject{
			FID:       s.FamilyID,
			IID:       s.IndividualID,
			IDNo:      c.IDNo,
			Sex:       c.Sex,
			Age:       c.Age,
			Education: c.Education,
			Phenotype: c.Phenotype,
		}
	}

	var subjects []Subject
	linq.From(byID).
		SelectT(func(kv linq.KeyValue) Subject { return kv.Value.(Subject) }).
		OrderByT(func(s Subject) string { return s.FID }).
		ThenByT(func(s Subject) string { return s.IID }).
		ThenByT(func(s Subject) string { return s.IDNo }).
		ToSlice(&subjects)

	return subjects
}

// StudyID strips the event instance suffix from a REDCap idno.
func StudyID(idno string) string {
	id, _, _ := strings.Cut(idno, "--")
	return id
}
