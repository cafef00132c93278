package redcap

import (
	"strings"

	"github.com/inodb/snp2redcap/internal/genotype"
)

// Record is one flat REDCap record: field name to value.
type Record map[string]interface{}

// RecordOptions are the constants written into every genomics record.
type RecordOptions struct {
	IDField       string // Record ID field, e.g. "idno"
	IDPrefix      string // Project prefix removed from sample IDs
	IDSuffix      string // Event suffix appended to the record ID
	Event         string // Value of redcap_event_name
	CompleteField string // Form status field
	CompleteValue string // Form status value
}

// EventField is the field naming a record's longitudinal event.
const EventField = "redcap_event_name"

// RecordID derives the REDCap record ID of a sample.
func (o RecordOptions) RecordID(sampleID string) string {
	return strings.TrimPrefix(sampleID, o.IDPrefix) + o.IDSuffix
}

// BuildRecords converts merged rows into import records. Allele categories
// are sent as strings and dosages as numbers. Fields with no call for a
// sample are left out of its record.
func BuildRecords(t *genotype.MergedTable, opts RecordOptions) []Record {
	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := Record{
			opts.IDField: opts.RecordID(row.SampleID),
		}
		if opts.CompleteField != "" {
			rec[opts.CompleteField] = opts.CompleteValue
		}
		if opts.Event != "" {
			rec[EventField] = opts.Event
		}

		for _, f := range t.AlleleFields {
			if cat, ok := row.Alleles[f]; ok {
				rec[f] = string(cat)
			}
		}
		for _, f := range t.DosageFields {
			if ds, ok := row.Dosages[f]; ok {
				rec[f] = ds
			}
		}

		records = append(records, rec)
	}
	return records
}
