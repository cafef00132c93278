package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/snp2redcap/internal/genotype"
	"github.com/inodb/snp2redcap/internal/vcf"
)

// CallResult is a classified call from one panel.
type CallResult struct {
	Panel    string
	Call     vcf.Call
	Category genotype.Category
}

// callKey is the composite key for deduplicating calls before writing.
type callKey struct {
	panel, sample, variant string
}

// WriteCalls batch-inserts a run's classified calls using the Appender API.
// Repeated (panel, sample, variant) entries keep the first occurrence.
func (s *Store) WriteCalls(runID string, results []CallResult) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[callKey]bool, len(results))
	deduped := make([]CallResult, 0, len(results))
	for _, r := range results {
		k := callKey{r.Panel, r.Call.SampleID, r.Call.VariantID}
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, r)
		}
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "genotype_calls")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		c := r.Call
		if err := appender.AppendRow(
			runID, r.Panel, c.SampleID, c.VariantID,
			c.Chrom, c.Position, c.Ref, c.Alt,
			c.Genotype, string(r.Category), c.Dosage,
		); err != nil {
			return fmt.Errorf("append call: %w", err)
		}
	}

	return appender.Flush()
}

// LookupSample returns a sample's calls for a run, ordered by panel and
// position.
func (s *Store) LookupSample(runID, sampleID string) ([]CallResult, error) {
	rows, err := s.db.Query(`SELECT
		panel, sample_id, variant_id, chrom, position, ref, alt,
		genotype, category, dosage
		FROM genotype_calls
		WHERE run_id=? AND sample_id=?
		ORDER BY panel, TRY_CAST(position AS BIGINT), position`,
		runID, sampleID)
	if err != nil {
		return nil, fmt.Errorf("query sample: %w", err)
	}
	defer rows.Close()

	var results []CallResult
	for rows.Next() {
		var r CallResult
		var category string
		c := &r.Call
		if err := rows.Scan(
			&r.Panel, &c.SampleID, &c.VariantID, &c.Chrom, &c.Position, &c.Ref, &c.Alt,
			&c.Genotype, &category, &c.Dosage,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		r.Category = genotype.Category(category)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return results, nil
}

// CountCalls returns the number of calls stored for a run.
func (s *Store) CountCalls(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM genotype_calls WHERE run_id=?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

// ClearRun removes every row stored for a run.
func (s *Store) ClearRun(runID string) error {
	if _, err := s.db.Exec("DELETE FROM genotype_calls WHERE run_id=?", runID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM input_files WHERE run_id=?", runID)
	return err
}
