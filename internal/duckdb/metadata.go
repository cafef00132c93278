package duckdb

import (
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// WriteInput records the variant file a panel was loaded from.
func (s *Store) WriteInput(runID, panel string, fp FileFingerprint) error {
	_, err := s.db.Exec(`INSERT INTO input_files VALUES (?, ?, ?, ?, ?)`,
		runID, panel, fp.Path, fp.Size, fp.ModTime.UTC())
	if err != nil {
		return fmt.Errorf("record input %s: %w", fp.Path, err)
	}
	return nil
}

// Inputs returns the input files recorded for a run, keyed by panel.
func (s *Store) Inputs(runID string) (map[string]FileFingerprint, error) {
	rows, err := s.db.Query(`SELECT panel, path, size, mod_time FROM input_files WHERE run_id=?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()

	inputs := make(map[string]FileFingerprint)
	for rows.Next() {
		var panel string
		var fp FileFingerprint
		if err := rows.Scan(&panel, &fp.Path, &fp.Size, &fp.ModTime); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		inputs[panel] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputs: %w", err)
	}
	return inputs, nil
}
