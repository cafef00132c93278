package pheno

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/inodb/snp2redcap/internal/output"
)

// Layout is one plink input file: its name and the columns of each row.
type Layout struct {
	Name    string
	Columns func(Subject) []string
}

// Layouts are the phenotype file and the two covariate sets.
var Layouts = []Layout{
	{
		Name:    "pheno.txt",
		Columns: func(s Subject) []string { return []string{s.FID, s.IID, s.Phenotype} },
	},
	{
		Name:    "covars.txt",
		Columns: func(s Subject) []string { return []string{s.FID, s.IID, s.Sex, s.Age} },
	},
	{
		Name:    "covars2.txt",
		Columns: func(s Subject) []string { return []string{s.FID, s.IID, s.Sex, s.Age, s.Education} },
	},
}

// WriteFiles writes every layout for subjects into dir and returns the paths
// written.
func WriteFiles(dir string, subjects []Subject) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, len(Layouts))
	for _, l := range Layouts {
		path := filepath.Join(dir, l.Name)
		if err := writeLayout(path, l, subjects); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeLayout(path string, l Layout, subjects []Subject) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", l.Name, err)
	}

	w := output.NewRowWriter(f)
	for _, s := range subjects {
		if err := w.Write(l.Columns(s)); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", l.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", l.Name, err)
	}
	return f.Close()
}
