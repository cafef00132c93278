package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/snp2redcap/internal/config"
	"github.com/inodb/snp2redcap/internal/pheno"
	"github.com/inodb/snp2redcap/internal/plink"
)

// RecordExporter returns flat REDCap records, e.g. *redcap.Client.
type RecordExporter interface {
	ExportRecords(ctx context.Context, fields, events []string) ([]map[string]string, error)
}

// Phenotypes writes plink phenotype and covariate files from REDCap data.
type Phenotypes struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPhenotypes creates the phenotype pipeline for cfg.
func NewPhenotypes(cfg *config.Config) *Phenotypes {
	return &Phenotypes{cfg: cfg, logger: zap.NewNop()}
}

// SetLogger sets the logger.
func (p *Phenotypes) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Run exports the clinical fields, matches them against the FAM manifest at
// famPath and writes the output files into outDir.
func (p *Phenotypes) Run(ctx context.Context, exporter RecordExporter, famPath, outDir string) ([]string, error) {
	manifest, err := plink.LoadFAM(famPath)
	if err != nil {
		return nil, err
	}

	field := p.cfg.Pheno.PhenotypeField
	rows, err := exporter.ExportRecords(ctx, pheno.ExportFields(field), []string{p.cfg.Pheno.Event})
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}

	records, err := pheno.DecodeClinical(rows, field)
	if err != nil {
		return nil, err
	}

	b := pheno.NewBuilder(p.cfg.Pheno.IDSuffix)
	b.SetLogger(p.logger)
	subjects := b.Build(records, manifest)

	p.logger.Info("matched subjects",
		zap.Int("records", len(records)),
		zap.Int("manifest", len(manifest)),
		zap.Int("subjects", len(subjects)))

	paths, err := pheno.WriteFiles(outDir, subjects)
	if err != nil {
		return nil, err
	}
	return paths, nil
}
