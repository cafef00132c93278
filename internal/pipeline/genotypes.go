// Package pipeline runs the genotype upload and phenotype export end to end.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/snp2redcap/internal/config"
	"github.com/inodb/snp2redcap/internal/duckdb"
	"github.com/inodb/snp2redcap/internal/genotype"
	"github.com/inodb/snp2redcap/internal/redcap"
	"github.com/inodb/snp2redcap/internal/vcf"
)

// RecordImporter accepts genomics records, e.g. *redcap.Client.
type RecordImporter interface {
	ImportRecords(ctx context.Context, records []redcap.Record) (int, error)
}

// CallSink receives the classified calls of each panel, e.g. *duckdb.Store.
type CallSink interface {
	WriteInput(runID, panel string, fp duckdb.FileFingerprint) error
	WriteCalls(runID string, results []duckdb.CallResult) error
}

// PanelData is one loaded and pivoted panel.
type PanelData struct {
	Panel config.Panel
	Table *vcf.Table
	Wide  *genotype.WideTable
}

// GenotypeResult is everything derived from the panels of one run.
type GenotypeResult struct {
	Panels  []*PanelData
	Merged  *genotype.MergedTable
	Records []redcap.Record
}

// Genotypes turns panel variant files into REDCap genomics records.
type Genotypes struct {
	cfg    *config.Config
	runID  string
	loader *vcf.Loader
	sink   CallSink
	logger *zap.Logger
}

// NewGenotypes creates the genotype pipeline for cfg. runID labels snapshot
// rows and log lines.
func NewGenotypes(cfg *config.Config, runID string) *Genotypes {
	return &Genotypes{
		cfg:    cfg,
		runID:  runID,
		loader: vcf.NewLoader(),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for the pipeline and its loader.
func (g *Genotypes) SetLogger(l *zap.Logger) {
	g.logger = l
	g.loader.SetLogger(l)
}

// SetSink enables snapshotting of classified calls.
func (g *Genotypes) SetSink(s CallSink) {
	g.sink = s
}

// LoadPanel loads, classifies and pivots one panel's variant file.
func (g *Genotypes) LoadPanel(p config.Panel) (*PanelData, error) {
	table, err := g.loader.Load(p.File)
	if err != nil {
		return nil, fmt.Errorf("panel %s: %w", p.Name, err)
	}

	wide, err := genotype.Pivot(table.Calls, p.Classifier())
	if err != nil {
		return nil, fmt.Errorf("panel %s (%s): %w", p.Name, p.File, err)
	}

	g.logger.Info("loaded panel",
		zap.String("panel", p.Name),
		zap.String("file", p.File),
		zap.Int("samples", len(wide.Rows)),
		zap.Strings("positions", wide.Positions))

	if g.sink != nil {
		if err := g.snapshot(p, table, wide); err != nil {
			return nil, fmt.Errorf("panel %s: snapshot: %w", p.Name, err)
		}
	}

	return &PanelData{Panel: p, Table: table, Wide: wide}, nil
}

func (g *Genotypes) snapshot(p config.Panel, table *vcf.Table, wide *genotype.WideTable) error {
	if p.File != "-" {
		fp, err := duckdb.StatFile(p.File)
		if err != nil {
			return err
		}
		if err := g.sink.WriteInput(g.runID, p.Name, fp); err != nil {
			return err
		}
	}

	results := make([]duckdb.CallResult, 0, len(table.Calls))
	for _, c := range table.Calls {
		row, _ := wide.Row(c.SampleID)
		results = append(results, duckdb.CallResult{
			Panel:    p.Name,
			Call:     c,
			Category: row.Values[c.Position].Category,
		})
	}
	return g.sink.WriteCalls(g.runID, results)
}

// Build loads every configured panel, left-joins them in configuration
// order and builds the import records. Nothing is returned unless every
// panel succeeds.
func (g *Genotypes) Build() (*GenotypeResult, error) {
	res := &GenotypeResult{}
	renames := make(map[string]string)
	tables := make([]*genotype.WideTable, 0, len(g.cfg.Panels))

	for _, p := range g.cfg.Panels {
		pd, err := g.LoadPanel(p)
		if err != nil {
			return nil, err
		}
		res.Panels = append(res.Panels, pd)
		tables = append(tables, pd.Wide)
		for col, field := range p.Renames() {
			renames[col] = field
		}
	}

	merged, err := genotype.MergeAll(tables, renames)
	if err != nil {
		return nil, fmt.Errorf("merge panels: %w", err)
	}
	res.Merged = merged

	base := res.Panels[0].Wide
	for _, pd := range res.Panels[1:] {
		for _, row := range pd.Wide.Rows {
			if _, ok := base.Row(row.SampleID); !ok {
				g.logger.Warn("sample missing from first panel is dropped",
					zap.String("sample", row.SampleID),
					zap.String("panel", pd.Panel.Name))
			}
		}
	}

	res.Records = redcap.BuildRecords(merged, g.recordOptions())
	g.logger.Info("built records", zap.Int("records", len(res.Records)))

	return res, nil
}

// Upload imports records and checks that REDCap accepted all of them.
func (g *Genotypes) Upload(ctx context.Context, importer RecordImporter, records []redcap.Record) (int, error) {
	n, err := importer.ImportRecords(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("import records: %w", err)
	}
	if n != len(records) {
		g.logger.Warn("REDCap imported fewer records than sent",
			zap.Int("sent", len(records)),
			zap.Int("imported", n))
	}
	g.logger.Info("imported records", zap.Int("count", n))
	return n, nil
}

func (g *Genotypes) recordOptions() redcap.RecordOptions {
	r := g.cfg.Records
	return redcap.RecordOptions{
		IDField:       r.IDField,
		IDPrefix:      r.IDPrefix,
		IDSuffix:      r.IDSuffix,
		Event:         r.Event,
		CompleteField: r.CompleteField,
		CompleteValue: r.CompleteValue,
	}
}
