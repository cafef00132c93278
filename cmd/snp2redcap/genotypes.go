package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/snp2redcap/internal/config"
	"github.com/inodb/snp2redcap/internal/duckdb"
	"github.com/inodb/snp2redcap/internal/output"
	"github.com/inodb/snp2redcap/internal/pipeline"
	"github.com/inodb/snp2redcap/internal/redcap"
)

type genotypesOptions struct {
	panels   []string
	dryRun   bool
	wideOut  string
	snapshot string
}

func newGenotypesCmd() *cobra.Command {
	var opts genotypesOptions

	cmd := &cobra.Command{
		Use:   "genotypes",
		Short: "Classify panel genotypes and import them into REDCap",
		Long: `Load each configured panel's VCF extract, classify every call as
homozygous reference (1), heterozygous (2) or homozygous alternate (3),
join the panels by sample and import one genomics record per participant.`,
		Example: `  snp2redcap genotypes
  snp2redcap genotypes --panel aqp4=extract/aqp4.vcf.gz --panel apoe=extract/apoe.vcf.gz
  snp2redcap genotypes --dry-run --wide-out wide.tsv
  snp2redcap genotypes --snapshot calls.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenotypes(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.panels, "panel", nil, "Override a panel's file as name=path (repeatable, '-' for stdin)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print the records as JSON instead of importing them")
	f.StringVar(&opts.wideOut, "wide-out", "", "Write the merged wide table as TSV to this file")
	f.StringVar(&opts.snapshot, "snapshot", "", "Write classified calls to this DuckDB file")

	return cmd
}

func runGenotypes(ctx context.Context, opts genotypesOptions) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyPanelOverrides(cfg, opts.panels); err != nil {
		return usageError{err}
	}
	if !opts.dryRun && cfg.Env.APIKey == "" {
		return usageError{fmt.Errorf("REDCAP_API_KEY is not set (use --dry-run to skip the import)")}
	}

	runID := newRunID()
	logger = logger.With(zap.String("run_id", runID))

	g := pipeline.NewGenotypes(cfg, runID)
	g.SetLogger(logger)

	if opts.snapshot != "" {
		store, err := duckdb.Open(opts.snapshot)
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer store.Close()
		g.SetSink(store)
		logger.Info("writing snapshot", zap.String("path", opts.snapshot))
	}

	res, err := g.Build()
	if err != nil {
		return err
	}

	if opts.wideOut != "" {
		if err := writeWide(opts.wideOut, res); err != nil {
			return err
		}
		logger.Info("wrote wide table", zap.String("path", opts.wideOut))
	}

	if opts.dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Records)
	}

	client, err := redcap.NewClient(redcap.Options{
		URL:        cfg.Env.APIURL,
		Token:      cfg.Env.APIKey,
		Timeout:    cfg.Env.Timeout,
		MaxRetries: cfg.Env.MaxRetries,
	})
	if err != nil {
		return err
	}
	client.SetLogger(logger)

	n, err := g.Upload(ctx, client, res.Records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Imported %d records\n", n)
	return nil
}

// applyPanelOverrides replaces panel files from name=path arguments.
func applyPanelOverrides(cfg *config.Config, overrides []string) error {
	for _, o := range overrides {
		name, path, ok := strings.Cut(o, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("invalid --panel %q, expected name=path", o)
		}
		found := false
		for i := range cfg.Panels {
			if cfg.Panels[i].Name == name {
				cfg.Panels[i].File = path
				found = true
			}
		}
		if !found {
			return fmt.Errorf("unknown panel %q", name)
		}
	}
	return nil
}

func writeWide(path string, res *pipeline.GenotypeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wide table: %w", err)
	}
	if err := output.NewWideWriter(f).Write(res.Merged); err != nil {
		f.Close()
		return fmt.Errorf("writing wide table: %w", err)
	}
	return f.Close()
}
