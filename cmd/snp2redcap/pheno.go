package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/snp2redcap/internal/pipeline"
	"github.com/inodb/snp2redcap/internal/redcap"
)

type phenoOptions struct {
	fam    string
	outDir string
}

func newPhenoCmd() *cobra.Command {
	var opts phenoOptions

	cmd := &cobra.Command{
		Use:   "pheno",
		Short: "Export REDCap phenotypes as plink pheno and covariate files",
		Long: `Export idno, sex, age, education and the configured phenotype field
from REDCap, match each participant to its sample in the FAM manifest and
write pheno.txt, covars.txt and covars2.txt.`,
		Example: `  snp2redcap pheno
  snp2redcap pheno --fam /data/gwas/chr1.fam --out-dir gwas/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPheno(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.fam, "fam", "", "FAM manifest (default: $GWAS_FOLDER/<pheno.fam_file>)")
	f.StringVar(&opts.outDir, "out-dir", ".", "Directory for the output files")

	return cmd
}

func runPheno(ctx context.Context, opts phenoOptions) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Env.APIKey == "" {
		return usageError{fmt.Errorf("REDCAP_API_KEY is not set")}
	}

	famPath := opts.fam
	if famPath == "" {
		famPath = cfg.FAMPath()
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

	p := pipeline.NewPhenotypes(cfg)
	p.SetLogger(logger)

	paths, err := p.Run(ctx, client, famPath, opts.outDir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	}
	return nil
}
