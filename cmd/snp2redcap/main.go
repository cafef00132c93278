// Package main provides the snp2redcap command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/snp2redcap/internal/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFile    string
	verbose    bool
}

var globals globalFlags

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by bad arguments.
type usageError struct{ error }

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snp2redcap",
		Short: "Upload SNP genotypes to REDCap and build plink phenotype files",
		Long: `snp2redcap classifies panel genotypes from per-panel VCF extracts, maps
them onto REDCap genomics fields and imports one record per participant.
It also exports clinical fields from REDCap and writes plink phenotype and
covariate files for the samples in a FAM manifest.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&globals.configFile, "config", "", "Config file (default: ~/.snp2redcap.yaml)")
	pf.StringVar(&globals.envFile, "env-file", ".env", "Environment file with REDCap credentials")
	pf.BoolVarP(&globals.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newGenotypesCmd())
	cmd.AddCommand(newPhenoCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() error {
	if globals.configFile != "" {
		viper.SetConfigFile(globals.configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".snp2redcap")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if globals.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// loadConfig resolves the run configuration from viper and the environment.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper(), globals.envFile)
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !globals.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func newRunID() string {
	return uuid.New().String()
}

// defaultConfigPath is where `config set` writes when no file was loaded.
func defaultConfigPath() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".snp2redcap.yaml"), nil
}
