package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/snp2redcap/internal/config"
)

func newConfigCmd() *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the panel and record configuration",
		Long: `Print the effective configuration (built-in panels and constants overlaid
with ~/.snp2redcap.yaml), or get and set single keys. Panels are lists and
are edited in the config file directly.`,
		Example: `  snp2redcap config
  snp2redcap config --defaults
  snp2redcap config get records.event
  snp2redcap config set pheno.phenotype_field vrii_total_raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaults {
				cfg := config.Default()
				return printYAML(cmd.OutOrStdout(), &cfg)
			}
			cfg, err := config.Effective(viper.GetViper())
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show the built-in configuration only")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := config.Get(viper.GetViper(), args[0])
			if err != nil {
				return usageError{err}
			}
			switch val.(type) {
			case []interface{}, map[string]interface{}:
				return printYAML(cmd.OutOrStdout(), val)
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a scalar key and save the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(viper.GetViper(), args[0], args[1]); err != nil {
				return usageError{err}
			}
			path, err := defaultConfigPath()
			if err != nil {
				return err
			}
			if err := viper.WriteConfigAs(path); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	})

	return cmd
}

func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
