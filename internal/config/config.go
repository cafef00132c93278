// Package config holds the panel definitions, record constants and REDCap
// credentials used by both pipelines.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/inodb/snp2redcap/internal/genotype"
)

// SNP maps one panel position onto its REDCap fields.
type SNP struct {
	Position     string `mapstructure:"position" yaml:"position"`
	AllelesField string `mapstructure:"alleles_field" yaml:"alleles_field"`
	DosageField  string `mapstructure:"dosage_field" yaml:"dosage_field"`
}

// Panel is a set of SNPs extracted into one variant file.
type Panel struct {
	Name     string `mapstructure:"name" yaml:"name"`
	File     string `mapstructure:"file" yaml:"file"`
	RefIndex string `mapstructure:"ref_index" yaml:"ref_index"`
	AltIndex string `mapstructure:"alt_index" yaml:"alt_index"`
	SNPs     []SNP  `mapstructure:"snps" yaml:"snps"`
}

// Classifier returns the genotype classifier for the panel's ALT ordering.
func (p Panel) Classifier() genotype.Classifier {
	c := genotype.DefaultClassifier()
	if p.RefIndex != "" {
		c.RefIndex = p.RefIndex
	}
	if p.AltIndex != "" {
		c.AltIndex = p.AltIndex
	}
	return c
}

// Renames returns the position-keyed column to REDCap field lookup.
func (p Panel) Renames() map[string]string {
	m := make(map[string]string, 2*len(p.SNPs))
	for _, s := range p.SNPs {
		m[genotype.AllelesColumn(s.Position)] = s.AllelesField
		m[genotype.DosageColumn(s.Position)] = s.DosageField
	}
	return m
}

// Records holds the constants written into every imported genomics record.
type Records struct {
	IDField       string `mapstructure:"id_field" yaml:"id_field"`
	IDPrefix      string `mapstructure:"id_prefix" yaml:"id_prefix"`
	IDSuffix      string `mapstructure:"id_suffix" yaml:"id_suffix"`
	Event         string `mapstructure:"event" yaml:"event"`
	CompleteField string `mapstructure:"complete_field" yaml:"complete_field"`
	CompleteValue string `mapstructure:"complete_value" yaml:"complete_value"`
}

// Pheno configures the phenotype/covariate export.
type Pheno struct {
	Event          string `mapstructure:"event" yaml:"event"`
	PhenotypeField string `mapstructure:"phenotype_field" yaml:"phenotype_field"`
	IDSuffix       string `mapstructure:"id_suffix" yaml:"id_suffix"`
	FAMFile        string `mapstructure:"fam_file" yaml:"fam_file"`
}

// Env is the process environment block. Values may come from a .env file.
type Env struct {
	APIURL     string        `envconfig:"REDCAP_API_URL" default:"https://redcap.helix.monash.edu/api/"`
	APIKey     string        `envconfig:"REDCAP_API_KEY"`
	GWASFolder string        `envconfig:"GWAS_FOLDER"`
	MaxRetries int           `envconfig:"REDCAP_MAX_RETRIES" default:"3"`
	Timeout    time.Duration `envconfig:"REDCAP_TIMEOUT" default:"60s"`
}

// Config is the complete run configuration.
type Config struct {
	Panels  []Panel `mapstructure:"panels" yaml:"panels"`
	Records Records `mapstructure:"records" yaml:"records"`
	Pheno   Pheno   `mapstructure:"pheno" yaml:"pheno"`
	Env     Env     `mapstructure:"-" yaml:"-"`
}

// Default returns the AQP4/APOE configuration of the BACH study.
func Default() Config {
	return Config{
		Panels: []Panel{
			{
				Name:     "aqp4",
				File:     "aqp4.vcf",
				RefIndex: "0",
				AltIndex: "2",
				SNPs: []SNP{
					{Position: "24439072", AllelesField: "aqp4_allele1", DosageField: "aqp4_dosage1"},
					{Position: "24435587", AllelesField: "aqp4_allele2", DosageField: "aqp4_dosage2"},
					{Position: "24431689", AllelesField: "aqp4_allele3", DosageField: "aqp4_dosage3"},
				},
			},
			{
				Name:     "apoe",
				File:     "apoe.vcf",
				RefIndex: "0",
				AltIndex: "2",
				SNPs: []SNP{
					{Position: "45412079", AllelesField: "apoe_allele1", DosageField: "apoe_dosage1"},
					{Position: "45411941", AllelesField: "apoe_allele2", DosageField: "apoe_dosage2"},
				},
			},
		},
		Records: Records{
			IDField:       "idno",
			IDPrefix:      "BACH",
			IDSuffix:      "--1",
			Event:         "baseline_arm_1",
			CompleteField: "genomics_complete",
			CompleteValue: "2",
		},
		Pheno: Pheno{
			Event:          "baseline_arm_1",
			PhenotypeField: "vrii_total_raw",
			IDSuffix:       "--1",
			FAMFile:        "chr1.fam",
		},
	}
}

// Load builds the configuration from the defaults, the settings held by v
// and the environment. A .env file at dotenv is loaded first if it exists.
func Load(v *viper.Viper, dotenv string) (*Config, error) {
	cfg, err := Effective(v)
	if err != nil {
		return nil, err
	}

	env, err := LoadEnv(dotenv)
	if err != nil {
		return nil, err
	}
	cfg.Env = env

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Effective overlays the settings held by v on the defaults, without the
// environment block or validation.
func Effective(v *viper.Viper) (*Config, error) {
	cfg := Default()
	// Configured panels replace the defaults rather than merging into them.
	if v.IsSet("panels") {
		cfg.Panels = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv reads the environment block. Variables already set in the process
// take precedence over the .env file.
func LoadEnv(dotenv string) (Env, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("read environment: %w", err)
	}
	return env, nil
}

// Validate checks that panels are usable and that no REDCap field or
// position is claimed twice.
func (c *Config) Validate() error {
	if len(c.Panels) == 0 {
		return errors.New("config: no panels defined")
	}
	if c.Records.IDField == "" {
		return errors.New("config: records.id_field is empty")
	}

	names := make(map[string]bool)
	fields := make(map[string]string)
	positions := make(map[string]string)
	for _, p := range c.Panels {
		if p.Name == "" {
			return errors.New("config: panel without a name")
		}
		if names[p.Name] {
			return fmt.Errorf("config: duplicate panel %q", p.Name)
		}
		names[p.Name] = true

		if len(p.SNPs) == 0 {
			return fmt.Errorf("config: panel %q has no SNPs", p.Name)
		}
		for _, s := range p.SNPs {
			if s.Position == "" || s.AllelesField == "" || s.DosageField == "" {
				return fmt.Errorf("config: panel %q has an incomplete SNP entry", p.Name)
			}
			if other, ok := positions[s.Position]; ok {
				return fmt.Errorf("config: position %s claimed by panels %q and %q", s.Position, other, p.Name)
			}
			positions[s.Position] = p.Name
			for _, f := range []string{s.AllelesField, s.DosageField} {
				if other, ok := fields[f]; ok {
					return fmt.Errorf("config: field %s used by panels %q and %q", f, other, p.Name)
				}
				fields[f] = p.Name
			}
		}
	}
	return nil
}

// Panel returns the named panel.
func (c *Config) Panel(name string) (Panel, bool) {
	for _, p := range c.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return Panel{}, false
}

// FAMPath returns the manifest path: an absolute pheno.fam_file as is,
// otherwise relative to GWAS_FOLDER.
func (c *Config) FAMPath() string {
	if filepath.IsAbs(c.Pheno.FAMFile) || c.Env.GWASFolder == "" {
		return c.Pheno.FAMFile
	}
	return filepath.Join(c.Env.GWASFolder, c.Pheno.FAMFile)
}
