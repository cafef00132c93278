package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
	globals = globalFlags{}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigGet(t *testing.T) {
	out, err := executeRoot(t, "config", "get", "records.id_prefix")
	require.NoError(t, err)
	assert.Equal(t, "BACH\n", out)
}

func TestConfigGet_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snp2redcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pheno:\n  phenotype_field: cvlt_total\n"), 0o644))

	out, err := executeRoot(t, "--config", path, "config", "get", "pheno.phenotype_field")
	require.NoError(t, err)
	assert.Equal(t, "cvlt_total\n", out)
}

func TestConfigSet_RejectsList(t *testing.T) {
	_, err := executeRoot(t, "config", "set", "panels", "aqp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a list")

	var ue usageError
	assert.True(t, errors.As(err, &ue))

	_, statErr := os.Stat(filepath.Join(os.Getenv("HOME"), ".snp2redcap.yaml"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written for a rejected key")
}
