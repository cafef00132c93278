package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	v := viper.New()
	v.Set("pheno.phenotype_field", "cvlt_total")

	val, err := Get(v, "records.event")
	require.NoError(t, err)
	assert.Equal(t, "baseline_arm_1", val)

	val, err = Get(v, "Pheno.Phenotype_Field")
	require.NoError(t, err)
	assert.Equal(t, "cvlt_total", val)

	val, err = Get(v, "panels")
	require.NoError(t, err)
	assert.Len(t, val, 2)

	_, err = Get(v, "records.nope")
	assert.ErrorContains(t, err, `unknown key "records.nope"`)
	_, err = Get(v, "records.event.deeper")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	v := viper.New()
	require.NoError(t, Set(v, "pheno.phenotype_field", "cvlt_total"))
	assert.Equal(t, "cvlt_total", v.GetString("pheno.phenotype_field"))

	cfg, err := Effective(v)
	require.NoError(t, err)
	assert.Equal(t, "cvlt_total", cfg.Pheno.PhenotypeField)
	assert.Len(t, cfg.Panels, 2)
}

func TestSet_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"list", "panels", "aqp4", "is a list"},
		{"section", "records", "x", "is a section"},
		{"unknown", "records.colour", "red", "unknown key"},
		{"fails validation", "records.id_field", "", "id_field is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			assert.ErrorContains(t, Set(v, tt.key, tt.value), tt.wantErr)
			assert.False(t, v.IsSet(tt.key), "rejected value must not be stored")
		})
	}
}
