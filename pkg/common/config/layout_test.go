package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLayout(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLayoutDefaults(t *testing.T) {
	layout, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), layout)
	assert.NoError(t, layout.Validate())
}

func TestLoadLayoutOverridesSomeTables(t *testing.T) {
	path := writeLayout(t, `
source:
  patient: hospital.patients
warehouse:
  stay_cost_fact: fact_stay_cost_v2
`)

	layout, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "hospital.patients", layout.Source.Patient)
	assert.Equal(t, "doctor", layout.Source.Doctor)
	assert.Equal(t, "fact_stay_cost_v2", layout.Warehouse.StayCostFact)
	assert.Equal(t, "dim_date", layout.Warehouse.Date)
}

func TestLoadLayoutRejectsUnsafeNames(t *testing.T) {
	path := writeLayout(t, `
warehouse:
  date: "dim_date; drop table x"
`)
	_, err := LoadLayout(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse.date")
}

func TestLoadLayoutMissingFile(t *testing.T) {
	_, err := LoadLayout(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadLayoutBadYAML(t *testing.T) {
	_, err := LoadLayout(writeLayout(t, "source: [unterminated"))
	assert.Error(t, err)
}
