package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SourceTables maps each logical source table to its physical name in the row store.
type SourceTables struct {
	Patient       string `yaml:"patient" json:"patient"`
	Doctor        string `yaml:"doctor" json:"doctor"`
	Speciality    string `yaml:"speciality" json:"speciality"`
	Admission     string `yaml:"admission" json:"admission"`
	StayDailyCost string `yaml:"stay_daily_cost" json:"stay_daily_cost"`
	TestAdmission string `yaml:"test_admission" json:"test_admission"`
	Test          string `yaml:"test" json:"test"`
	TestCost      string `yaml:"test_cost" json:"test_cost"`
}

// WarehouseTables maps each output batch to its target table in the warehouse.
type WarehouseTables struct {
	Date         string `yaml:"date" json:"date"`
	Speciality   string `yaml:"speciality" json:"speciality"`
	Doctor       string `yaml:"doctor" json:"doctor"`
	Patient      string `yaml:"patient" json:"patient"`
	Test         string `yaml:"test" json:"test"`
	StayCostFact string `yaml:"stay_cost_fact" json:"stay_cost_fact"`
	TestInfoFact string `yaml:"test_info_fact" json:"test_info_fact"`
}

type Layout struct {
	Source    SourceTables    `yaml:"source" json:"source"`
	Warehouse WarehouseTables `yaml:"warehouse" json:"warehouse"`
}

// LoadLayout reads a YAML layout file. Keys left out of the file keep their
// default table names.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultLayout(), err
	}

	layout := DefaultLayout()
	if err := yaml.Unmarshal(content, &layout); err != nil {
		return Layout{}, err
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func DefaultLayout() Layout {
	return Layout{
		Source: SourceTables{
			Patient:       "patient",
			Doctor:        "doctor",
			Speciality:    "speciality",
			Admission:     "admission",
			StayDailyCost: "stay_daily_cost",
			TestAdmission: "test_admission",
			Test:          "test",
			TestCost:      "test_cost",
		},
		Warehouse: WarehouseTables{
			Date:         "dim_date",
			Speciality:   "dim_speciality",
			Doctor:       "dim_doctor",
			Patient:      "dim_patient",
			Test:         "dim_test",
			StayCostFact: "fact_patients_stay_cost",
			TestInfoFact: "fact_tests_information",
		},
	}
}

func (l Layout) Validate() error {
	names := map[string]string{
		"source.patient":           l.Source.Patient,
		"source.doctor":            l.Source.Doctor,
		"source.speciality":        l.Source.Speciality,
		"source.admission":         l.Source.Admission,
		"source.stay_daily_cost":   l.Source.StayDailyCost,
		"source.test_admission":    l.Source.TestAdmission,
		"source.test":              l.Source.Test,
		"source.test_cost":         l.Source.TestCost,
		"warehouse.date":           l.Warehouse.Date,
		"warehouse.speciality":     l.Warehouse.Speciality,
		"warehouse.doctor":         l.Warehouse.Doctor,
		"warehouse.patient":        l.Warehouse.Patient,
		"warehouse.test":           l.Warehouse.Test,
		"warehouse.stay_cost_fact": l.Warehouse.StayCostFact,
		"warehouse.test_info_fact": l.Warehouse.TestInfoFact,
	}
	for key, name := range names {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("layout %s: invalid table name %q", key, name)
		}
	}
	return nil
}
