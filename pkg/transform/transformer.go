package transform

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
)

// Logical batch names, in load order.
const (
	BatchDate         = "date"
	BatchSpeciality   = "speciality"
	BatchDoctor       = "doctor"
	BatchPatient      = "patient"
	BatchTest         = "test"
	BatchStayCostFact = "stay_cost_fact"
	BatchTestInfoFact = "test_info_fact"
)

type Transformer struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Transformer)

func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(t *Transformer) { t.newID = gen }
}

func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result is the full warehouse snapshot produced by one run.
type Result struct {
	Dates        []DateRecord
	Specialities []SpecialityRecord
	Doctors      []DoctorRecord
	Patients     []PatientRecord
	Tests        []TestRecord
	StayCosts    []StayCostFact
	TestInfos    []TestInfoFact
}

// Transform builds every dimension and fact from the normalized tables. A
// missing price, an unknown doctor or an inverted stay fails the whole run.
func (t *Transformer) Transform(tables *normalizer.Tables) (*Result, error) {
	if tables == nil {
		return nil, fmt.Errorf("transform: nil tables")
	}
	lookups := NewLookups(tables)

	stayCosts, err := t.buildStayCostFacts(tables.Admissions, lookups)
	if err != nil {
		return nil, fmt.Errorf("building stay cost facts: %w", err)
	}
	testInfos, err := t.buildTestInfoFacts(tables.TestAdmissions, lookups)
	if err != nil {
		return nil, fmt.Errorf("building test information facts: %w", err)
	}

	return &Result{
		Dates:        BuildDates(tables),
		Specialities: BuildSpecialities(tables.Specialities),
		Doctors:      BuildDoctors(tables.Doctors),
		Patients:     BuildPatients(tables.Patients),
		Tests:        BuildTests(tables.Tests),
		StayCosts:    stayCosts,
		TestInfos:    testInfos,
	}, nil
}

type Batch struct {
	Name    string
	Table   string
	Records []map[string]interface{}
}

type recorder interface {
	Record() map[string]interface{}
}

func toRecords[T recorder](items []T) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, item.Record())
	}
	return out
}

// Batches lays the result out in load order: every dimension before the
// facts that reference it.
func (r *Result) Batches(tables config.WarehouseTables) []Batch {
	return []Batch{
		{Name: BatchDate, Table: tables.Date, Records: toRecords(r.Dates)},
		{Name: BatchSpeciality, Table: tables.Speciality, Records: toRecords(r.Specialities)},
		{Name: BatchDoctor, Table: tables.Doctor, Records: toRecords(r.Doctors)},
		{Name: BatchPatient, Table: tables.Patient, Records: toRecords(r.Patients)},
		{Name: BatchTest, Table: tables.Test, Records: toRecords(r.Tests)},
		{Name: BatchStayCostFact, Table: tables.StayCostFact, Records: toRecords(r.StayCosts)},
		{Name: BatchTestInfoFact, Table: tables.TestInfoFact, Records: toRecords(r.TestInfos)},
	}
}
