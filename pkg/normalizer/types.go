package normalizer

import "time"

// Logical source table names, used as keys of RawTables.
const (
	TablePatient       = "patient"
	TableDoctor        = "doctor"
	TableSpeciality    = "speciality"
	TableAdmission     = "admission"
	TableStayDailyCost = "stay_daily_cost"
	TableTestAdmission = "test_admission"
	TableTest          = "test"
	TableTestCost      = "test_cost"
)

// RequiredTables lists every table the transform reads.
var RequiredTables = []string{
	TablePatient,
	TableDoctor,
	TableSpeciality,
	TableAdmission,
	TableStayDailyCost,
	TableTestAdmission,
	TableTest,
	TableTestCost,
}

// RawTables holds untyped rows per logical table as returned by the row store.
type RawTables map[string][]map[string]interface{}

type Patient struct {
	PatientCode int64
	PatientName string
	PhoneNumber string
}

type Doctor struct {
	NPINumber    int64
	DoctorName   string
	SpecialityID int64
}

type Speciality struct {
	SpecialityID int64
	Name         string
}

type Test struct {
	TestCode int64
	TestName string
}

// TestCost is one entry of a test's price timeline.
type TestCost struct {
	TestCode      int64
	PriceDateFrom time.Time
	Price         float64
}

// StayDailyCost is one entry of the global per-day stay price timeline.
type StayDailyCost struct {
	PriceDateFrom time.Time
	Price         float64
}

type Admission struct {
	PatientCode   int64
	AdmissionDate time.Time
	DischargeDate time.Time
}

// TestAdmission is a test ordered during a stay. AdmissionDate is the date the
// test was ordered and anchors its price lookup.
type TestAdmission struct {
	PatientCode   int64
	NPINumber     int64
	TestCode      int64
	AdmissionDate time.Time
	TestDate      time.Time
}

// Tables is the typed, cleaned snapshot of the source store. All dates are
// calendar dates at UTC midnight.
type Tables struct {
	Patients       []Patient
	Doctors        []Doctor
	Specialities   []Speciality
	Admissions     []Admission
	StayDailyCosts []StayDailyCost
	TestAdmissions []TestAdmission
	Tests          []Test
	TestCosts      []TestCost
}
