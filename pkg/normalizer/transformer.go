package normalizer

import (
	"fmt"
	"time"
)

// Normalize converts the raw extracted rows into typed tables. The input is
// never modified. The first value that cannot be coerced aborts the whole
// call with a *TypeMismatchError.
func Normalize(raw RawTables) (*Tables, error) {
	for _, name := range RequiredTables {
		if _, ok := raw[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingTable, name)
		}
	}

	var (
		tables Tables
		err    error
	)
	if tables.Patients, err = mapRows(raw[TablePatient], TablePatient, patientRow); err != nil {
		return nil, err
	}
	if tables.Doctors, err = mapRows(raw[TableDoctor], TableDoctor, doctorRow); err != nil {
		return nil, err
	}
	if tables.Specialities, err = mapRows(raw[TableSpeciality], TableSpeciality, specialityRow); err != nil {
		return nil, err
	}
	if tables.Admissions, err = mapRows(raw[TableAdmission], TableAdmission, admissionRow); err != nil {
		return nil, err
	}
	if tables.StayDailyCosts, err = mapRows(raw[TableStayDailyCost], TableStayDailyCost, stayDailyCostRow); err != nil {
		return nil, err
	}
	if tables.TestAdmissions, err = mapRows(raw[TableTestAdmission], TableTestAdmission, testAdmissionRow); err != nil {
		return nil, err
	}
	if tables.Tests, err = mapRows(raw[TableTest], TableTest, testRow); err != nil {
		return nil, err
	}
	if tables.TestCosts, err = mapRows(raw[TableTestCost], TableTestCost, testCostRow); err != nil {
		return nil, err
	}
	return &tables, nil
}

// row reads typed columns out of one raw record, remembering the first
// coercion failure so row builders stay linear.
type row struct {
	table  string
	index  int
	values map[string]interface{}
	err    error
}

func (r *row) fail(column, expected string, value interface{}) {
	if r.err == nil {
		r.err = &TypeMismatchError{Table: r.table, Column: column, Row: r.index, Value: value, Expected: expected}
	}
}

func (r *row) id(column string) int64 {
	v := r.values[column]
	id, ok := toID(v)
	if !ok {
		r.fail(column, "integer", v)
	}
	return id
}

func (r *row) date(column string) time.Time {
	v := r.values[column]
	d, ok := toDate(v)
	if !ok {
		r.fail(column, "date", v)
	}
	return d
}

func (r *row) price(column string) float64 {
	v := r.values[column]
	p, ok := toPrice(v)
	if !ok {
		r.fail(column, "numeric", v)
	}
	return p
}

func (r *row) text(columns ...string) string {
	for _, column := range columns {
		if v, ok := r.values[column]; ok && v != nil {
			return toText(v)
		}
	}
	return ""
}

func mapRows[T any](records []map[string]interface{}, table string, build func(r *row) T) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, values := range records {
		r := &row{table: table, index: i, values: values}
		item := build(r)
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, item)
	}
	return out, nil
}

func patientRow(r *row) Patient {
	return Patient{
		PatientCode: r.id("patient_code"),
		PatientName: r.text("patient_name"),
		PhoneNumber: cleanPhone(r.values["phone_number"]),
	}
}

func doctorRow(r *row) Doctor {
	return Doctor{
		NPINumber:    r.id("npi_number"),
		DoctorName:   r.text("doctor_name"),
		SpecialityID: r.id("speciality_id"),
	}
}

func specialityRow(r *row) Speciality {
	return Speciality{
		SpecialityID: r.id("speciality_id"),
		Name:         r.text("name", "speciality_name"),
	}
}

func admissionRow(r *row) Admission {
	return Admission{
		PatientCode:   r.id("patient_code"),
		AdmissionDate: r.date("admission_datetime"),
		DischargeDate: r.date("discharge_datetime"),
	}
}

func stayDailyCostRow(r *row) StayDailyCost {
	return StayDailyCost{
		PriceDateFrom: r.date("price_date_from"),
		Price:         r.price("price"),
	}
}

func testAdmissionRow(r *row) TestAdmission {
	return TestAdmission{
		PatientCode:   r.id("patient_code"),
		NPINumber:     r.id("npi_number"),
		TestCode:      r.id("test_code"),
		AdmissionDate: r.date("admission_datetime"),
		TestDate:      r.date("test_datetime"),
	}
}

func testRow(r *row) Test {
	return Test{
		TestCode: r.id("test_code"),
		TestName: r.text("test_name"),
	}
}

func testCostRow(r *row) TestCost {
	return TestCost{
		TestCode:      r.id("test_code"),
		PriceDateFrom: r.date("price_date_from"),
		Price:         r.price("price"),
	}
}
