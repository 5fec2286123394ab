package transform

import "time"

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

type DateRecord struct {
	Date    time.Time
	Day     int
	Month   int
	Quarter int
	Year    int
}

func (r DateRecord) Record() map[string]interface{} {
	return map[string]interface{}{
		"date":    r.Date.Format(dateLayout),
		"day":     r.Day,
		"month":   r.Month,
		"quarter": r.Quarter,
		"year":    r.Year,
	}
}

type SpecialityRecord struct {
	SpecialityID   int64
	SpecialityName string
}

func (r SpecialityRecord) Record() map[string]interface{} {
	return map[string]interface{}{
		"speciality_id":   r.SpecialityID,
		"speciality_name": r.SpecialityName,
	}
}

type DoctorRecord struct {
	NPINumber    int64
	DoctorName   string
	SpecialityID int64
}

func (r DoctorRecord) Record() map[string]interface{} {
	return map[string]interface{}{
		"npi_number":    r.NPINumber,
		"doctor_name":   r.DoctorName,
		"speciality_id": r.SpecialityID,
	}
}

type PatientRecord struct {
	PatientCode int64
	PatientName string
	PhoneNumber string
}

func (r PatientRecord) Record() map[string]interface{} {
	return map[string]interface{}{
		"patient_code": r.PatientCode,
		"patient_name": r.PatientName,
		"phone_number": r.PhoneNumber,
	}
}

type TestRecord struct {
	TestCode int64
	TestName string
}

func (r TestRecord) Record() map[string]interface{} {
	return map[string]interface{}{
		"test_code": r.TestCode,
		"test_name": r.TestName,
	}
}

// StayCostFact prices one hospital stay: days at the daily rate plus every
// test ordered while the patient was admitted.
type StayCostFact struct {
	RecordID          string
	PatientCode       int64
	AdmissionDate     time.Time
	DischargeDate     time.Time
	DayPrice          float64
	AmountStayDays    int
	TotalStayCost     float64
	AmountOfTestTaken int
	TotalTestsCost    float64
	TotalCost         float64
	ETLTimestamp      time.Time
}

func (f StayCostFact) Record() map[string]interface{} {
	return map[string]interface{}{
		"record_id":            f.RecordID,
		"patient_code":         f.PatientCode,
		"admission_date":       f.AdmissionDate.Format(dateLayout),
		"discharge_date":       f.DischargeDate.Format(dateLayout),
		"day_price":            f.DayPrice,
		"amount_stay_days":     f.AmountStayDays,
		"total_stay_cost":      f.TotalStayCost,
		"amount_of_test_taken": f.AmountOfTestTaken,
		"total_tests_cost":     f.TotalTestsCost,
		"total_cost":           f.TotalCost,
		"etl_ts":               f.ETLTimestamp.Format(timestampLayout),
	}
}

type TestInfoFact struct {
	RecordID          string
	SpecialityID      int64
	NPINumber         int64
	PatientCode       int64
	AdmissionTestDate time.Time
	TestDate          time.Time
	TestCode          int64
	TestPrice         float64
	ETLTimestamp      time.Time
}

func (f TestInfoFact) Record() map[string]interface{} {
	return map[string]interface{}{
		"record_id":           f.RecordID,
		"speciality_id":       f.SpecialityID,
		"npi_number":          f.NPINumber,
		"patient_code":        f.PatientCode,
		"admission_test_date": f.AdmissionTestDate.Format(dateLayout),
		"test_date":           f.TestDate.Format(dateLayout),
		"test_code":           f.TestCode,
		"test_price":          f.TestPrice,
		"etl_ts":              f.ETLTimestamp.Format(timestampLayout),
	}
}
