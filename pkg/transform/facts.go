package transform

import (
	"fmt"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
	"github.com/synaptica-ai/warehouse-etl/pkg/pricing"
)

// Lookups are the join indexes shared by both fact builders. They are built
// once per run from the normalized tables.
type Lookups struct {
	StayPrices       pricing.Timeline
	TestPrices       *pricing.Index
	testsByPatient   map[int64][]normalizer.TestAdmission
	doctorSpeciality map[int64]int64
}

func NewLookups(tables *normalizer.Tables) *Lookups {
	testsByPatient := make(map[int64][]normalizer.TestAdmission)
	for _, ta := range tables.TestAdmissions {
		testsByPatient[ta.PatientCode] = append(testsByPatient[ta.PatientCode], ta)
	}

	// first row wins when an npi_number repeats
	doctorSpeciality := make(map[int64]int64, len(tables.Doctors))
	for _, d := range tables.Doctors {
		if _, ok := doctorSpeciality[d.NPINumber]; !ok {
			doctorSpeciality[d.NPINumber] = d.SpecialityID
		}
	}

	return &Lookups{
		StayPrices:       pricing.StayPrices(tables.StayDailyCosts),
		TestPrices:       pricing.TestPrices(tables.TestCosts),
		testsByPatient:   testsByPatient,
		doctorSpeciality: doctorSpeciality,
	}
}

// TestsDuringStay returns the patient's tests ordered within [from, to],
// both ends included, in source order. Stays are matched by date only, so a
// test inside two overlapping stays of one patient belongs to both.
func (l *Lookups) TestsDuringStay(patientCode int64, from, to time.Time) []normalizer.TestAdmission {
	var matched []normalizer.TestAdmission
	for _, ta := range l.testsByPatient[patientCode] {
		if ta.AdmissionDate.Before(from) || ta.AdmissionDate.After(to) {
			continue
		}
		matched = append(matched, ta)
	}
	return matched
}

func (l *Lookups) DoctorSpeciality(npi int64) (int64, error) {
	id, ok := l.doctorSpeciality[npi]
	if !ok {
		return 0, &UnknownForeignKeyError{Table: normalizer.TableDoctor, Column: "npi_number", Value: npi}
	}
	return id, nil
}

func stayDays(admission, discharge time.Time) int {
	return int(discharge.Sub(admission)/(24*time.Hour)) + 1
}

func (t *Transformer) buildStayCostFacts(admissions []normalizer.Admission, lookups *Lookups) ([]StayCostFact, error) {
	facts := make([]StayCostFact, 0, len(admissions))
	for i, a := range admissions {
		if a.DischargeDate.Before(a.AdmissionDate) {
			return nil, fmt.Errorf("admission row %d: %w", i, &InvalidStayError{
				PatientCode:   a.PatientCode,
				AdmissionDate: a.AdmissionDate,
				DischargeDate: a.DischargeDate,
			})
		}

		dayPrice, err := lookups.StayPrices.Resolve(a.AdmissionDate)
		if err != nil {
			return nil, fmt.Errorf("admission row %d: %w", i, err)
		}

		tests := lookups.TestsDuringStay(a.PatientCode, a.AdmissionDate, a.DischargeDate)
		testsCost := 0.0
		for _, ta := range tests {
			price, err := lookups.TestPrices.Resolve(ta.TestCode, ta.AdmissionDate)
			if err != nil {
				return nil, fmt.Errorf("admission row %d: %w", i, err)
			}
			testsCost += price
		}

		days := stayDays(a.AdmissionDate, a.DischargeDate)
		stayCost := dayPrice * float64(days)
		facts = append(facts, StayCostFact{
			RecordID:          t.newID(),
			PatientCode:       a.PatientCode,
			AdmissionDate:     a.AdmissionDate,
			DischargeDate:     a.DischargeDate,
			DayPrice:          dayPrice,
			AmountStayDays:    days,
			TotalStayCost:     stayCost,
			AmountOfTestTaken: len(tests),
			TotalTestsCost:    testsCost,
			TotalCost:         testsCost + stayCost,
			ETLTimestamp:      t.now(),
		})
	}
	return facts, nil
}

func (t *Transformer) buildTestInfoFacts(testAdmissions []normalizer.TestAdmission, lookups *Lookups) ([]TestInfoFact, error) {
	facts := make([]TestInfoFact, 0, len(testAdmissions))
	for i, ta := range testAdmissions {
		specialityID, err := lookups.DoctorSpeciality(ta.NPINumber)
		if err != nil {
			return nil, fmt.Errorf("test_admission row %d: %w", i, err)
		}
		price, err := lookups.TestPrices.Resolve(ta.TestCode, ta.AdmissionDate)
		if err != nil {
			return nil, fmt.Errorf("test_admission row %d: %w", i, err)
		}
		facts = append(facts, TestInfoFact{
			RecordID:          t.newID(),
			SpecialityID:      specialityID,
			NPINumber:         ta.NPINumber,
			PatientCode:       ta.PatientCode,
			AdmissionTestDate: ta.AdmissionDate,
			TestDate:          ta.TestDate,
			TestCode:          ta.TestCode,
			TestPrice:         price,
			ETLTimestamp:      t.now(),
		})
	}
	return facts, nil
}
