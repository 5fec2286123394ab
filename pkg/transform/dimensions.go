package transform

import (
	"sort"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
)

// dedupe keeps the first occurrence of every distinct value, in input order.
func dedupe[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func BuildPatients(rows []normalizer.Patient) []PatientRecord {
	records := make([]PatientRecord, 0, len(rows))
	for _, p := range rows {
		records = append(records, PatientRecord{
			PatientCode: p.PatientCode,
			PatientName: p.PatientName,
			PhoneNumber: p.PhoneNumber,
		})
	}
	return dedupe(records)
}

func BuildTests(rows []normalizer.Test) []TestRecord {
	records := make([]TestRecord, 0, len(rows))
	for _, t := range rows {
		records = append(records, TestRecord{TestCode: t.TestCode, TestName: t.TestName})
	}
	return dedupe(records)
}

func BuildSpecialities(rows []normalizer.Speciality) []SpecialityRecord {
	records := make([]SpecialityRecord, 0, len(rows))
	for _, s := range rows {
		records = append(records, SpecialityRecord{SpecialityID: s.SpecialityID, SpecialityName: s.Name})
	}
	return dedupe(records)
}

// BuildDoctors keeps speciality_id as a plain key; the warehouse joins it
// against dim_speciality.
func BuildDoctors(rows []normalizer.Doctor) []DoctorRecord {
	records := make([]DoctorRecord, 0, len(rows))
	for _, d := range rows {
		records = append(records, DoctorRecord{
			NPINumber:    d.NPINumber,
			DoctorName:   d.DoctorName,
			SpecialityID: d.SpecialityID,
		})
	}
	return dedupe(records)
}

// BuildDates collects every date referenced by admissions, ordered tests and
// both price histories. Output is sorted ascending, but callers should treat
// it as a set.
func BuildDates(tables *normalizer.Tables) []DateRecord {
	seen := make(map[time.Time]struct{})
	add := func(d time.Time) {
		seen[normalizer.DateOf(d)] = struct{}{}
	}
	for _, a := range tables.Admissions {
		add(a.AdmissionDate)
		add(a.DischargeDate)
	}
	for _, ta := range tables.TestAdmissions {
		add(ta.AdmissionDate)
		add(ta.TestDate)
	}
	for _, c := range tables.StayDailyCosts {
		add(c.PriceDateFrom)
	}
	for _, c := range tables.TestCosts {
		add(c.PriceDateFrom)
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	records := make([]DateRecord, 0, len(dates))
	for _, d := range dates {
		month := int(d.Month())
		records = append(records, DateRecord{
			Date:    d,
			Day:     d.Day(),
			Month:   month,
			Quarter: (month-1)/3 + 1,
			Year:    d.Year(),
		})
	}
	return records
}
