package transform

import (
	"errors"
	"fmt"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
)

var (
	ErrUnknownForeignKey = errors.New("unknown foreign key")
	ErrUnknownDoctor     = fmt.Errorf("unknown doctor: %w", ErrUnknownForeignKey)
	ErrInvalidStay       = errors.New("discharge precedes admission")
)

// UnknownForeignKeyError is a join that expected one match and found none.
type UnknownForeignKeyError struct {
	Table  string
	Column string
	Value  int64
}

func (e *UnknownForeignKeyError) Error() string {
	return fmt.Sprintf("%s.%s = %d has no match", e.Table, e.Column, e.Value)
}

func (e *UnknownForeignKeyError) Unwrap() error {
	if e.Table == normalizer.TableDoctor {
		return ErrUnknownDoctor
	}
	return ErrUnknownForeignKey
}

type InvalidStayError struct {
	PatientCode   int64
	AdmissionDate time.Time
	DischargeDate time.Time
}

func (e *InvalidStayError) Error() string {
	return fmt.Sprintf("patient %d: discharge %s before admission %s", e.PatientCode,
		e.DischargeDate.Format(dateLayout), e.AdmissionDate.Format(dateLayout))
}

func (e *InvalidStayError) Unwrap() error {
	return ErrInvalidStay
}
