package model

import (
	"fmt"
	"time"
)

// Patient is a registered patient. ReferredBy points at doctors.id.
type Patient struct {
	ID                    uint64    `json:"id"`
	PatientID             string    `json:"patientId"`
	FullName              string    `json:"fullName"`
	Age                   *int      `json:"age,omitempty"`
	Gender                string    `json:"gender,omitempty"`
	PhoneNumber           string    `json:"phoneNumber"`
	AddressLine1          string    `json:"addressLine1"`
	State                 string    `json:"state"`
	Pincode               string    `json:"pincode"`
	MedicalHistory        string    `json:"medicalHistory,omitempty"`
	Allergies             string    `json:"allergies,omitempty"`
	InsurancePolicyNumber string    `json:"insurancePolicyNumber,omitempty"`
	ReferredBy            *uint64   `json:"referredBy,omitempty"`
	PatientConsent        bool      `json:"patientConsent"`
	CreatedAt             time.Time `json:"createdAt"`
}

// FormatPatientID derives the human patient id from the primary key.
func FormatPatientID(id uint64) string { return fmt.Sprintf("PATNO-%07d", id) }

// TestStatus is the workflow state of a PatientTest.
type TestStatus string

// Normal flow: pending at registration, billed when the bill is generated,
// completed when results are submitted.
const (
	StatusPending   TestStatus = "pending"
	StatusBilled    TestStatus = "billed"
	StatusCompleted TestStatus = "completed"
)

// Valid reports whether s is part of the status vocabulary.
func (s TestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusBilled, StatusCompleted:
		return true
	}
	return false
}

// PatientTest assigns one test to one patient.
type PatientTest struct {
	ID               uint64          `json:"patientTestId"`
	PatientID        uint64          `json:"patientId"`
	TestID           uint64          `json:"testId"`
	TestName         string          `json:"testName"`
	Status           TestStatus      `json:"status"`
	TestEntryDate    *time.Time      `json:"testEntryDate,omitempty"`
	TestResultDate   *time.Time      `json:"testResultDate,omitempty"`
	ReportImpression *string         `json:"reportImpression"`
	CreatedAt        time.Time       `json:"createdAt"`
	Parameters       []TestParameter `json:"parameters,omitempty"`
}

// PatientSummary is one line of the dashboard patient list.
type PatientSummary struct {
	ID          uint64       `json:"id"`
	PatientID   string       `json:"patientId"`
	FullName    string       `json:"fullName"`
	Age         *int         `json:"age,omitempty"`
	Gender      string       `json:"gender,omitempty"`
	PhoneNumber string       `json:"phoneNumber"`
	CreatedAt   time.Time    `json:"createdAt"`
	TestCount   int          `json:"testCount"`
	Bill        *BillSummary `json:"bill"`
}

// TestResult is the measured value of one parameter for one patient test.
type TestResult struct {
	ID            uint64    `json:"id"`
	PatientTestID uint64    `json:"patientTestId"`
	ParameterID   uint64    `json:"parameterId"`
	Value         string    `json:"value"`
	Remarks       *string   `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
