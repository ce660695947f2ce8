package model

import (
	"fmt"
	"time"
)

// LabInfo describes the operating laboratory. The first row is the "main"
// lab printed on bills and reports.
type LabInfo struct {
	ID                 uint64    `json:"id"`
	LabName            string    `json:"labName"`
	LabLogo            string    `json:"labLogo,omitempty"`
	GSTINNumber        string    `json:"gstinNumber,omitempty"`
	RegistrationNumber string    `json:"registrationNumber"`
	PoliceStationName  string    `json:"policeStationName,omitempty"`
	Address            string    `json:"address,omitempty"`
	PhoneNumber        string    `json:"phoneNumber,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Doctor is a referring physician.
type Doctor struct {
	ID             uint64    `json:"id"`
	DoctorID       string    `json:"doctorId"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization,omitempty"`
	ContactNumber  string    `json:"contactNumber,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FormatDoctorID derives the human doctor id from the primary key.
func FormatDoctorID(id uint64) string { return fmt.Sprintf("DOCNO-%07d", id) }
