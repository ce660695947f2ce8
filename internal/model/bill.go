package model

import (
	"fmt"
	"time"
)

// Bill is the single invoice of a patient.
type Bill struct {
	ID            uint64     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	PatientID     uint64     `json:"patientId"`
	TotalAmount   Money      `json:"totalAmount"`
	Discount      Money      `json:"discount"`
	FinalAmount   Money      `json:"finalAmount"`
	IsPaid        bool       `json:"isPaid"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// BillSummary is the bill as embedded in patient listings.
type BillSummary struct {
	ID            uint64    `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	TotalAmount   Money     `json:"totalAmount"`
	Discount      Money     `json:"discount"`
	FinalAmount   Money     `json:"finalAmount"`
	IsPaid        bool      `json:"isPaid"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BillWithPatient is returned by bill lookups and searches.
type BillWithPatient struct {
	Bill
	PatientCode string `json:"patientCode"`
	PatientName string `json:"patientName"`
	PhoneNumber string `json:"phoneNumber"`
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNNN for the given calendar day
// and 1-based daily sequence.
func FormatInvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}
