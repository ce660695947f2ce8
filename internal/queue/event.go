// Package queue carries workflow events over RabbitMQ: the publisher used
// by the services and the consumer run by the worker command.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventBillCreated       = "bill.created"
	EventBillPaid          = "bill.paid"
	EventBillUnpaid        = "bill.unpaid"
	EventResultsSubmitted  = "results.submitted"
	EventPatientRegistered = "patient.registered"
)

// Event is a workflow milestone. Only the fields relevant to Type are set;
// consumers never need to query the database to log it.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	ActorID        uint64    `json:"actor_id,omitempty"`
	PatientID      uint64    `json:"patient_id,omitempty"`
	PatientCode    string    `json:"patient_code,omitempty"`
	BillID         uint64    `json:"bill_id,omitempty"`
	InvoiceNumber  string    `json:"invoice_number,omitempty"`
	FinalAmount    string    `json:"final_amount,omitempty"`
	PatientTestIDs []uint64  `json:"patient_test_ids,omitempty"`
	ResultCount    int       `json:"result_count,omitempty"`
}

// NewEvent stamps a fresh id and time on an event of the given type.
func NewEvent(typ string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC()}
}
