package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/queue"
	"github.com/iliyamo/labdesk/internal/repository"
)

// invoiceAttempts bounds retries after an invoice number collision or a
// deadlock.
const invoiceAttempts = 3

// CreateBillInput is the bill generation request.
type CreateBillInput struct {
	PatientID uint64      `json:"patientId"`
	Discount  model.Money `json:"discount"`
	IsPaid    bool        `json:"isPaid"`
}

func (in CreateBillInput) Validate() error {
	f := apperr.Fields{}
	f.Check(in.PatientID > 0, "patientId", "must be a positive id")
	f.Check(in.Discount >= 0, "discount", "must not be negative")
	return f.Err()
}

// CreateBill totals the patient's tests, allocates the day's next invoice
// number and stamps every test billed. A patient has at most one bill.
func (w *Workflow) CreateBill(ctx context.Context, in CreateBillInput, actorID uint64) (model.Bill, error) {
	if err := in.Validate(); err != nil {
		return model.Bill{}, err
	}

	var (
		bill model.Bill
		err  error
	)
	for attempt := 1; attempt <= invoiceAttempts; attempt++ {
		bill, err = w.createBillOnce(ctx, in)
		if key, dup := repository.DuplicateKey(err); dup && key == repository.KeyBillInvoice {
			w.log.Warn().Int("attempt", attempt).Uint64("patient_id", in.PatientID).Msg("invoice number collision, retrying")
			continue
		}
		if repository.IsRetryable(err) {
			w.log.Warn().Err(err).Int("attempt", attempt).Uint64("patient_id", in.PatientID).Msg("bill transaction deadlocked, retrying")
			continue
		}
		break
	}
	if err != nil {
		if _, dup := repository.DuplicateKey(err); dup {
			return model.Bill{}, apperr.Internal(err, "could not allocate an invoice number")
		}
		return model.Bill{}, internal(err)
	}

	w.log.Info().Uint64("bill_id", bill.ID).Str("invoice", bill.InvoiceNumber).
		Uint64("patient_id", bill.PatientID).Str("final_amount", bill.FinalAmount.String()).Msg("bill created")
	ev := queue.NewEvent(queue.EventBillCreated, w.now())
	ev.ActorID, ev.PatientID, ev.BillID = actorID, bill.PatientID, bill.ID
	ev.InvoiceNumber, ev.FinalAmount = bill.InvoiceNumber, bill.FinalAmount.String()
	w.publish(ev)
	return bill, nil
}

func (w *Workflow) createBillOnce(ctx context.Context, in CreateBillInput) (model.Bill, error) {
	var bill model.Bill
	err := database.WithTx(ctx, w.store.DB, func(tx *sql.Tx) error {
		if err := w.store.Patients.ExistsForUpdate(ctx, tx, in.PatientID); err != nil {
			return mapNotFound(err, "patient", in.PatientID)
		}
		_, err := w.store.Bills.LockByPatientTx(ctx, tx, in.PatientID)
		switch {
		case err == nil:
			return apperr.Conflict("bill already exists for this patient")
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		total, _, err := w.store.PatientTests.SumPricesTx(ctx, tx, in.PatientID)
		if err != nil {
			return err
		}
		if in.Discount > total {
			return apperr.Validationf("discount %s exceeds total amount %s", in.Discount, total)
		}

		now := w.now()
		day, from, to := w.invoiceDay(now)
		seq, err := w.store.Bills.NextInvoiceSeqTx(ctx, tx, day.Format("2006-01-02"), from, to)
		if err != nil {
			return err
		}

		b := model.Bill{
			InvoiceNumber: model.FormatInvoiceNumber(day, seq),
			PatientID:     in.PatientID,
			TotalAmount:   total,
			Discount:      in.Discount,
			FinalAmount:   total - in.Discount,
			IsPaid:        in.IsPaid,
			CreatedAt:     now.UTC(),
		}
		if in.IsPaid {
			paidAt := now.UTC()
			b.PaidAt = &paidAt
		}
		bill, err = w.store.Bills.CreateTx(ctx, tx, b)
		if key, dup := repository.DuplicateKey(err); dup && key == repository.KeyBillPatient {
			return apperr.Conflict("bill already exists for this patient")
		}
		if err != nil {
			return err
		}
		return w.store.PatientTests.MarkBilledTx(ctx, tx, in.PatientID)
	})
	return bill, err
}

// invoiceDay returns the lab-local calendar day of now and its bounds in
// UTC, which is how created_at is stored.
func (w *Workflow) invoiceDay(now time.Time) (day, from, to time.Time) {
	local := now.In(w.loc)
	day = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc)
	return day, day.UTC(), day.AddDate(0, 0, 1).UTC()
}

// UpdateBillPayment flips the paid flag. It has no effect on test status.
func (w *Workflow) UpdateBillPayment(ctx context.Context, billID uint64, isPaid bool, actorID uint64) (model.Bill, error) {
	if billID == 0 {
		return model.Bill{}, apperr.Validation("billId must be a positive id")
	}
	now := w.now()
	if err := w.store.Bills.SetPaid(ctx, w.store.DB, billID, isPaid, now.UTC()); err != nil {
		return model.Bill{}, mapNotFound(err, "bill", billID)
	}
	bill, err := w.store.Bills.GetByID(ctx, w.store.DB, billID)
	if err != nil {
		return model.Bill{}, mapNotFound(err, "bill", billID)
	}

	typ := queue.EventBillUnpaid
	if isPaid {
		typ = queue.EventBillPaid
	}
	w.log.Info().Uint64("bill_id", billID).Bool("is_paid", isPaid).Msg("bill payment updated")
	ev := queue.NewEvent(typ, now)
	ev.ActorID, ev.PatientID, ev.BillID, ev.InvoiceNumber = actorID, bill.PatientID, bill.ID, bill.InvoiceNumber
	w.publish(ev)
	return bill, nil
}

// GetBill returns a bill with its patient.
func (w *Workflow) GetBill(ctx context.Context, billID uint64) (model.BillWithPatient, error) {
	if billID == 0 {
		return model.BillWithPatient{}, apperr.Validation("billId must be a positive id")
	}
	b, err := w.store.Bills.GetWithPatient(ctx, billID)
	if err != nil {
		return model.BillWithPatient{}, mapNotFound(err, "bill", billID)
	}
	return b, nil
}

// SearchBills matches invoice number, patient code or patient name.
func (w *Workflow) SearchBills(ctx context.Context, term string) ([]model.BillWithPatient, error) {
	out, err := w.store.Bills.Search(ctx, term)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}
