package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/queue"
	"github.com/iliyamo/labdesk/internal/repository"
)

// ResultEntry is one measured value.
type ResultEntry struct {
	PatientTestID uint64  `json:"patientTestId"`
	ParameterID   uint64  `json:"parameterId"`
	Value         string  `json:"value"`
	Remarks       *string `json:"remarks"`
}

// ImpressionEntry is the free-text conclusion of one patient test.
type ImpressionEntry struct {
	PatientTestID    uint64 `json:"patientTestId"`
	ReportImpression string `json:"reportImpression"`
}

// SubmitResultsInput is one result entry submission. PatientTestIDs are the
// tests to mark completed.
type SubmitResultsInput struct {
	Results        []ResultEntry     `json:"results"`
	PatientTestIDs []uint64          `json:"patientTestIds"`
	Impressions    []ImpressionEntry `json:"impressions"`
}

func (in SubmitResultsInput) Validate() error {
	f := apperr.Fields{}
	f.Check(len(in.Results) > 0, "results", "must contain at least one result")
	f.Check(len(in.PatientTestIDs) > 0, "patientTestIds", "must contain at least one id")
	f.Check(!slices.Contains(in.PatientTestIDs, 0), "patientTestIds", "must be positive ids")

	type pair struct{ pt, param uint64 }
	seen := mapset.NewThreadUnsafeSet[pair]()
	for i, r := range in.Results {
		field := fmt.Sprintf("results[%d]", i)
		f.Check(r.PatientTestID > 0, field+".patientTestId", "must be a positive id")
		f.Check(r.ParameterID > 0, field+".parameterId", "must be a positive id")
		f.Check(strings.TrimSpace(r.Value) != "", field+".value", "is required")
		f.MaxLen(r.Value, 255, field+".value")
		if r.Remarks != nil {
			f.MaxLen(*r.Remarks, apperr.TextLen, field+".remarks")
		}
		if !seen.Add(pair{r.PatientTestID, r.ParameterID}) {
			f.Add(field, fmt.Sprintf("duplicates parameter %d of patient test %d", r.ParameterID, r.PatientTestID))
		}
	}
	for i, imp := range in.Impressions {
		field := fmt.Sprintf("impressions[%d]", i)
		f.Check(imp.PatientTestID > 0, field+".patientTestId", "must be a positive id")
		f.Check(strings.TrimSpace(imp.ReportImpression) != "", field+".reportImpression", "is required")
		f.MaxLen(imp.ReportImpression, apperr.TextLen, field+".reportImpression")
	}
	return f.Err()
}

// SubmitSummary reports what a submission changed.
type SubmitSummary struct {
	PatientTestIDs []uint64 `json:"patientTestIds"`
	ResultCount    int      `json:"resultCount"`
}

// SubmitTestResults stores results, completes the listed tests and saves
// impressions in one transaction. Every owning patient must have a paid
// bill.
func (w *Workflow) SubmitTestResults(ctx context.Context, in SubmitResultsInput, actorID uint64) (SubmitSummary, error) {
	if err := in.Validate(); err != nil {
		return SubmitSummary{}, err
	}

	all := mapset.NewThreadUnsafeSet(in.PatientTestIDs...)
	paramIDs := mapset.NewThreadUnsafeSet[uint64]()
	for _, r := range in.Results {
		all.Add(r.PatientTestID)
		paramIDs.Add(r.ParameterID)
	}
	for _, imp := range in.Impressions {
		all.Add(imp.PatientTestID)
	}
	ptIDs := all.ToSlice()
	slices.Sort(ptIDs)
	params := paramIDs.ToSlice()
	slices.Sort(params)
	completed := uniqueIDs(in.PatientTestIDs)
	slices.Sort(completed)

	err := database.WithTx(ctx, w.store.DB, func(tx *sql.Tx) error {
		locked, err := w.store.PatientTests.LockTx(ctx, tx, ptIDs)
		if err != nil {
			return err
		}
		testOf := make(map[uint64]uint64, len(locked))
		patients := mapset.NewThreadUnsafeSet[uint64]()
		for _, pt := range locked {
			testOf[pt.ID] = pt.TestID
			patients.Add(pt.PatientID)
		}
		for _, id := range ptIDs {
			if _, ok := testOf[id]; !ok {
				return apperr.NotFound("patient test", id)
			}
		}

		patientIDs := patients.ToSlice()
		slices.Sort(patientIDs)
		paid, err := w.store.Bills.PaidByPatientsTx(ctx, tx, patientIDs)
		if err != nil {
			return err
		}
		for _, pid := range patientIDs {
			if !paid[pid] {
				return apperr.PaymentRequired(fmt.Sprintf("bill for patient %d must be paid before results are entered", pid))
			}
		}

		owners, err := w.store.Tests.ParameterOwners(ctx, tx, params)
		if err != nil {
			return err
		}
		rows := make([]repository.ResultInput, 0, len(in.Results))
		for _, r := range in.Results {
			if owner, ok := owners[r.ParameterID]; !ok || owner != testOf[r.PatientTestID] {
				return apperr.Validationf("parameter %d does not belong to the test of patient test %d", r.ParameterID, r.PatientTestID)
			}
			rows = append(rows, repository.ResultInput{
				PatientTestID: r.PatientTestID,
				ParameterID:   r.ParameterID,
				Value:         strings.TrimSpace(r.Value),
				Remarks:       trimmedPtr(r.Remarks),
			})
		}

		now := w.now().UTC()
		if err := w.store.Results.UpsertTx(ctx, tx, rows, now); err != nil {
			return err
		}
		if err := w.store.PatientTests.MarkCompletedTx(ctx, tx, completed, now); err != nil {
			return err
		}
		for _, imp := range in.Impressions {
			if err := w.store.PatientTests.SetImpressionTx(ctx, tx, imp.PatientTestID, strings.TrimSpace(imp.ReportImpression)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SubmitSummary{}, internal(err)
	}

	w.log.Info().Uints64("patient_test_ids", completed).Int("results", len(in.Results)).Msg("results submitted")
	ev := queue.NewEvent(queue.EventResultsSubmitted, w.now())
	ev.ActorID, ev.PatientTestIDs, ev.ResultCount = actorID, completed, len(in.Results)
	w.publish(ev)
	return SubmitSummary{PatientTestIDs: completed, ResultCount: len(in.Results)}, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
