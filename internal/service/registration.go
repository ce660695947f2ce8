package service

import (
	"context"
	"database/sql"
	"regexp"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/queue"
	"github.com/iliyamo/labdesk/internal/repository"
)

var pincodeRE = regexp.MustCompile(`^[0-9]{6}$`)

var genders = []string{"Male", "Female", "Other"}

// RegisterPatientInput is the registration form.
type RegisterPatientInput struct {
	FullName              string   `json:"fullName"`
	Age                   *int     `json:"age"`
	Gender                string   `json:"gender"`
	PhoneNumber           string   `json:"phoneNumber"`
	AddressLine1          string   `json:"addressLine1"`
	State                 string   `json:"state"`
	Pincode               string   `json:"pincode"`
	MedicalHistory        string   `json:"medicalHistory"`
	Allergies             string   `json:"allergies"`
	InsurancePolicyNumber string   `json:"insurancePolicyNumber"`
	ReferredBy            *uint64  `json:"referredBy"`
	PatientConsent        bool     `json:"patientConsent"`
	TestIDs               []uint64 `json:"testIds"`
}

func (in *RegisterPatientInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Gender = strings.TrimSpace(in.Gender)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.State = strings.TrimSpace(in.State)
	in.Pincode = strings.TrimSpace(in.Pincode)
	in.MedicalHistory = strings.TrimSpace(in.MedicalHistory)
	in.Allergies = strings.TrimSpace(in.Allergies)
	in.InsurancePolicyNumber = strings.TrimSpace(in.InsurancePolicyNumber)
}

// Validate checks every field rule and reports all problems at once.
func (in RegisterPatientInput) Validate() error {
	f := apperr.Fields{}
	f.Check(in.FullName != "", "fullName", "is required")
	f.MaxLen(in.FullName, 255, "fullName")
	f.Check(len(in.PhoneNumber) >= 10, "phoneNumber", "must be at least 10 characters")
	f.MaxLen(in.PhoneNumber, 32, "phoneNumber")
	f.Check(in.AddressLine1 != "", "addressLine1", "is required")
	f.MaxLen(in.AddressLine1, 255, "addressLine1")
	f.Check(in.State != "", "state", "is required")
	f.MaxLen(in.State, 128, "state")
	f.MaxLen(in.MedicalHistory, apperr.TextLen, "medicalHistory")
	f.MaxLen(in.Allergies, apperr.TextLen, "allergies")
	f.MaxLen(in.InsurancePolicyNumber, 64, "insurancePolicyNumber")
	f.Check(pincodeRE.MatchString(in.Pincode), "pincode", "must be exactly 6 digits")
	if in.Age != nil {
		f.Check(*in.Age >= 0, "age", "must not be negative")
	}
	if in.Gender != "" {
		f.Check(slices.Contains(genders, in.Gender), "gender", "must be one of Male, Female, Other")
	}
	f.Check(in.PatientConsent, "patientConsent", "must be given")
	if in.ReferredBy != nil {
		f.Check(*in.ReferredBy > 0, "referredBy", "must be a positive id")
	}
	f.Check(len(in.TestIDs) > 0, "testIds", "must contain at least one test")
	f.Check(!slices.Contains(in.TestIDs, 0), "testIds", "must be positive ids")
	return f.Err()
}

// uniqueIDs collapses duplicates keeping first-seen order.
func uniqueIDs(ids []uint64) []uint64 {
	seen := mapset.NewThreadUnsafeSetWithSize[uint64](len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}

// RegisteredPatient is the registration result.
type RegisteredPatient struct {
	Patient model.Patient       `json:"patient"`
	Tests   []model.PatientTest `json:"tests"`
}

// RegisterPatient creates the patient, stamps its PATNO code and assigns
// the requested tests as pending, all in one transaction.
func (w *Workflow) RegisterPatient(ctx context.Context, in RegisterPatientInput, actorID uint64) (RegisteredPatient, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return RegisteredPatient{}, err
	}
	testIDs := uniqueIDs(in.TestIDs)

	var (
		patientID uint64
		code      string
	)
	err := database.WithTx(ctx, w.store.DB, func(tx *sql.Tx) error {
		if in.ReferredBy != nil {
			if _, err := w.store.Doctors.GetByID(ctx, tx, *in.ReferredBy); err != nil {
				return mapNotFound(err, "doctor", *in.ReferredBy)
			}
		}
		found, err := w.store.Tests.ExistingIDs(ctx, tx, testIDs)
		if err != nil {
			return err
		}
		have := mapset.NewThreadUnsafeSet(found...)
		for _, id := range testIDs {
			if !have.Contains(id) {
				return apperr.NotFound("test", id)
			}
		}

		patientID, code, err = w.store.Patients.Create(ctx, tx, model.Patient{
			FullName:              in.FullName,
			Age:                   in.Age,
			Gender:                in.Gender,
			PhoneNumber:           in.PhoneNumber,
			AddressLine1:          in.AddressLine1,
			State:                 in.State,
			Pincode:               in.Pincode,
			MedicalHistory:        in.MedicalHistory,
			Allergies:             in.Allergies,
			InsurancePolicyNumber: in.InsurancePolicyNumber,
			ReferredBy:            in.ReferredBy,
			PatientConsent:        in.PatientConsent,
		})
		if err != nil {
			return err
		}
		return w.store.PatientTests.CreateTx(ctx, tx, patientID, testIDs)
	})
	if err != nil {
		return RegisteredPatient{}, internal(err)
	}

	w.log.Info().Uint64("patient_id", patientID).Str("patient_code", code).Int("tests", len(testIDs)).
		Msg("patient registered")
	ev := queue.NewEvent(queue.EventPatientRegistered, w.now())
	ev.ActorID, ev.PatientID, ev.PatientCode = actorID, patientID, code
	w.publish(ev)

	p, err := w.store.Patients.GetByID(ctx, w.store.DB, patientID)
	if err != nil {
		return RegisteredPatient{}, internal(err)
	}
	tests, err := w.store.PatientTests.ListByPatient(ctx, patientID)
	if err != nil {
		return RegisteredPatient{}, internal(err)
	}
	return RegisteredPatient{Patient: p, Tests: tests}, nil
}

// Dashboard paging bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListPatients returns the dashboard list, newest first.
func (w *Workflow) ListPatients(ctx context.Context, search string, limit, offset int) ([]model.PatientSummary, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset = max(offset, 0)
	out, err := w.store.Patients.ListSummaries(ctx, repository.ListFilter{Search: search, Limit: limit, Offset: offset})
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// PatientTests returns a patient's tests with their parameters, as shown on
// the result entry screen.
func (w *Workflow) PatientTests(ctx context.Context, patientID uint64) ([]model.PatientTest, error) {
	if patientID == 0 {
		return nil, apperr.Validation("patientId must be a positive id")
	}
	if _, err := w.store.Patients.GetByID(ctx, w.store.DB, patientID); err != nil {
		return nil, mapNotFound(err, "patient", patientID)
	}
	tests, err := w.store.PatientTests.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, internal(err)
	}
	testIDs := make([]uint64, 0, len(tests))
	for _, pt := range tests {
		testIDs = append(testIDs, pt.TestID)
	}
	params, err := w.store.Tests.ParametersForTests(ctx, uniqueIDs(testIDs))
	if err != nil {
		return nil, internal(err)
	}
	for i := range tests {
		tests[i].Parameters = params[tests[i].TestID]
		if tests[i].Parameters == nil {
			tests[i].Parameters = []model.TestParameter{}
		}
	}
	return tests, nil
}
