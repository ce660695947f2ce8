// Package seed loads the reference data a fresh installation needs: the
// role vocabulary, the main lab, default staff, doctors and the standard
// test panels. Every step is idempotent. Demo patients are optional.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jaswdr/faker"
	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

type Admin interface {
	EnsureRoles(ctx context.Context) error
	MainLab(ctx context.Context) (model.LabInfo, error)
	Setup(ctx context.Context, in service.SetupInput) (service.SetupResult, error)
	CreateUser(ctx context.Context, labID uint64, in service.CreateUserInput) (model.User, error)
}

type Catalog interface {
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	CreateDoctor(ctx context.Context, in service.DoctorInput) (model.Doctor, error)
	ListTests(ctx context.Context) ([]model.Test, error)
	CreateTest(ctx context.Context, in service.TestInput) (model.Test, error)
	CreateParameter(ctx context.Context, testID uint64, in service.ParameterInput) (model.TestParameter, error)
}

type Workflow interface {
	RegisterPatient(ctx context.Context, in service.RegisterPatientInput, actorID uint64) (service.RegisteredPatient, error)
	CreateBill(ctx context.Context, in service.CreateBillInput, actorID uint64) (model.Bill, error)
}

// Summary counts what a run created. Rows that already existed are not
// counted.
type Summary struct {
	LabCreated bool `json:"labCreated"`
	Users      int  `json:"users"`
	Doctors    int  `json:"doctors"`
	Tests      int  `json:"tests"`
	Parameters int  `json:"parameters"`
	Patients   int  `json:"patients"`
}

type Seeder struct {
	Admin    Admin
	Catalog  Catalog
	Workflow Workflow
	Log      zerolog.Logger

	// Seed drives the demo patient generator; runs with the same seed
	// produce the same patients.
	Seed int64
}

var mainLab = service.LabInput{
	LabName:            "NextGenLab Medical Diagnostics",
	GSTINNumber:        "27AABCT1234H1Z0",
	RegistrationNumber: "REG-2024-001",
	PoliceStationName:  "Cyber Crime Police Station",
	Address:            "123 Medical Complex, Healthcare City",
	PhoneNumber:        "9876543210",
}

var masterUser = service.CreateUserInput{
	UserID:      "master",
	Password:    "master123",
	FullName:    "Master Administrator",
	Email:       "master@nextgenlab.com",
	PhoneNumber: "9876543210",
	Role:        model.RoleMaster,
}

var staff = []service.CreateUserInput{
	{
		UserID:      "cashier",
		Password:    "cashier123",
		FullName:    "John Cashier",
		Email:       "cashier@nextgenlab.com",
		PhoneNumber: "9876543211",
		Role:        model.RoleCashier,
	},
	{
		UserID:      "technician",
		Password:    "tech123",
		FullName:    "Sarah Technician",
		Email:       "technician@nextgenlab.com",
		PhoneNumber: "9876543212",
		Role:        model.RoleLabTechnician,
	},
}

var doctors = []service.DoctorInput{
	{Name: "Dr. Rajesh Kumar", Specialization: "General Physician", ContactNumber: "9876543210"},
	{Name: "Dr. Priya Sharma", Specialization: "Cardiologist", ContactNumber: "9876543211"},
	{Name: "Dr. Amit Patel", Specialization: "Pathologist", ContactNumber: "9876543212"},
}

type panel struct {
	test   service.TestInput
	params []service.ParameterInput
}

var panels = []panel{
	{
		test: service.TestInput{Name: "Complete Blood Count (CBC)", Description: "Comprehensive blood test", Price: model.MustMoney("500.00")},
		params: []service.ParameterInput{
			{ParameterName: "Hemoglobin", Unit: "g/dL", NormalRange: "M: 13.5-17.5, F: 12.0-15.5"},
			{ParameterName: "RBC Count", Unit: "million/µL", NormalRange: "M: 4.5-5.5, F: 4.0-5.0"},
			{ParameterName: "WBC Count", Unit: "cells/µL", NormalRange: "4,000-11,000"},
			{ParameterName: "Platelet Count", Unit: "cells/µL", NormalRange: "150,000-450,000"},
		},
	},
	{
		test: service.TestInput{Name: "Lipid Profile", Description: "Cholesterol and triglycerides test", Price: model.MustMoney("800.00")},
		params: []service.ParameterInput{
			{ParameterName: "Total Cholesterol", Unit: "mg/dL", NormalRange: "< 200"},
			{ParameterName: "LDL Cholesterol", Unit: "mg/dL", NormalRange: "< 100"},
			{ParameterName: "HDL Cholesterol", Unit: "mg/dL", NormalRange: "> 40"},
			{ParameterName: "Triglycerides", Unit: "mg/dL", NormalRange: "< 150"},
		},
	},
	{
		test: service.TestInput{Name: "Blood Sugar (Fasting)", Description: "Fasting blood glucose test", Price: model.MustMoney("150.00")},
		params: []service.ParameterInput{
			{ParameterName: "Fasting Blood Glucose", Unit: "mg/dL", NormalRange: "70-100"},
		},
	},
	{
		test: service.TestInput{Name: "Liver Function Test (LFT)", Description: "Liver enzyme test", Price: model.MustMoney("700.00")},
		params: []service.ParameterInput{
			{ParameterName: "SGOT (AST)", Unit: "U/L", NormalRange: "< 40"},
			{ParameterName: "SGPT (ALT)", Unit: "U/L", NormalRange: "< 41"},
			{ParameterName: "Total Bilirubin", Unit: "mg/dL", NormalRange: "0.3-1.2"},
			{ParameterName: "Alkaline Phosphatase", Unit: "U/L", NormalRange: "44-147"},
		},
	},
	{
		test: service.TestInput{Name: "Thyroid Profile", Description: "TSH, T3, T4 levels", Price: model.MustMoney("600.00")},
		params: []service.ParameterInput{
			{ParameterName: "TSH", Unit: "mIU/L", NormalRange: "0.4-4.0"},
			{ParameterName: "T3", Unit: "ng/dL", NormalRange: "80-200"},
			{ParameterName: "T4", Unit: "µg/dL", NormalRange: "4.5-12.0"},
		},
	},
}

// Run seeds reference data and then demoPatients generated patients.
func (s *Seeder) Run(ctx context.Context, demoPatients int) (Summary, error) {
	var sum Summary
	if err := s.Admin.EnsureRoles(ctx); err != nil {
		return sum, fmt.Errorf("roles: %w", err)
	}
	labID, err := s.lab(ctx, &sum)
	if err != nil {
		return sum, err
	}
	if err := s.users(ctx, labID, &sum); err != nil {
		return sum, err
	}
	if err := s.doctors(ctx, &sum); err != nil {
		return sum, err
	}
	if err := s.tests(ctx, &sum); err != nil {
		return sum, err
	}
	if demoPatients > 0 {
		if err := s.patients(ctx, demoPatients, &sum); err != nil {
			return sum, err
		}
	}
	s.Log.Info().
		Bool("lab_created", sum.LabCreated).
		Int("users", sum.Users).
		Int("doctors", sum.Doctors).
		Int("tests", sum.Tests).
		Int("parameters", sum.Parameters).
		Int("patients", sum.Patients).
		Msg("seed complete")
	return sum, nil
}

// lab runs first-time setup when no lab exists and returns the main lab
// id.
func (s *Seeder) lab(ctx context.Context, sum *Summary) (uint64, error) {
	lab, err := s.Admin.MainLab(ctx)
	if err == nil {
		return lab.ID, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return 0, fmt.Errorf("main lab: %w", err)
	}
	res, err := s.Admin.Setup(ctx, service.SetupInput{Lab: mainLab, Master: masterUser})
	if err != nil {
		return 0, fmt.Errorf("setup: %w", err)
	}
	sum.LabCreated = true
	sum.Users++
	return res.Lab.ID, nil
}

func (s *Seeder) users(ctx context.Context, labID uint64, sum *Summary) error {
	for _, in := range staff {
		_, err := s.Admin.CreateUser(ctx, labID, in)
		if apperr.Is(err, apperr.KindConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("user %s: %w", in.UserID, err)
		}
		sum.Users++
	}
	return nil
}

func (s *Seeder) doctors(ctx context.Context, sum *Summary) error {
	existing, err := s.Catalog.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[d.Name] = true
	}
	for _, in := range doctors {
		if have[in.Name] {
			continue
		}
		if _, err := s.Catalog.CreateDoctor(ctx, in); err != nil {
			return fmt.Errorf("doctor %s: %w", in.Name, err)
		}
		sum.Doctors++
	}
	return nil
}

// tests creates missing panels. Parameters are only added to panels this
// run created, so an edited panel is left alone.
func (s *Seeder) tests(ctx context.Context, sum *Summary) error {
	existing, err := s.Catalog.ListTests(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Name] = true
	}
	for _, p := range panels {
		if have[p.test.Name] {
			continue
		}
		t, err := s.Catalog.CreateTest(ctx, p.test)
		if err != nil {
			return fmt.Errorf("test %s: %w", p.test.Name, err)
		}
		sum.Tests++
		for _, in := range p.params {
			if _, err := s.Catalog.CreateParameter(ctx, t.ID, in); err != nil {
				return fmt.Errorf("parameter %s/%s: %w", p.test.Name, in.ParameterName, err)
			}
			sum.Parameters++
		}
	}
	return nil
}

var (
	genders   = []string{"Male", "Female", "Other"}
	histories = []string{"", "", "Hypertension", "Type 2 diabetes", "Asthma", "Hypothyroidism"}
	allergies = []string{"", "", "", "Penicillin", "Peanuts", "Dust"}
)

// patients registers n generated patients, each with one to three random
// tests and a bill. About half of the bills are paid. Events carry actor 0.
func (s *Seeder) patients(ctx context.Context, n int, sum *Summary) error {
	tests, err := s.Catalog.ListTests(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(tests) == 0 {
		return errors.New("demo patients need at least one test")
	}
	docs, err := s.Catalog.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}

	f := faker.NewWithSeed(rand.NewSource(s.Seed))
	r := rand.New(rand.NewSource(s.Seed))
	for i := 0; i < n; i++ {
		in := demoPatient(f, r, tests, docs)
		reg, err := s.Workflow.RegisterPatient(ctx, in, 0)
		if err != nil {
			return fmt.Errorf("demo patient %d: %w", i+1, err)
		}
		bill := service.CreateBillInput{PatientID: reg.Patient.ID, IsPaid: f.Bool()}
		if _, err := s.Workflow.CreateBill(ctx, bill, 0); err != nil {
			return fmt.Errorf("demo bill %d: %w", i+1, err)
		}
		sum.Patients++
	}
	return nil
}

func demoPatient(f faker.Faker, r *rand.Rand, tests []model.Test, docs []model.Doctor) service.RegisterPatientInput {
	age := f.IntBetween(1, 90)
	in := service.RegisterPatientInput{
		FullName:       f.Person().Name(),
		Age:            &age,
		Gender:         f.RandomStringElement(genders),
		PhoneNumber:    f.Numerify("9#########"),
		AddressLine1:   f.Address().StreetAddress(),
		State:          f.Address().State(),
		Pincode:        f.Numerify("4#####"),
		MedicalHistory: f.RandomStringElement(histories),
		Allergies:      f.RandomStringElement(allergies),
		PatientConsent: true,
	}
	if len(docs) > 0 && f.Bool() {
		id := docs[f.IntBetween(0, len(docs)-1)].ID
		in.ReferredBy = &id
	}
	k := f.IntBetween(1, min(3, len(tests)))
	for _, j := range r.Perm(len(tests))[:k] {
		in.TestIDs = append(in.TestIDs, tests[j].ID)
	}
	return in
}
