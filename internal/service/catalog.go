package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/repository"
)

// Catalog manages doctors, tests and test parameters.
type Catalog struct {
	store *repository.Store
	log   zerolog.Logger
}

func NewCatalog(store *repository.Store, log zerolog.Logger) *Catalog {
	return &Catalog{store: store, log: log}
}

type DoctorInput struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	ContactNumber  string `json:"contactNumber"`
}

type TestInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       model.Money `json:"price"`
}

type ParameterInput struct {
	ParameterName string `json:"parameterName"`
	Unit          string `json:"unit"`
	NormalRange   string `json:"normalRange"`
}

func (in DoctorInput) Validate() error {
	f := apperr.Fields{}
	f.Check(strings.TrimSpace(in.Name) != "", "name", "is required")
	f.MaxLen(in.Name, 255, "name")
	f.MaxLen(in.Specialization, 255, "specialization")
	f.MaxLen(in.ContactNumber, 32, "contactNumber")
	return f.Err()
}

func (in TestInput) Validate() error {
	f := apperr.Fields{}
	f.Check(strings.TrimSpace(in.Name) != "", "name", "is required")
	f.MaxLen(in.Name, 255, "name")
	f.MaxLen(in.Description, apperr.TextLen, "description")
	f.Check(in.Price > 0, "price", "must be greater than zero")
	return f.Err()
}

func (in ParameterInput) Validate() error {
	f := apperr.Fields{}
	f.Check(strings.TrimSpace(in.ParameterName) != "", "parameterName", "is required")
	f.MaxLen(in.ParameterName, 255, "parameterName")
	f.MaxLen(in.Unit, 64, "unit")
	f.MaxLen(in.NormalRange, 255, "normalRange")
	return f.Err()
}

func (c *Catalog) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	out, err := c.store.Doctors.List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// CreateDoctor inserts a doctor and assigns its DOCNO code.
func (c *Catalog) CreateDoctor(ctx context.Context, in DoctorInput) (model.Doctor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return model.Doctor{}, err
	}
	var d model.Doctor
	err := database.WithTx(ctx, c.store.DB, func(tx *sql.Tx) error {
		var err error
		d, err = c.store.Doctors.Create(ctx, tx, model.Doctor{
			Name:           in.Name,
			Specialization: strings.TrimSpace(in.Specialization),
			ContactNumber:  strings.TrimSpace(in.ContactNumber),
		})
		return err
	})
	if err != nil {
		return model.Doctor{}, internal(err)
	}
	c.log.Info().Uint64("doctor_id", d.ID).Str("code", d.DoctorID).Msg("doctor created")
	return d, nil
}

func (c *Catalog) ListTests(ctx context.Context) ([]model.Test, error) {
	out, err := c.store.Tests.List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// CreateTest adds a test. Names are unique and prices positive.
func (c *Catalog) CreateTest(ctx context.Context, in TestInput) (model.Test, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return model.Test{}, err
	}
	id, err := c.store.Tests.Create(ctx, model.Test{Name: in.Name, Description: strings.TrimSpace(in.Description), Price: in.Price})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.Test{}, apperr.Conflict("test " + in.Name + " already exists")
	}
	if err != nil {
		return model.Test{}, internal(err)
	}
	c.log.Info().Uint64("test_id", id).Str("name", in.Name).Msg("test created")
	return c.getTest(ctx, id)
}

func (c *Catalog) getTest(ctx context.Context, id uint64) (model.Test, error) {
	t, err := c.store.Tests.GetByID(ctx, id)
	if err != nil {
		return model.Test{}, mapNotFound(err, "test", id)
	}
	return t, nil
}

// TestParameters lists a test's parameters in display order.
func (c *Catalog) TestParameters(ctx context.Context, testID uint64) ([]model.TestParameter, error) {
	if _, err := c.getTest(ctx, testID); err != nil {
		return nil, err
	}
	out, err := c.store.Tests.Parameters(ctx, testID)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// CreateParameter appends a parameter to a test.
func (c *Catalog) CreateParameter(ctx context.Context, testID uint64, in ParameterInput) (model.TestParameter, error) {
	in.ParameterName = strings.TrimSpace(in.ParameterName)
	if err := in.Validate(); err != nil {
		return model.TestParameter{}, err
	}
	if _, err := c.getTest(ctx, testID); err != nil {
		return model.TestParameter{}, err
	}
	id, err := c.store.Tests.CreateParameter(ctx, model.TestParameter{
		TestID:        testID,
		ParameterName: in.ParameterName,
		Unit:          strings.TrimSpace(in.Unit),
		NormalRange:   strings.TrimSpace(in.NormalRange),
	})
	if err != nil {
		return model.TestParameter{}, internal(err)
	}
	p, err := c.store.Tests.ParameterByID(ctx, id)
	if err != nil {
		return model.TestParameter{}, mapNotFound(err, "parameter", id)
	}
	return p, nil
}
