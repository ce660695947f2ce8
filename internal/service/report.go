package service

import (
	"context"
	"errors"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/repository"
)

// GetPatientReport assembles patient, referring doctor, the flat
// per-parameter rows and the bill. It is recomputed on every call.
func (w *Workflow) GetPatientReport(ctx context.Context, patientID uint64) (model.PatientReport, error) {
	if patientID == 0 {
		return model.PatientReport{}, apperr.Validation("patientId must be a positive id")
	}
	p, err := w.store.Patients.GetByID(ctx, w.store.DB, patientID)
	if err != nil {
		return model.PatientReport{}, mapNotFound(err, "patient", patientID)
	}
	report := model.PatientReport{Patient: p, Tests: []model.ReportRow{}}

	if p.ReferredBy != nil {
		d, err := w.store.Doctors.GetByID(ctx, w.store.DB, *p.ReferredBy)
		switch {
		case err == nil:
			report.Doctor = &d
		case !errors.Is(err, repository.ErrNotFound):
			return model.PatientReport{}, internal(err)
		}
	}

	rows, err := w.store.Reports.Rows(ctx, patientID)
	if err != nil {
		return model.PatientReport{}, internal(err)
	}
	report.Tests = rows

	b, err := w.store.Bills.GetByPatientID(ctx, w.store.DB, patientID)
	switch {
	case err == nil:
		report.Bill = &b
	case !errors.Is(err, repository.ErrNotFound):
		return model.PatientReport{}, internal(err)
	}
	return report, nil
}

func (w *Workflow) mainLab(ctx context.Context) (*model.LabInfo, error) {
	lab, err := w.store.Labs.Main(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return &lab, nil
}

// BillView returns the printable bill of a patient.
func (w *Workflow) BillView(ctx context.Context, patientID uint64) (model.BillView, error) {
	report, err := w.GetPatientReport(ctx, patientID)
	if err != nil {
		return model.BillView{}, err
	}
	lab, err := w.mainLab(ctx)
	if err != nil {
		return model.BillView{}, err
	}
	return BuildBillView(report, lab), nil
}

// ReportView returns the printable report of a patient.
func (w *Workflow) ReportView(ctx context.Context, patientID uint64) (model.ReportView, error) {
	report, err := w.GetPatientReport(ctx, patientID)
	if err != nil {
		return model.ReportView{}, err
	}
	lab, err := w.mainLab(ctx)
	if err != nil {
		return model.ReportView{}, err
	}
	return BuildReportView(report, lab), nil
}

// BuildBillView collapses the flat rows to one line per patient test.
func BuildBillView(r model.PatientReport, lab *model.LabInfo) model.BillView {
	v := model.BillView{Lab: lab, Patient: r.Patient, Doctor: r.Doctor, Bill: r.Bill, Items: []model.BillItem{}}
	seen := make(map[uint64]bool)
	for _, row := range r.Tests {
		if seen[row.PatientTestID] {
			continue
		}
		seen[row.PatientTestID] = true
		v.Items = append(v.Items, model.BillItem{
			PatientTestID: row.PatientTestID,
			TestName:      row.TestName,
			Price:         row.TestPrice,
		})
		v.Subtotal += row.TestPrice
	}
	return v
}

// BuildReportView groups rows by patient test in first-seen order and
// flags each value against its normal range.
func BuildReportView(r model.PatientReport, lab *model.LabInfo) model.ReportView {
	v := model.ReportView{Lab: lab, Patient: r.Patient, Doctor: r.Doctor, Bill: r.Bill, Sections: []model.ReportSection{}}
	index := make(map[uint64]int)
	for _, row := range r.Tests {
		i, ok := index[row.PatientTestID]
		if !ok {
			i = len(v.Sections)
			index[row.PatientTestID] = i
			v.Sections = append(v.Sections, model.ReportSection{
				PatientTestID: row.PatientTestID,
				TestName:      row.TestName,
				Impression:    row.ReportImpression,
				Parameters:    []model.ReportParameter{},
			})
		}
		p := model.ReportParameter{
			ParameterID:   row.ParameterID,
			ParameterName: row.ParameterName,
			Unit:          deref(row.Unit),
			NormalRange:   deref(row.NormalRange),
			Value:         row.ResultValue,
			Remarks:       row.ResultRemarks,
		}
		if row.ResultValue != nil {
			p.Flag = Flag(p.NormalRange, r.Patient.Gender, *row.ResultValue)
		}
		v.Sections[i].Parameters = append(v.Sections[i].Parameters, p)
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
