package repository

import "database/sql"

// Store bundles every repository over one pool.
type Store struct {
	DB           *sql.DB
	Labs         *LabRepo
	Users        *UserRepo
	Tokens       *TokenRepo
	Doctors      *DoctorRepo
	Tests        *TestRepo
	Patients     *PatientRepo
	PatientTests *PatientTestRepo
	Results      *ResultRepo
	Bills        *BillRepo
	Reports      *ReportRepo
	Snapshots    *SnapshotRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:           db,
		Labs:         NewLabRepo(db),
		Users:        NewUserRepo(db),
		Tokens:       NewTokenRepo(db),
		Doctors:      NewDoctorRepo(db),
		Tests:        NewTestRepo(db),
		Patients:     NewPatientRepo(db),
		PatientTests: NewPatientTestRepo(db),
		Results:      NewResultRepo(db),
		Bills:        NewBillRepo(db),
		Reports:      NewReportRepo(db),
		Snapshots:    NewSnapshotRepo(db),
	}
}
