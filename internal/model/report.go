package model

// ReportRow is one (patient test, parameter) line of the denormalized
// report. Result fields are nil when nothing has been entered yet.
type ReportRow struct {
	PatientTestID    uint64  `json:"patientTestId"`
	TestName         string  `json:"testName"`
	TestPrice        Money   `json:"testPrice"`
	ReportImpression *string `json:"reportImpression"`
	ParameterID      uint64  `json:"parameterId"`
	ParameterName    string  `json:"parameterName"`
	Unit             *string `json:"unit"`
	NormalRange      *string `json:"normalRange"`
	ResultValue      *string `json:"resultValue"`
	ResultRemarks    *string `json:"resultRemarks"`
}

// PatientReport is the full report payload. Doctor and Bill are nil when
// absent; Tests is never nil.
type PatientReport struct {
	Patient Patient     `json:"patient"`
	Doctor  *Doctor     `json:"doctor"`
	Tests   []ReportRow `json:"tests"`
	Bill    *Bill       `json:"bill"`
}

// BillItem is one distinct test on the printed bill.
type BillItem struct {
	PatientTestID uint64 `json:"patientTestId"`
	TestName      string `json:"testName"`
	Price         Money  `json:"price"`
}

// BillView is the data behind the printable bill.
type BillView struct {
	Lab      *LabInfo   `json:"lab"`
	Patient  Patient    `json:"patient"`
	Doctor   *Doctor    `json:"doctor"`
	Items    []BillItem `json:"items"`
	Subtotal Money      `json:"subtotal"`
	Bill     *Bill      `json:"bill"`
}

// Flag marks a result against its normal range.
type Flag string

const (
	FlagNone   Flag = ""
	FlagLow    Flag = "low"
	FlagNormal Flag = "normal"
	FlagHigh   Flag = "high"
)

// ReportParameter is one rendered parameter line.
type ReportParameter struct {
	ParameterID   uint64  `json:"parameterId"`
	ParameterName string  `json:"parameterName"`
	Unit          string  `json:"unit,omitempty"`
	NormalRange   string  `json:"normalRange,omitempty"`
	Value         *string `json:"value"`
	Remarks       *string `json:"remarks,omitempty"`
	Flag          Flag    `json:"flag,omitempty"`
}

// ReportSection groups the parameters of one test with its impression.
type ReportSection struct {
	PatientTestID uint64            `json:"patientTestId"`
	TestName      string            `json:"testName"`
	Impression    *string           `json:"impression"`
	Parameters    []ReportParameter `json:"parameters"`
}

// ReportView is the data behind the printable report.
type ReportView struct {
	Lab      *LabInfo        `json:"lab"`
	Patient  Patient         `json:"patient"`
	Doctor   *Doctor         `json:"doctor"`
	Sections []ReportSection `json:"sections"`
	Bill     *Bill           `json:"bill"`
}
