package model

import "time"

// Test is an orderable lab test with its list price.
type Test struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Price          Money     `json:"price"`
	ParameterCount int       `json:"parameterCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TestParameter is one measured quantity of a test. NormalRange is free
// text; see service.Flag for the forms it understands.
type TestParameter struct {
	ID            uint64    `json:"id"`
	TestID        uint64    `json:"testId"`
	ParameterName string    `json:"parameterName"`
	Unit          string    `json:"unit,omitempty"`
	NormalRange   string    `json:"normalRange,omitempty"`
	SortOrder     int       `json:"sortOrder"`
	CreatedAt     time.Time `json:"createdAt"`
}
