package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"500", 50000, false},
		{"500.00", 50000, false},
		{"800.5", 80050, false},
		{"0.07", 7, false},
		{".5", 50, false},
		{" 1300.00 ", 130000, false},
		{"-100.25", -10025, false},
		{"", 0, true},
		{"5.", 0, true},
		{"1.005", 0, true},
		{"12a", 0, true},
		{"1e3", 0, true},
		{"+-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMoney)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "1300.00", Money(130000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-12.30", Money(-1230).String())
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: MustMoney("1200")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"1200.00"}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"100.50","b":100,"c":12.5}`), &in))
	assert.Equal(t, Money(10050), in.A)
	assert.Equal(t, Money(10000), in.B)
	assert.Equal(t, Money(1250), in.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"1.001"}`), &in))
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("500.00")))
	assert.Equal(t, Money(50000), m)
	require.NoError(t, m.Scan("0.10"))
	assert.Equal(t, Money(10), m)
	require.NoError(t, m.Scan(int64(3)))
	assert.Equal(t, Money(300), m)
	require.NoError(t, m.Scan(149.99))
	assert.Equal(t, Money(14999), m)
	require.NoError(t, m.Scan(nil))
	assert.Equal(t, Money(0), m)
	assert.Error(t, m.Scan(true))

	v, err := Money(120000).Value()
	require.NoError(t, err)
	assert.Equal(t, "1200.00", v)
}

func TestFormatIdentifiers(t *testing.T) {
	day := time.Date(2026, time.October, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "INV-20261007-0001", FormatInvoiceNumber(day, 1))
	assert.Equal(t, "INV-20261007-0042", FormatInvoiceNumber(day, 42))
	assert.Equal(t, "PATNO-0000012", FormatPatientID(12))
	assert.Equal(t, "DOCNO-0000003", FormatDoctorID(3))
}

func TestUserHasPermission(t *testing.T) {
	master := User{Role: RoleMaster}
	cashier := User{Role: RoleCashier}
	tech := User{Role: RoleLabTechnician, Permissions: []string{PermTestEntry, PermTestResults}}
	custom := User{Role: RoleCashier, Permissions: []string{PermAll}}

	assert.True(t, master.HasPermission(PermTestResults))
	assert.True(t, cashier.HasPermission(PermBilling))
	assert.True(t, cashier.HasPermission(PermPayments))
	assert.False(t, cashier.HasPermission(PermTestResults))
	assert.True(t, tech.HasPermission(PermTestResults))
	assert.False(t, tech.HasPermission(PermBilling))
	assert.True(t, custom.HasPermission(PermTestEntry))
}

func TestTestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusBilled.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, TestStatus("in_progress").Valid())
}
