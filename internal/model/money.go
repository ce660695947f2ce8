package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (paise/cents). Prices and bill totals
// are DECIMAL(10,2) in the database and two-decimal strings on the wire;
// arithmetic happens on the integer so totals are exact.
type Money int64

// ErrInvalidMoney is returned for malformed amounts.
var ErrInvalidMoney = errors.New("invalid money amount")

// ParseMoney parses "1300", "1300.5" or "1300.50". More than two decimal
// places is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, ErrInvalidMoney
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	var f int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
		}
	}
	if w > (math.MaxInt64-f)/100 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidMoney, s)
	}
	m := Money(w*100 + f)
	if neg {
		m = -m
	}
	return m, nil
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats with exactly two decimals.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts both "800.00" and 800 / 800.5.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*m = 0
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Scan reads DECIMAL columns, which the MySQL driver delivers as []byte.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		p, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = p
		return nil
	case string:
		p, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = p
		return nil
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		*m = Money(math.Round(v * 100))
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

// Value writes the decimal string form so MySQL stores it exactly.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
