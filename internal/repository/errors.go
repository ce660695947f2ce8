// Package repository holds the raw-SQL data access for every table.
// Repositories translate driver errors into the sentinels below so that
// services never have to inspect MySQL error numbers themselves.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrDuplicate matches any *DuplicateError via errors.Is.
var ErrDuplicate = errors.New("duplicate key")

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// DuplicateError reports a unique-key violation and which key fired.
type DuplicateError struct {
	Key string
	Err error
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("duplicate key %s", e.Key) }

func (e *DuplicateError) Unwrap() error { return e.Err }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// DuplicateKey returns the violated key name (without table prefix) when
// err is a unique-key violation.
func DuplicateKey(err error) (string, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.Key, true
	}
	return "", false
}

// IsRetryable reports whether err is a deadlock or lock wait timeout. InnoDB
// has already rolled the transaction back, so the caller may run it again.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
}

// translate maps sql.ErrNoRows and MySQL 1062 onto the package sentinels.
// Other errors pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return &DuplicateError{Key: keyFromMessage(me.Message), Err: err}
	}
	return err
}

// keyFromMessage extracts uk_bills_patient from
// "Duplicate entry '3' for key 'bills.uk_bills_patient'".
func keyFromMessage(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len(marker):], "'")
	if j := strings.LastIndex(key, "."); j >= 0 {
		key = key[j+1:]
	}
	return key
}
