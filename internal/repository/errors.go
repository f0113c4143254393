// Package repository holds the MySQL data access layer. Missing rows are
// reported as model.ErrNotFound; driver errors that callers need to tell
// apart (duplicates, foreign keys, lock conflicts) are classified by the
// helpers below so the service layer never inspects driver types itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the service reacts to.
const (
	errDuplicateEntry     = 1062
	errRowIsReferenced    = 1451 // delete/update of a parent row with children
	errNoReferencedRow    = 1452 // insert/update of a child row with a missing parent
	errLockWaitTimeout    = 1205
	errDeadlock           = 1213
	errRowIsReferencedOld = 1217
	errNoReferencedRowOld = 1216
)

// ErrEmailExists is returned when a user registers with a taken email.
var ErrEmailExists = errors.New("email already exists")

// ErrHasDependents is returned when deleting a row that reservations still
// point to. Handlers should translate this into an HTTP 409 response.
var ErrHasDependents = errors.New("record has dependent reservations")

// ErrMissingParent is returned when a write references a client or trip
// that no longer exists.
var ErrMissingParent = errors.New("referenced record does not exist")

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsRetryable reports whether err is a lock conflict that a fresh
// transaction may not hit again.
func IsRetryable(err error) bool {
	switch mysqlErrNumber(err) {
	case errDeadlock, errLockWaitTimeout:
		return true
	}
	return false
}

func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDuplicateEntry }

func isReferenced(err error) bool {
	n := mysqlErrNumber(err)
	return n == errRowIsReferenced || n == errRowIsReferencedOld
}

func isMissingParent(err error) bool {
	n := mysqlErrNumber(err)
	return n == errNoReferencedRow || n == errNoReferencedRowOld
}
