package helixLeaseArbiter

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers relevant to claim-attempt classification.
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDupEntry        = 1062
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

// isDuplicateKey reports whether err is a primary-key violation on insert,
// meaning a competing participant created the row first.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDupEntry
}

// isTransient reports whether err is a transient store error worth retrying
// connection drops, lock wait timeouts, and deadlocks.
func isTransient(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}

var (
	errEventTimestampNull    = errors.New("event_timestamp should never be null (it is always set to current timestamp)")
	errRowDisappeared        = errors.New("row disappeared between claim attempt and re-select")
	errCompletionTooManyRows = errors.New("lease completion updated more than one row")
)
