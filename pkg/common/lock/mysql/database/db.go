package helixMysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is the minimal surface Queries needs from *sql.DB or *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type TryAcquireLockParams struct {
	LockKey   string
	OwnerID   string
	ExpiresAt time.Time
}

// Queries holds the prepared statements for the distributed_locks table. It
// is safe for concurrent use by multiple goroutines, the same guarantee
// *sql.Stmt itself provides.
type Queries struct {
	db DBTX

	createLockTableStmt *sql.Stmt
	tryAcquireLockStmt  *sql.Stmt
	releaseLockStmt     *sql.Stmt
	getLockStmt         *sql.Stmt
}

// Querier is the interface Queries satisfies; callers depend on this so a
// fake can be substituted in unit tests.
type Querier interface {
	CreateLockTable(ctx context.Context) error
	TryAcquireLock(ctx context.Context, arg TryAcquireLockParams) (sql.Result, error)
	ReleaseLock(ctx context.Context, lockKey, ownerID string) (sql.Result, error)
	GetLock(ctx context.Context, lockKey string) (LockRow, error)
}

// Prepare prepares every statement once against the distributed_locks table.
func Prepare(ctx context.Context, db DBTX) (*Queries, error) {
	q := &Queries{db: db}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&q.createLockTableStmt, createLockTableStatement},
		{&q.tryAcquireLockStmt, tryAcquireLockStatement},
		{&q.releaseLockStmt, releaseLockStatement},
		{&q.getLockStmt, getLockStatement},
	}
	for _, s := range stmts {
		stmt, err := db.PrepareContext(ctx, s.query)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare statement %q: %w", s.query, err)
		}
		*s.dst = stmt
	}
	return q, nil
}
