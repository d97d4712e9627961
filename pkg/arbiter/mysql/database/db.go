package helixArbiterMysql

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the minimal surface Queries needs from *sql.DB or *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ActionKeyParams identifies the row a statement acts on.
type ActionKeyParams struct {
	FlowGroup string
	FlowName  string
	JobName   string
	DagAction string
}

// Queries holds the prepared statements for one (leaseTable, constantsTable)
// pair. It is safe for concurrent use by multiple goroutines, the same
// guarantee *sql.Stmt itself provides.
type Queries struct {
	db DBTX

	leaseTable     string
	constantsTable string

	createLeaseTableStmt        *sql.Stmt
	createConstantsTableStmt    *sql.Stmt
	upsertConstantsStmt         *sql.Stmt
	getEventInfoStmt            *sql.Stmt
	getEventInfoForReminderStmt *sql.Stmt
	insertIfAbsentStmt          *sql.Stmt
	updateIfMatchAllStmt        *sql.Stmt
	updateIfFinishedStmt        *sql.Stmt
	selectAfterClaimStmt        *sql.Stmt
	completeLeaseStmt           *sql.Stmt
	deleteExpiredStmt           *sql.Stmt
}

// Querier is the interface Queries satisfies; callers depend on this so a
// fake can be substituted in unit tests.
type Querier interface {
	CreateLeaseTable(ctx context.Context) error
	CreateConstantsTable(ctx context.Context) error
	UpsertConstants(ctx context.Context, epsilonMillis, lingerMillis int32) error
	GetEventInfo(ctx context.Context, key ActionKeyParams) (EventInfoRow, error)
	GetEventInfoForReminder(ctx context.Context, key ActionKeyParams, reminderEventTimeMillis int64) (EventInfoRow, error)
	InsertIfAbsent(ctx context.Context, key ActionKeyParams) (sql.Result, error)
	UpdateIfMatchAll(ctx context.Context, key ActionKeyParams, expectedEventMillis, expectedLeaseMillis int64) (sql.Result, error)
	UpdateIfFinished(ctx context.Context, key ActionKeyParams, expectedEventMillis int64) (sql.Result, error)
	SelectAfterClaim(ctx context.Context, key ActionKeyParams) (SelectAfterClaimRow, error)
	CompleteLease(ctx context.Context, key ActionKeyParams, eventTimestampMillis, leaseAcquisitionTimestampMillis int64) (sql.Result, error)
	DeleteExpired(ctx context.Context, retentionMillis int64) (sql.Result, error)
}

// Prepare formats the parameterised SQL templates for the given table names
// and prepares every statement once.
func Prepare(ctx context.Context, db DBTX, leaseTable, constantsTable string) (*Queries, error) {
	q := &Queries{db: db, leaseTable: leaseTable, constantsTable: constantsTable}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&q.createLeaseTableStmt, fmt.Sprintf(createLeaseArbiterTableStatement, leaseTable)},
		{&q.createConstantsTableStmt, fmt.Sprintf(createConstantsTableStatement, constantsTable)},
		{&q.upsertConstantsStmt, fmt.Sprintf(upsertConstantsTableStatement, constantsTable)},
		{&q.getEventInfoStmt, fmt.Sprintf(getEventInfoStatement, leaseTable, constantsTable)},
		{&q.getEventInfoForReminderStmt, fmt.Sprintf(getEventInfoStatementForReminder, leaseTable, constantsTable)},
		{&q.insertIfAbsentStmt, fmt.Sprintf(acquireLeaseIfNewRowStatement, leaseTable)},
		{&q.updateIfMatchAllStmt, fmt.Sprintf(acquireLeaseIfMatchingAllColsStatement, leaseTable)},
		{&q.updateIfFinishedStmt, fmt.Sprintf(acquireLeaseIfFinishedLeasingStatement, leaseTable)},
		{&q.selectAfterClaimStmt, fmt.Sprintf(selectAfterClaimStatement, leaseTable, constantsTable)},
		{&q.completeLeaseStmt, fmt.Sprintf(completeLeaseStatement, leaseTable)},
		{&q.deleteExpiredStmt, fmt.Sprintf(deleteExpiredRowsStatement, leaseTable)},
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
