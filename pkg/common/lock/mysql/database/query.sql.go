package helixMysql

import (
	"context"
	"database/sql"
)

const createLockTableStatement = `
CREATE TABLE IF NOT EXISTS distributed_locks (
	lock_key   VARCHAR(255) NOT NULL,
	owner_id   VARCHAR(255) NOT NULL,
	expires_at TIMESTAMP(3) NOT NULL,
	epoch      BIGINT NOT NULL DEFAULT 1,
	status     TINYINT NOT NULL DEFAULT 1,
	created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	PRIMARY KEY (lock_key)
)`

// tryAcquireLockStatement rewrites owner/expiry/epoch only when the existing
// row is already expired; otherwise it writes back the same values so
// RowsAffected stays 0 and the caller can tell contention from a win.
const tryAcquireLockStatement = `
INSERT INTO distributed_locks (lock_key, owner_id, expires_at, epoch, status)
VALUES (?, ?, ?, 1, 1)
ON DUPLICATE KEY UPDATE
	owner_id   = IF(expires_at <= CURRENT_TIMESTAMP(3), VALUES(owner_id), owner_id),
	epoch      = IF(expires_at <= CURRENT_TIMESTAMP(3), epoch + 1, epoch),
	expires_at = IF(expires_at <= CURRENT_TIMESTAMP(3), VALUES(expires_at), expires_at)`

const releaseLockStatement = `
DELETE FROM distributed_locks WHERE lock_key = ? AND owner_id = ?`

const getLockStatement = `
SELECT lock_key, owner_id, expires_at, epoch, status, created_at, updated_at
FROM distributed_locks WHERE lock_key = ?`

func (q *Queries) CreateLockTable(ctx context.Context) error {
	_, err := q.createLockTableStmt.ExecContext(ctx)
	return err
}

func (q *Queries) TryAcquireLock(ctx context.Context, arg TryAcquireLockParams) (sql.Result, error) {
	return q.tryAcquireLockStmt.ExecContext(ctx, arg.LockKey, arg.OwnerID, arg.ExpiresAt)
}

func (q *Queries) ReleaseLock(ctx context.Context, lockKey, ownerID string) (sql.Result, error) {
	return q.releaseLockStmt.ExecContext(ctx, lockKey, ownerID)
}

func (q *Queries) GetLock(ctx context.Context, lockKey string) (LockRow, error) {
	var row LockRow
	err := q.getLockStmt.QueryRowContext(ctx, lockKey).Scan(
		&row.LockKey, &row.OwnerID, &row.ExpiresAt, &row.Epoch, &row.Status, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}
