package helixMysql

import "time"

// LockRow is one row of the distributed_locks table.
type LockRow struct {
	LockKey   string
	OwnerID   string
	ExpiresAt time.Time
	Epoch     int64
	Status    int8
	CreatedAt time.Time
	UpdatedAt time.Time
}
