package lock

import (
	"context"
	"time"
)

// Locker is the interface that wraps the basic lock and unlock methods. It is
// a single-key, TTL-based CAS lock: Acquire never blocks, it either wins the
// lock immediately or reports that another owner holds it.
type Locker interface {
	// Acquire attempts to claim the lock without blocking. If another owner
	// holds an unexpired lock, Acquired is false.
	Acquire(ctx context.Context, request *AcquireRequest) (*AcquireResponse, error)

	// Release clears the lock, provided it is still held by OwnerID.
	Release(ctx context.Context, request *ReleaseRequest) (*ReleaseResponse, error)
}

type AcquireRequest struct {
	LockKey string
	OwnerID string
	TTL     time.Duration
}

type AcquireResponse struct {
	OwnerID  string
	Acquired bool
	Epoch    int64 // Version token for optimistic locking
}

type ReleaseRequest struct {
	LockKey string
	OwnerID string
}

type ReleaseResponse struct {
	Released bool
}

// DBLockRecord represents a lock record as stored in the database
type DBLockRecord struct {
	LockKey   string    `json:"lock_key"`
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Epoch     int64     `json:"epoch"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
