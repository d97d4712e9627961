package arbiter

import (
	"context"
	"time"

	"github.com/devlibx/gox-leasearbiter/pkg/common/lock"
)

// ActionType is a closed enumeration of verbs an ActionKey may carry.
type ActionType string

const (
	ActionLaunch ActionType = "LAUNCH"
	ActionKill   ActionType = "KILL"
	ActionResume ActionType = "RESUME"
)

// ActionKey identifies the unit of work subject to arbitration. A LAUNCH and
// a KILL on the same flow are distinct keys and may hold separate leases.
type ActionKey struct {
	FlowGroup  string
	FlowName   string
	JobName    string
	ActionType ActionType
}

// LeaseParams is the caller-supplied input to TryAcquireLease. Reminders
// carry the event time of the original event they are reminding about, not
// the current wall clock.
type LeaseParams struct {
	Key             ActionKey
	EventTimeMillis int64
	IsReminder      bool
}

// Obtained indicates the caller now holds the lease.
type Obtained struct {
	ConsensusParams        LeaseParams
	LeaseAcquisitionMillis int64
	MinLingerMillis        int64
}

// LeasedToAnother indicates another participant holds the lease.
// MinLingerMillis is a hint for how long before retrying is worthwhile.
type LeasedToAnother struct {
	ConsensusParams LeaseParams
	MinLingerMillis int64
}

// NoLongerLeasing indicates the event has been completed; no further action
// is required by the caller.
type NoLongerLeasing struct{}

// LeaseAttemptStatus is the sum type returned by TryAcquireLease. Exactly one
// of Obtained, LeasedToAnother, NoLongerLeasing is non-nil.
type LeaseAttemptStatus struct {
	Obtained        *Obtained
	LeasedToAnother *LeasedToAnother
	NoLongerLeasing *NoLongerLeasing
}

// ObtainedStatus wraps v as a LeaseAttemptStatus whose Obtained branch is set.
func ObtainedStatus(v Obtained) LeaseAttemptStatus {
	return LeaseAttemptStatus{Obtained: &v}
}

// LeasedToAnotherStatus wraps v as a LeaseAttemptStatus whose LeasedToAnother
// branch is set.
func LeasedToAnotherStatus(v LeasedToAnother) LeaseAttemptStatus {
	return LeaseAttemptStatus{LeasedToAnother: &v}
}

// NoLongerLeasingStatus returns the terminal status for an event that has
// already been completed.
func NoLongerLeasingStatus() LeaseAttemptStatus {
	return LeaseAttemptStatus{NoLongerLeasing: &NoLongerLeasing{}}
}

// Arbiter is the public surface of the multi-active lease arbiter.
type Arbiter interface {
	// TryAcquireLease resolves ownership of params.Key amongst competing
	// participants. When adoptConsensusFlowExecutionID is true, the returned
	// status's ConsensusParams carry the store-laundered event time instead
	// of the caller-supplied one, so all participants converge on the same
	// event identifier.
	TryAcquireLease(ctx context.Context, params LeaseParams, adoptConsensusFlowExecutionID bool) (LeaseAttemptStatus, error)

	// RecordLeaseSuccess clears the lease held by status, provided the row
	// has not changed since it was obtained. A false return means the lease
	// already expired or was swept away; this is non-fatal.
	RecordLeaseSuccess(ctx context.Context, status Obtained) (bool, error)

	// ExistsSimilarLeaseWithinConsolidationPeriod reports whether a row exists
	// for params.Key whose stored event time is within epsilon of the store's
	// current time (for a reminder: of params.EventTimeMillis).
	ExistsSimilarLeaseWithinConsolidationPeriod(ctx context.Context, params LeaseParams) (bool, error)
}

// Config carries the options needed to stand up an Arbiter.
type Config struct {
	Table           string        `yaml:"table"`
	ConstantsTable  string        `yaml:"constants-table"`
	EpsilonMillis   int           `yaml:"epsilon-ms"`
	LingerMillis    int           `yaml:"linger-ms"`
	RetentionMillis int64         `yaml:"retention-ms"`
	SweepInterval   time.Duration `yaml:"sweep-interval"`

	// SweepLock, when set, is acquired before each retention sweep so that
	// only one participant in the fleet runs DELETE against the lease table
	// at a time. Sweeping is safe without it (DELETE is idempotent), so this
	// is an optional contention-reduction knob, not a correctness dependency.
	SweepLock lock.Locker `yaml:"-"`
}

const (
	DefaultEpsilonMillis   = 3_000
	DefaultLingerMillis    = 300_000
	DefaultRetentionMillis = int64(60 * 24 * time.Hour / time.Millisecond)
	DefaultSweepInterval   = 4 * time.Hour
)

// SetupDefault fills in defaults for optional fields and validates that the
// required ones were set.
func (c *Config) SetupDefault() error {
	if c.Table == "" {
		return errMissingTableName
	}
	if c.ConstantsTable == "" {
		return errMissingConstantsTableName
	}
	if c.EpsilonMillis <= 0 {
		c.EpsilonMillis = DefaultEpsilonMillis
	}
	if c.LingerMillis <= 0 {
		c.LingerMillis = DefaultLingerMillis
	}
	if c.RetentionMillis <= 0 {
		c.RetentionMillis = DefaultRetentionMillis
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return nil
}
