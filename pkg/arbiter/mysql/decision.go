package helixLeaseArbiter

import (
	"github.com/devlibx/gox-leasearbiter/pkg/arbiter"
	helixArbiterMysql "github.com/devlibx/gox-leasearbiter/pkg/arbiter/mysql/database"
)

// Lease validity status as projected by the GetEventInfo statements.
const (
	leaseValidityValid   = int32(1)
	leaseValidityExpired = int32(2)
	leaseValidityNone    = int32(3)
)

// eventInfoResult is the plain product type carrying the six fields the
// info query projects.
type eventInfoResult struct {
	dbEventMillis   int64
	dbLeaseMillis   int64
	hasLease        bool
	isWithinEpsilon bool
	validityStatus  int32
	linger          int32
	dbCurrentMillis int64
}

func newEventInfoResult(row helixArbiterMysql.EventInfoRow) (eventInfoResult, error) {
	if !row.UtcEventTimestamp.Valid {
		return eventInfoResult{}, errEventTimestampNull
	}
	r := eventInfoResult{
		dbEventMillis:   row.UtcEventTimestamp.Time.UnixMilli(),
		isWithinEpsilon: row.IsWithinEpsilon,
		validityStatus:  row.LeaseValidityStatus,
		linger:          row.Linger,
	}
	if row.UtcLeaseAcquisitionTimestamp.Valid {
		r.hasLease = true
		r.dbLeaseMillis = row.UtcLeaseAcquisitionTimestamp.Time.UnixMilli()
	}
	if row.UtcCurrentTimestamp.Valid {
		r.dbCurrentMillis = row.UtcCurrentTimestamp.Time.UnixMilli()
	}
	return r, nil
}

// selectInfoResult is the three-field DTO read back after a claim attempt.
type selectInfoResult struct {
	eventMillis int64
	hasLease    bool
	leaseMillis int64
	linger      int32
}

func newSelectInfoResult(row helixArbiterMysql.SelectAfterClaimRow) (selectInfoResult, error) {
	if !row.UtcEventTimestamp.Valid {
		return selectInfoResult{}, errEventTimestampNull
	}
	r := selectInfoResult{
		eventMillis: row.UtcEventTimestamp.Time.UnixMilli(),
		linger:      row.Linger,
	}
	if row.UtcLeaseAcquisitionTimestamp.Valid {
		r.hasLease = true
		r.leaseMillis = row.UtcLeaseAcquisitionTimestamp.Time.UnixMilli()
	}
	return r, nil
}

// claimKind names which of the three CAS statements must run next.
type claimKind int

const (
	claimNone claimKind = iota
	claimUpdateIfMatchAll
	claimUpdateIfFinished
)

// claimRequest is what the decision state machine asks the service layer to
// do next; expectedEventMillis/expectedLeaseMillis are the CAS precondition.
type claimRequest struct {
	kind                claimKind
	expectedEventMillis int64
	expectedLeaseMillis int64
	// dbCurrentMillis, when hasDbCurrent is set, seeds evaluateClaimOutcome's
	// wait-hint computation. The no-existing-row (CASE 1) path builds no
	// claimRequest and passes no current time, which mirrors the original's
	// Optional<Timestamp> dbCurrentTimestamp.
	dbCurrentMillis int64
	hasDbCurrent    bool
}

// classifyExistingRow resolves the decision state machine for a row that already
// exists. It returns either an immediate, final status (cases 2/3/5, plus the
// reminder short-circuit) or a claimRequest the caller must execute and then
// re-evaluate via evaluateClaimOutcome (cases 4/6). constraintViolation is
// non-empty when the caller should log a warning (still proceeds normally).
func classifyExistingRow(params arbiter.LeaseParams, info eventInfoResult, adoptConsensusID bool) (
	status *arbiter.LeaseAttemptStatus, claim *claimRequest, constraintViolation string) {

	if params.IsReminder {
		if params.EventTimeMillis < info.dbEventMillis {
			s := arbiter.NoLongerLeasingStatus()
			return &s, nil, ""
		}
		if params.EventTimeMillis > info.dbEventMillis {
			constraintViolation = "reminder event time newer than DB event time; DB laundering should guarantee monotonicity"
		}
	}

	switch info.validityStatus {
	case leaseValidityValid:
		if info.isWithinEpsilon {
			// CASE 2: same event, lease still valid.
			consensus := consensusParams(params, info.dbEventMillis, adoptConsensusID)
			waitHint := info.dbLeaseMillis + int64(info.linger) - info.dbCurrentMillis
			s := arbiter.LeasedToAnotherStatus(arbiter.LeasedToAnother{
				ConsensusParams: consensus,
				MinLingerMillis: waitHint,
			})
			return &s, nil, constraintViolation
		}
		// CASE 3: distinct event, lease still valid.
		consensus := consensusParams(params, info.dbCurrentMillis, adoptConsensusID)
		waitHint := info.dbLeaseMillis + int64(info.linger) - info.dbCurrentMillis
		s := arbiter.LeasedToAnotherStatus(arbiter.LeasedToAnother{
			ConsensusParams: consensus,
			MinLingerMillis: waitHint,
		})
		return &s, nil, constraintViolation

	case leaseValidityExpired:
		// CASE 4: lease expired, regardless of same/distinct event.
		if info.isWithinEpsilon && !params.IsReminder && constraintViolation == "" {
			constraintViolation = "lease expired for the same trigger event even though epsilon << linger"
		}
		return nil, &claimRequest{
			kind:                claimUpdateIfMatchAll,
			expectedEventMillis: info.dbEventMillis,
			expectedLeaseMillis: info.dbLeaseMillis,
			dbCurrentMillis:     info.dbCurrentMillis,
			hasDbCurrent:        true,
		}, constraintViolation

	default: // leaseValidityNone
		if info.isWithinEpsilon {
			// CASE 5: same event, finished.
			s := arbiter.NoLongerLeasingStatus()
			return &s, nil, constraintViolation
		}
		// CASE 6: distinct event, finished.
		return nil, &claimRequest{
			kind:                claimUpdateIfFinished,
			expectedEventMillis: info.dbEventMillis,
			dbCurrentMillis:     info.dbCurrentMillis,
			hasDbCurrent:        true,
		}, constraintViolation
	}
}

// consensusParams applies the adoptConsensusFlowExecutionID rewrite rule.
// The TODO below is preserved as-is from the upstream arbiter this was ported from:
// the rewrite happens unconditionally when adoptConsensusID is true, without
// special-casing reminders.
func consensusParams(params arbiter.LeaseParams, lauderedEventMillis int64, adoptConsensusID bool) arbiter.LeaseParams {
	if !adoptConsensusID {
		return params
	}
	// TODO: check whether reminder event before replacing flowExecutionId
	p := params
	p.EventTimeMillis = lauderedEventMillis
	return p
}

// evaluateClaimOutcome turns the row re-selected after a claim attempt, plus
// that attempt's rowsAffected, into a status. The caller must perform the
// mandatory re-select before calling it.
func evaluateClaimOutcome(rowsAffected int64, params arbiter.LeaseParams, sel selectInfoResult,
	dbCurrentMillis int64, hasDbCurrent bool, adoptConsensusID bool) arbiter.LeaseAttemptStatus {

	if !sel.hasLease {
		return arbiter.NoLongerLeasingStatus()
	}

	consensus := consensusParams(params, sel.eventMillis, adoptConsensusID)

	var minLinger int64
	if hasDbCurrent {
		minLinger = sel.leaseMillis + int64(sel.linger) - dbCurrentMillis
	} else {
		minLinger = int64(sel.linger)
	}

	if rowsAffected == 1 {
		return arbiter.ObtainedStatus(arbiter.Obtained{
			ConsensusParams:        consensus,
			LeaseAcquisitionMillis: sel.leaseMillis,
			MinLingerMillis:        minLinger,
		})
	}
	return arbiter.LeasedToAnotherStatus(arbiter.LeasedToAnother{
		ConsensusParams: consensus,
		MinLingerMillis: minLinger,
	})
}
