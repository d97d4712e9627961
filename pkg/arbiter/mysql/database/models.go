package helixArbiterMysql

import "database/sql"

// LeaseArbiterRow mirrors one row of the lease arbiter table.
type LeaseArbiterRow struct {
	FlowGroup                 string
	FlowName                  string
	JobName                   string
	DagAction                 string
	EventTimestamp            sql.NullTime
	LeaseAcquisitionTimestamp sql.NullTime
}

// ConstantsRow mirrors the single-row constants table.
type ConstantsRow struct {
	PrimaryKey int32
	Epsilon    int32
	Linger     int32
}

// EventInfoRow is the projection returned by GetEventInfo / GetEventInfoForReminder.
type EventInfoRow struct {
	UtcEventTimestamp            sql.NullTime
	UtcLeaseAcquisitionTimestamp sql.NullTime
	IsWithinEpsilon              bool
	LeaseValidityStatus          int32
	Linger                       int32
	UtcCurrentTimestamp          sql.NullTime
}

// SelectAfterClaimRow is the projection returned after a claim attempt to
// confirm which state the row landed in.
type SelectAfterClaimRow struct {
	UtcEventTimestamp            sql.NullTime
	UtcLeaseAcquisitionTimestamp sql.NullTime
	Linger                       int32
}
