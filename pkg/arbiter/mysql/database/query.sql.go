package helixArbiterMysql

import (
	"context"
	"database/sql"
	"time"
)

// Notes on time handling:
//   - event_timestamp's default is set explicitly on every write so MySQL's
//     implicit ON UPDATE CURRENT_TIMESTAMP never bumps it on its own.
//   - MySQL stores/returns TIMESTAMP columns converted through the session
//     time zone; every statement below explicitly CONVERT_TZs so that the
//     only wall clock either side of the wire ever observes is UTC.
//   - Columns are TIMESTAMP(3) for millisecond precision, matching the
//     millisecond granularity the arbiter promises callers.
const createLeaseArbiterTableStatement = `CREATE TABLE IF NOT EXISTS %s (
	flow_group varchar(256) NOT NULL,
	flow_name varchar(256) NOT NULL,
	job_name varchar(256) NOT NULL,
	dag_action varchar(100) NOT NULL,
	event_timestamp TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	lease_acquisition_timestamp TIMESTAMP(3) NULL,
	PRIMARY KEY (flow_group, flow_name, job_name, dag_action)
)`

const createConstantsTableStatement = `CREATE TABLE IF NOT EXISTS %s (
	primary_key INT,
	epsilon INT,
	linger INT,
	PRIMARY KEY (primary_key)
)`

const upsertConstantsTableStatement = `INSERT INTO %s (primary_key, epsilon, linger) VALUES (1, ?, ?)
	ON DUPLICATE KEY UPDATE epsilon = VALUES(epsilon), linger = VALUES(linger)`

const whereClauseMatchKey = `WHERE flow_group = ? AND flow_name = ? AND job_name = ? AND dag_action = ?`

const whereClauseMatchRow = whereClauseMatchKey +
	` AND event_timestamp = CONVERT_TZ(?, '+00:00', @@session.time_zone)` +
	` AND lease_acquisition_timestamp = CONVERT_TZ(?, '+00:00', @@session.time_zone)`

const getEventInfoStatement = `SELECT
	CONVERT_TZ(event_timestamp, @@session.time_zone, '+00:00') as utc_event_timestamp,
	CONVERT_TZ(lease_acquisition_timestamp, @@session.time_zone, '+00:00') as utc_lease_acquisition_timestamp,
	ABS(TIMESTAMPDIFF(MICROSECOND, event_timestamp, CURRENT_TIMESTAMP(3))) / 1000 <= epsilon as is_within_epsilon,
	CASE
		WHEN lease_acquisition_timestamp IS NULL THEN 3
		WHEN CURRENT_TIMESTAMP(3) < DATE_ADD(lease_acquisition_timestamp, INTERVAL linger * 1000 MICROSECOND) THEN 1
		ELSE 2
	END as lease_validity_status,
	linger,
	CONVERT_TZ(CURRENT_TIMESTAMP(3), @@session.time_zone, '+00:00') as utc_current_timestamp
	FROM %s, %s ` + whereClauseMatchKey

const getEventInfoStatementForReminder = `SELECT
	CONVERT_TZ(event_timestamp, @@session.time_zone, '+00:00') as utc_event_timestamp,
	CONVERT_TZ(lease_acquisition_timestamp, @@session.time_zone, '+00:00') as utc_lease_acquisition_timestamp,
	TIMESTAMPDIFF(MICROSECOND, event_timestamp, CONVERT_TZ(?, '+00:00', @@session.time_zone)) / 1000 <= epsilon as is_within_epsilon,
	CASE
		WHEN lease_acquisition_timestamp IS NULL THEN 3
		WHEN CURRENT_TIMESTAMP(3) < DATE_ADD(lease_acquisition_timestamp, INTERVAL linger * 1000 MICROSECOND) THEN 1
		ELSE 2
	END as lease_validity_status,
	linger,
	CONVERT_TZ(CURRENT_TIMESTAMP(3), @@session.time_zone, '+00:00') as utc_current_timestamp
	FROM %s, %s ` + whereClauseMatchKey

const acquireLeaseIfNewRowStatement = `INSERT INTO %s
	(flow_group, flow_name, job_name, dag_action, event_timestamp, lease_acquisition_timestamp)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP(3), CURRENT_TIMESTAMP(3))`

const acquireLeaseIfMatchingAllColsStatement = `UPDATE %s
	SET event_timestamp = CURRENT_TIMESTAMP(3), lease_acquisition_timestamp = CURRENT_TIMESTAMP(3) ` +
	whereClauseMatchRow

const acquireLeaseIfFinishedLeasingStatement = `UPDATE %s
	SET event_timestamp = CURRENT_TIMESTAMP(3), lease_acquisition_timestamp = CURRENT_TIMESTAMP(3) ` +
	whereClauseMatchKey +
	` AND event_timestamp = CONVERT_TZ(?, '+00:00', @@session.time_zone)` +
	` AND lease_acquisition_timestamp IS NULL`

const selectAfterClaimStatement = `SELECT
	CONVERT_TZ(event_timestamp, @@session.time_zone, '+00:00') as utc_event_timestamp,
	CONVERT_TZ(lease_acquisition_timestamp, @@session.time_zone, '+00:00') as utc_lease_acquisition_timestamp,
	linger
	FROM %s, %s ` + whereClauseMatchKey

const completeLeaseStatement = `UPDATE %s
	SET event_timestamp = event_timestamp, lease_acquisition_timestamp = NULL ` +
	whereClauseMatchRow

// Deletes rows older than the retention period regardless of lease status;
// retention is assumed >> linger so any such row is finished or long-expired.
const deleteExpiredRowsStatement = `DELETE FROM %s WHERE event_timestamp < DATE_SUB(CURRENT_TIMESTAMP(3), INTERVAL ? MICROSECOND)`

func millisToUTCTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (q *Queries) CreateLeaseTable(ctx context.Context) error {
	_, err := q.createLeaseTableStmt.ExecContext(ctx)
	return err
}

func (q *Queries) CreateConstantsTable(ctx context.Context) error {
	_, err := q.createConstantsTableStmt.ExecContext(ctx)
	return err
}

func (q *Queries) UpsertConstants(ctx context.Context, epsilonMillis, lingerMillis int32) error {
	_, err := q.upsertConstantsStmt.ExecContext(ctx, epsilonMillis, lingerMillis)
	return err
}

func (q *Queries) GetEventInfo(ctx context.Context, key ActionKeyParams) (EventInfoRow, error) {
	row := q.getEventInfoStmt.QueryRowContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction)
	return scanEventInfoRow(row)
}

func (q *Queries) GetEventInfoForReminder(ctx context.Context, key ActionKeyParams, reminderEventTimeMillis int64) (EventInfoRow, error) {
	row := q.getEventInfoForReminderStmt.QueryRowContext(ctx,
		millisToUTCTime(reminderEventTimeMillis), key.FlowGroup, key.FlowName, key.JobName, key.DagAction)
	return scanEventInfoRow(row)
}

func scanEventInfoRow(row *sql.Row) (EventInfoRow, error) {
	var r EventInfoRow
	err := row.Scan(&r.UtcEventTimestamp, &r.UtcLeaseAcquisitionTimestamp, &r.IsWithinEpsilon,
		&r.LeaseValidityStatus, &r.Linger, &r.UtcCurrentTimestamp)
	return r, err
}

func (q *Queries) InsertIfAbsent(ctx context.Context, key ActionKeyParams) (sql.Result, error) {
	return q.insertIfAbsentStmt.ExecContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction)
}

func (q *Queries) UpdateIfMatchAll(ctx context.Context, key ActionKeyParams, expectedEventMillis, expectedLeaseMillis int64) (sql.Result, error) {
	return q.updateIfMatchAllStmt.ExecContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction,
		millisToUTCTime(expectedEventMillis), millisToUTCTime(expectedLeaseMillis))
}

func (q *Queries) UpdateIfFinished(ctx context.Context, key ActionKeyParams, expectedEventMillis int64) (sql.Result, error) {
	return q.updateIfFinishedStmt.ExecContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction,
		millisToUTCTime(expectedEventMillis))
}

func (q *Queries) SelectAfterClaim(ctx context.Context, key ActionKeyParams) (SelectAfterClaimRow, error) {
	row := q.selectAfterClaimStmt.QueryRowContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction)
	var r SelectAfterClaimRow
	err := row.Scan(&r.UtcEventTimestamp, &r.UtcLeaseAcquisitionTimestamp, &r.Linger)
	return r, err
}

func (q *Queries) CompleteLease(ctx context.Context, key ActionKeyParams, eventTimestampMillis, leaseAcquisitionTimestampMillis int64) (sql.Result, error) {
	return q.completeLeaseStmt.ExecContext(ctx, key.FlowGroup, key.FlowName, key.JobName, key.DagAction,
		millisToUTCTime(eventTimestampMillis), millisToUTCTime(leaseAcquisitionTimestampMillis))
}

func (q *Queries) DeleteExpired(ctx context.Context, retentionMillis int64) (sql.Result, error) {
	return q.deleteExpiredStmt.ExecContext(ctx, retentionMillis*1000)
}
