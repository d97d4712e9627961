package helixLeaseArbiter

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-leasearbiter/pkg/arbiter"
	helixArbiterMysql "github.com/devlibx/gox-leasearbiter/pkg/arbiter/mysql/database"
	"github.com/devlibx/gox-leasearbiter/pkg/common/lock"
	"github.com/google/uuid"
)

type service struct {
	gox.CrossFunction

	Querier helixArbiterMysql.Querier
	Queries *helixArbiterMysql.Queries

	config        arbiter.Config
	participantID string

	shutdown bool
}

// NewMySQLArbiterWithSqlDb wires the arbiter on top of an already-opened
// *sql.DB, for callers that manage their own connection pool (dependency
// injection), the same split the lock service offers via
// NewHelixLockMySQLServiceWithSqlDb.
func NewMySQLArbiterWithSqlDb(cf gox.CrossFunction, db *sql.DB, config arbiter.Config) (arbiter.Arbiter, error) {
	if err := config.SetupDefault(); err != nil {
		return nil, err
	}
	q1, q2, err := newArbiterDatasourceUsingSqlDb(context.Background(), db, config.Table, config.ConstantsTable)
	if err != nil {
		return nil, err
	}
	s := &service{
		CrossFunction: cf,
		Querier:       q1,
		Queries:       q2,
		config:        config,
		participantID: uuid.NewString(),
	}
	if err := s.bootstrap(context.Background()); err != nil {
		return nil, err
	}
	go s.runRetentionSweeper()
	return s, nil
}

// NewMySQLArbiter opens its own MySQL connection from config, mirroring
// NewHelixLockMySQLService.
func NewMySQLArbiter(cf gox.CrossFunction, mySqlConfig *MySqlConfig, config arbiter.Config) (arbiter.Arbiter, error) {
	if err := config.SetupDefault(); err != nil {
		return nil, err
	}
	db, q1, q2, err := newArbiterDatasource(mySqlConfig, config.Table, config.ConstantsTable)
	if err != nil {
		return nil, err
	}
	s := &service{
		CrossFunction: cf,
		Querier:       q1,
		Queries:       q2,
		config:        config,
		participantID: uuid.NewString(),
	}
	if err := s.bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	go s.runRetentionSweeper()
	return s, nil
}

func (s *service) bootstrap(ctx context.Context) error {
	if err := s.Querier.CreateLeaseTable(ctx); err != nil {
		return errors.Wrap(err, "failed to create lease arbiter table %s", s.config.Table)
	}
	if err := s.Querier.CreateConstantsTable(ctx); err != nil {
		return errors.Wrap(err, "failed to create constants table %s", s.config.ConstantsTable)
	}
	if err := s.Querier.UpsertConstants(ctx, int32(s.config.EpsilonMillis), int32(s.config.LingerMillis)); err != nil {
		return errors.Wrap(err, "failed to upsert (epsilon, linger) constants into %s", s.config.ConstantsTable)
	}
	slog.Info("lease arbiter initialized", slog.String("table", s.config.Table), slog.String("participant", s.participantID))
	return nil
}

func (s *service) runRetentionSweeper() {
	for {
		if s.shutdown {
			slog.Warn("lease arbiter retention sweeper shutting down", slog.String("table", s.config.Table))
			return
		}
		s.Sleep(s.config.SweepInterval)
		if s.shutdown {
			return
		}
		if !s.acquireSweepTurn(context.Background()) {
			continue
		}
		result, err := s.Queries.DeleteExpired(context.Background(), s.config.RetentionMillis)
		if err != nil {
			slog.Warn("lease arbiter retention sweep failed", slog.String("table", s.config.Table), slog.String("error", err.Error()))
		} else if n, err := result.RowsAffected(); err == nil && n > 0 {
			slog.Info("lease arbiter retention sweep deleted rows", slog.String("table", s.config.Table), slog.Int64("rows", n))
		}
		s.releaseSweepTurn(context.Background())
	}
}

// acquireSweepTurn reports whether this participant may run the sweep this
// round. With no SweepLock configured every participant sweeps independently,
// which is safe since DeleteExpired is idempotent.
func (s *service) acquireSweepTurn(ctx context.Context) bool {
	if s.config.SweepLock == nil {
		return true
	}
	resp, err := s.config.SweepLock.Acquire(ctx, &lock.AcquireRequest{
		LockKey: "lease-arbiter-sweep:" + s.config.Table,
		OwnerID: s.participantID,
		TTL:     s.config.SweepInterval,
	})
	if err != nil {
		slog.Warn("lease arbiter sweep lock acquire failed, sweeping without it", slog.String("table", s.config.Table), slog.String("error", err.Error()))
		return true
	}
	return resp.Acquired
}

func (s *service) releaseSweepTurn(ctx context.Context) {
	if s.config.SweepLock == nil {
		return
	}
	if _, err := s.config.SweepLock.Release(ctx, &lock.ReleaseRequest{
		LockKey: "lease-arbiter-sweep:" + s.config.Table,
		OwnerID: s.participantID,
	}); err != nil {
		slog.Warn("lease arbiter sweep lock release failed", slog.String("table", s.config.Table), slog.String("error", err.Error()))
	}
}

func actionKeyParams(key arbiter.ActionKey) helixArbiterMysql.ActionKeyParams {
	return helixArbiterMysql.ActionKeyParams{
		FlowGroup: key.FlowGroup,
		FlowName:  key.FlowName,
		JobName:   key.JobName,
		DagAction: string(key.ActionType),
	}
}

func logFields(params arbiter.LeaseParams) []any {
	return []any{
		slog.String("flowGroup", params.Key.FlowGroup),
		slog.String("flowName", params.Key.FlowName),
		slog.String("jobName", params.Key.JobName),
		slog.String("actionType", string(params.Key.ActionType)),
		slog.Int64("eventTimeMillis", params.EventTimeMillis),
		slog.Bool("isReminder", params.IsReminder),
	}
}

func (s *service) TryAcquireLease(ctx context.Context, params arbiter.LeaseParams, adoptConsensusFlowExecutionID bool) (arbiter.LeaseAttemptStatus, error) {
	slog.Debug("multi-active arbitration starting", logFields(params)...)
	status, err := s.doTryAcquireLease(ctx, params, adoptConsensusFlowExecutionID)
	if err != nil {
		return arbiter.LeaseAttemptStatus{}, err
	}
	// Prefer logging the consensus params over the caller-supplied ones once available.
	logged := params
	switch {
	case status.Obtained != nil:
		logged = status.Obtained.ConsensusParams
	case status.LeasedToAnother != nil:
		logged = status.LeasedToAnother.ConsensusParams
	}
	slog.Info("multi-active lease status resolved", append(logFields(logged), slog.String("result", statusKind(status)))...)
	return status, nil
}

func statusKind(s arbiter.LeaseAttemptStatus) string {
	switch {
	case s.Obtained != nil:
		return "Obtained"
	case s.LeasedToAnother != nil:
		return "LeasedToAnother"
	default:
		return "NoLongerLeasing"
	}
}

func (s *service) doTryAcquireLease(ctx context.Context, params arbiter.LeaseParams, adoptConsensusID bool) (arbiter.LeaseAttemptStatus, error) {
	key := actionKeyParams(params.Key)

	row, err := s.getExistingEventInfo(ctx, params)
	if err != nil {
		return arbiter.LeaseAttemptStatus{}, err
	}

	if row == nil {
		slog.Debug("CASE 1: no row yet, creating", logFields(params)...)
		n, err := s.attemptLeaseIfNewRow(ctx, key)
		if err != nil {
			return arbiter.LeaseAttemptStatus{}, err
		}
		return s.evaluateStatusAfterAttempt(ctx, key, params, n, 0, false, adoptConsensusID)
	}

	status, claim, violation := classifyExistingRow(params, *row, adoptConsensusID)
	if violation != "" {
		slog.Warn(violation, logFields(params)...)
	}
	if status != nil {
		return *status, nil
	}

	var (
		n   int64
		err2 error
	)
	switch claim.kind {
	case claimUpdateIfMatchAll:
		res, e := s.Queries.UpdateIfMatchAll(ctx, key, claim.expectedEventMillis, claim.expectedLeaseMillis)
		n, err2 = rowsAffectedOrZero(res, e)
	case claimUpdateIfFinished:
		res, e := s.Queries.UpdateIfFinished(ctx, key, claim.expectedEventMillis)
		n, err2 = rowsAffectedOrZero(res, e)
	}
	if err2 != nil {
		return arbiter.LeaseAttemptStatus{}, errors.Wrap(err2, "failed to execute claim statement for %v", params.Key)
	}
	return s.evaluateStatusAfterAttempt(ctx, key, params, n, claim.dbCurrentMillis, claim.hasDbCurrent, adoptConsensusID)
}

func rowsAffectedOrZero(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *service) getExistingEventInfo(ctx context.Context, params arbiter.LeaseParams) (*eventInfoResult, error) {
	key := actionKeyParams(params.Key)
	var (
		row helixArbiterMysql.EventInfoRow
		err error
	)
	if params.IsReminder {
		row, err = s.Queries.GetEventInfoForReminder(ctx, key, params.EventTimeMillis)
	} else {
		row, err = s.Queries.GetEventInfo(ctx, key)
	}
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to query lease arbiter info for %v", params.Key)
	}
	info, err := newEventInfoResult(row)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// attemptLeaseIfNewRow issues INSERT-IF-ABSENT with bounded exponential
// backoff on transient errors; duplicate-key violations are
// absorbed into "0 rows affected" for the decision layer to rediscover.
func (s *service) attemptLeaseIfNewRow(ctx context.Context, key helixArbiterMysql.ActionKeyParams) (int64, error) {
	policy := newInsertRetryPolicy()
	for {
		res, err := s.Queries.InsertIfAbsent(ctx, key)
		if err == nil {
			return res.RowsAffected()
		}
		if isDuplicateKey(err) {
			return 0, nil
		}
		if isTransient(err) && policy.awaitNext(s.Sleep) {
			continue
		}
		return 0, errors.Wrap(err, "failed to insert-if-absent for %+v", key)
	}
}

// evaluateStatusAfterAttempt re-selects the row after any claim attempt and
// hands the fresh state to the decision layer — rowsAffected alone is never
// trustworthy since a concurrent claim can race it.
func (s *service) evaluateStatusAfterAttempt(ctx context.Context, key helixArbiterMysql.ActionKeyParams,
	params arbiter.LeaseParams, rowsAffected int64, dbCurrentMillis int64, hasDbCurrent bool, adoptConsensusID bool) (arbiter.LeaseAttemptStatus, error) {

	row, err := s.Queries.SelectAfterClaim(ctx, key)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return arbiter.LeaseAttemptStatus{}, errors.Wrap(errRowDisappeared, "for %v", params.Key)
		}
		return arbiter.LeaseAttemptStatus{}, errors.Wrap(err, "failed to re-select after claim attempt for %v", params.Key)
	}
	sel, err := newSelectInfoResult(row)
	if err != nil {
		return arbiter.LeaseAttemptStatus{}, errors.Wrap(err, "for %v", params.Key)
	}
	return evaluateClaimOutcome(rowsAffected, params, sel, dbCurrentMillis, hasDbCurrent, adoptConsensusID), nil
}

func (s *service) RecordLeaseSuccess(ctx context.Context, status arbiter.Obtained) (bool, error) {
	key := actionKeyParams(status.ConsensusParams.Key)
	res, err := s.Queries.CompleteLease(ctx, key, status.ConsensusParams.EventTimeMillis, status.LeaseAcquisitionMillis)
	if err != nil {
		return false, errors.Wrap(err, "failed to complete lease for %v", status.ConsensusParams.Key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected completing lease for %v", status.ConsensusParams.Key)
	}
	switch {
	case n == 0:
		slog.Info("lease completion failed - already expired or cleaned up", logFields(status.ConsensusParams)...)
		return false, nil
	case n == 1:
		slog.Info("lease completed - no longer leasing this event", logFields(status.ConsensusParams)...)
		return true, nil
	default:
		return false, errors.Wrap(errCompletionTooManyRows, "for %v", status.ConsensusParams.Key)
	}
}

func (s *service) ExistsSimilarLeaseWithinConsolidationPeriod(ctx context.Context, params arbiter.LeaseParams) (bool, error) {
	info, err := s.getExistingEventInfo(ctx, params)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return info.isWithinEpsilon, nil
}
