package helixLeaseArbiter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-leasearbiter/pkg/arbiter"
	commonDatabase "github.com/devlibx/gox-leasearbiter/pkg/common/database"
	"github.com/devlibx/gox-leasearbiter/pkg/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/fx"

	_ "github.com/go-sql-driver/mysql"
)

// ArbiterFxTestSuite wires the arbiter through fx: a shared *sql.DB behind a
// ConnectionHolder, a MockCrossFunction standing in for wall-clock time, and
// the arbiter itself as an fx.Populate target.
type ArbiterFxTestSuite struct {
	suite.Suite
	mySqlConfig *MySqlConfig
}

func (s *ArbiterFxTestSuite) SetupSuite() {
	err := util.LoadDevEnv()
	s.Require().NoError(err, "Failed to load dev environment")

	s.mySqlConfig = &MySqlConfig{
		Database: os.Getenv("MYSQL_DB"),
		Host:     os.Getenv("MYSQL_HOST"),
		User:     os.Getenv("MYSQL_USER"),
		Password: os.Getenv("MYSQL_PASSWORD"),
	}
	if port := os.Getenv("MYSQL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			s.mySqlConfig.Port = p
		}
	}
}

type arbiterFxSetup struct {
	app              *fx.App
	mockCf           *util.MockCrossFunction
	connectionHolder commonDatabase.ConnectionHolder
	arbiterSvc       arbiter.Arbiter
}

func (s *ArbiterFxTestSuite) makeArbiterApp(table, constantsTable string) *arbiterFxSetup {
	ts := &arbiterFxSetup{mockCf: util.NewMockCrossFunction(time.Now())}

	ts.app = fx.New(
		fx.Supply(s.mySqlConfig),
		fx.Provide(func() gox.CrossFunction { return ts.mockCf }),
		fx.Provide(func(config *MySqlConfig) (*sql.DB, error) {
			config.SetupDefault()
			dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
				config.User, config.Password, config.Host, config.Port, config.Database)
			return sql.Open("mysql", dsn)
		}),
		fx.Provide(commonDatabase.NewConnectionHolder),
		fx.Provide(func(cf gox.CrossFunction, holder commonDatabase.ConnectionHolder) (arbiter.Arbiter, error) {
			return NewMySQLArbiterWithSqlDb(cf, holder.GetHelixMasterDbConnection(), arbiter.Config{
				Table:          table,
				ConstantsTable: constantsTable,
				EpsilonMillis:  3_000,
				LingerMillis:   300_000,
			})
		}),
		fx.Populate(&ts.connectionHolder, &ts.arbiterSvc),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(ts.app.Start(ctx), "failed to start fx app")
	return ts
}

func (s *ArbiterFxTestSuite) TestFirstClaimerObtainsLease() {
	table := "lease_arbiter_fx_" + uniqueSuffix()
	constants := "lease_arbiter_fx_constants_" + uniqueSuffix()
	ts := s.makeArbiterApp(table, constants)
	defer ts.app.Stop(context.Background())

	key := arbiter.ActionKey{FlowGroup: "g", FlowName: "f", JobName: "j", ActionType: arbiter.ActionLaunch}
	params := arbiter.LeaseParams{Key: key, EventTimeMillis: ts.mockCf.Now().UnixMilli()}

	status, err := ts.arbiterSvc.TryAcquireLease(context.Background(), params, false)
	s.Require().NoError(err)
	s.Require().NotNil(status.Obtained)

	ok, err := ts.arbiterSvc.RecordLeaseSuccess(context.Background(), *status.Obtained)
	s.Require().NoError(err)
	s.Require().True(ok)
}

func uniqueSuffix() string {
	return uuid.NewString()[:8]
}

func TestArbiterFxTestSuite(t *testing.T) {
	suite.Run(t, new(ArbiterFxTestSuite))
}
