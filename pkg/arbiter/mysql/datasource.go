package helixLeaseArbiter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devlibx/gox-base/v2/errors"
	helixArbiterMysql "github.com/devlibx/gox-leasearbiter/pkg/arbiter/mysql/database"
	_ "github.com/go-sql-driver/mysql"
)

func newArbiterDatasourceUsingSqlDb(ctx context.Context, db *sql.DB, leaseTable, constantsTable string) (helixArbiterMysql.Querier, *helixArbiterMysql.Queries, error) {
	q, err := helixArbiterMysql.Prepare(ctx, db, leaseTable, constantsTable)
	return q, q, err
}

func newArbiterDatasource(config *MySqlConfig, leaseTable, constantsTable string) (*sql.DB, helixArbiterMysql.Querier, *helixArbiterMysql.Queries, error) {
	config.SetupDefault()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC", config.User, config.Password, config.Host, config.Port, config.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "error in connecting to database - failed to call sql.Open: database=[%s]", config.Database)
	}

	db.SetMaxOpenConns(config.MaxOpenConnection)
	db.SetMaxIdleConns(config.MaxIdleConnection)
	db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetimeInSec) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleTimeInSec) * time.Second)

	q, qq, err := newArbiterDatasourceUsingSqlDb(context.Background(), db, leaseTable, constantsTable)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, q, qq, nil
}
