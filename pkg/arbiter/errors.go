package arbiter

import "github.com/devlibx/gox-base/v2/errors"

var (
	errMissingTableName          = errors.New("lease-arbiter.table is required so multiple instances do not collide")
	errMissingConstantsTableName = errors.New("lease-arbiter.constants-table is required so multiple instances do not collide")
)
