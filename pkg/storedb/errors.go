package storedb

import "errors"

var (
	ErrCreateDir    = errors.New("storedb: create directory")
	ErrOpen         = errors.New("storedb: open database")
	ErrMigrate      = errors.New("storedb: apply migration")
	ErrMigrationSeq = errors.New("storedb: migrations must have increasing versions")
)
