package diagstore

import "errors"

var (
	ErrInsert = errors.New("diagstore: insert event")
	ErrQuery  = errors.New("diagstore: query events")
)
