package database

import "errors"

var (
	// ErrStoreUnavailable indicates the catalog file could not be opened or created.
	ErrStoreUnavailable = errors.New("database: store unavailable")
	// ErrStoreClosed indicates an operation on a closed catalog.
	ErrStoreClosed = errors.New("database: store closed")
)
