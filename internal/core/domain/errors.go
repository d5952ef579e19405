package domain

import "errors"

var (
	// ErrTransport covers RPC and network failures talking to the chain.
	ErrTransport = errors.New("transport error")

	// ErrNotFound is returned when a requested block has not been mined yet.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is a checkpoint read or write failure.
	ErrPersistence = errors.New("persistence error")

	// ErrStore is a ledger failure. A uniqueness conflict is not an error.
	ErrStore = errors.New("store error")

	// ErrNotification is a failed best-effort notification.
	ErrNotification = errors.New("notification error")
)
