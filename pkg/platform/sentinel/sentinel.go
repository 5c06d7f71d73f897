package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and file stores return
// these (optionally wrapped) so the audit service can translate them into
// domain errors.
//
//   - ErrNotFound: record does not exist in the gateway
//   - ErrConflict: a unique key (the COID) is already taken
//   - ErrLocked: another import holds the lock for the same identifier
//   - ErrUnavailable: backend temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
