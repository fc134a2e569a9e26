package journal

import "errors"

var (
	// ErrInvalidTrade wraps every input validation failure. No state changes when it is returned.
	ErrInvalidTrade = errors.New("invalid trade")
	// ErrNotFound is returned when no trade has the requested id.
	ErrNotFound = errors.New("trade not found")
	// ErrPersist means the in-memory change happened but could not be written to storage.
	ErrPersist = errors.New("failed to persist trades")
	// ErrLoad means stored trades could not be read; the store starts empty.
	ErrLoad = errors.New("failed to load trades")
	// ErrUnreadableStorage is wrapped by ErrPersist while the store refuses to overwrite
	// stored trades it could neither read nor back up.
	ErrUnreadableStorage = errors.New("stored trades were not loaded, refusing to overwrite them")
)
