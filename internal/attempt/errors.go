package attempt

import "errors"

var (
	// ErrNoItemsAvailable means the catalog had nothing to assign; no
	// attempt is created.
	ErrNoItemsAvailable = errors.New("no items available")

	// ErrAttemptNotFound means no attempt exists for the user/instrument.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrDuplicateAttempt is returned by stores when an insert hits the
	// (user_id, instrument_id) uniqueness constraint. Callers retry as a
	// load; it never reaches the HTTP surface.
	ErrDuplicateAttempt = errors.New("attempt already exists")

	// ErrAttemptCompleted rejects mutations of a completed attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")

	// ErrItemNotInAttempt rejects answers for items outside the attempt's
	// fixed item order.
	ErrItemNotInAttempt = errors.New("item not part of this attempt")

	// ErrInvalidValue rejects answer payloads that fail the item's
	// type/shape validation.
	ErrInvalidValue = errors.New("invalid item value")

	// ErrItemLookupFailed signals catalog/attempt desync: an assigned item
	// id no longer resolves. Surfaced as an internal error.
	ErrItemLookupFailed = errors.New("item lookup failed")
)
