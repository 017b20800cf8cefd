package subscriptions

import "errors"

var (
	ErrNotFound       = errors.New("subscription type not found")
	ErrDuplicateName  = errors.New("subscription type name already exists")
	ErrAlreadyDeleted = errors.New("subscription type already deleted")
	ErrNoMatchingType = errors.New("no subscription type covers this volume")
	ErrInvalidType    = errors.New("invalid subscription type")
)
