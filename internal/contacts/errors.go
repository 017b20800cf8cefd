package contacts

import "errors"

var (
	// ErrMissingFields is returned when name or email is empty
	ErrMissingFields = errors.New("name and email are required")

	// ErrDuplicateEmail is returned when a contact already exists for the email
	ErrDuplicateEmail = errors.New("contact already exists")

	// ErrContactNotFound is returned when a contact is not found
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvalidStatus is returned for an unknown pipeline status
	ErrInvalidStatus = errors.New("invalid contact status")
)
