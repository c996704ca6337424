// Package repository implements raw-SQL data access for the
// coordinator's tables.  This file defines sentinel error values that
// are shared across repositories.  Higher layers compare against
// them with errors.Is to distinguish failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrEventNotFound is returned when the referenced event does not
// exist in the catalog read model.
var ErrEventNotFound = errors.New("event not found")

// ErrCategoryNotFound is returned when the referenced ticket category
// does not exist or belongs to a different event.
var ErrCategoryNotFound = errors.New("ticket category not found")

// ErrEntryNotFound is returned when a user has no queue entry of the
// requested kind for an event.
var ErrEntryNotFound = errors.New("queue entry not found")

// ErrActiveEntryExists is returned when inserting a queue entry would
// violate the one-non-terminal-entry-per-user-and-event invariant.
var ErrActiveEntryExists = errors.New("active queue entry already exists")

// ErrCartNotFound is returned when the referenced cart does not exist.
var ErrCartNotFound = errors.New("cart not found")

// ErrItemNotFound is returned when the referenced cart item does not
// exist.
var ErrItemNotFound = errors.New("cart item not found")

// ErrBookingNotFound is returned when the referenced booking does not
// exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrLedgerUnderflow is returned when a release or sell would drive a
// category's held counter negative.  It indicates a coordinator bug,
// never a user error; callers must roll back the transaction.
var ErrLedgerUnderflow = errors.New("inventory ledger underflow")
