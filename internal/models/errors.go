package models

import "errors"

// Request-level errors. Rejected synchronously, never retried.
var (
	ErrStoreNotFound      = errors.New("store not found or inactive")
	ErrOrderNotFound      = errors.New("order not found")
	ErrVendorNotFound     = errors.New("vendor not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrTrackingNotFound   = errors.New("tracking record not found")
	ErrVendorNotApproved  = errors.New("vendor is not approved")
	ErrOverAllocation     = errors.New("assigned quantities exceed item quantity")
	ErrItemNotInOrder     = errors.New("item does not belong to order")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrForbidden          = errors.New("actor not authorized for this assignment")
)
