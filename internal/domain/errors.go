package domain

import "errors"

// Error kinds. Every domain error matches exactly one of them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrState      = errors.New("state error")
)

// Error is a locally detected failure scoped to a single operation.
type Error struct {
	Kind error
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrEmptyCart            = newError(ErrValidation, "empty_cart", "no order items provided")
	ErrInvalidQuantity      = newError(ErrValidation, "invalid_quantity", "quantity must be at least 1")
	ErrMissingBuyer         = newError(ErrValidation, "missing_buyer", "buyer is required")
	ErrMissingAddress       = newError(ErrValidation, "missing_address", "shipping address is incomplete")
	ErrMissingPayment       = newError(ErrValidation, "missing_payment_method", "payment method is required")
	ErrInvalidRating        = newError(ErrValidation, "invalid_rating", "rating must be between 1 and 5")
	ErrEmptyComment         = newError(ErrValidation, "empty_comment", "comment is required")
	ErrInvalidProduct       = newError(ErrValidation, "invalid_product", "invalid product")
	ErrProductNotFound      = newError(ErrNotFound, "product_not_found", "product not found")
	ErrOrderNotFound        = newError(ErrNotFound, "order_not_found", "order not found")
	ErrCartItemNotFound     = newError(ErrNotFound, "cart_item_not_found", "item not in cart")
	ErrInsufficientStock    = newError(ErrConflict, "insufficient_stock", "insufficient stock")
	ErrDuplicateReview      = newError(ErrConflict, "duplicate_review", "product already reviewed by this user")
	ErrConcurrentUpdate     = newError(ErrConflict, "concurrent_update", "resource was modified concurrently")
	ErrInvalidStatus        = newError(ErrState, "invalid_status", "invalid order status")
	ErrTransitionNotAllowed = newError(ErrState, "transition_not_allowed", "order status transition not allowed")
)

// CodeOf returns the code of the first domain error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
