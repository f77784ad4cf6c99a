package domain

import (
	"fmt"
	"time"
)

// Lifecycle applies the order mutations that follow placement.
type Lifecycle interface {
	ConfirmPayment(o *Order, result PaymentResult, at time.Time) error
	ConfirmDelivery(o *Order, at time.Time) error
	SetStatus(o *Order, status OrderStatus, at time.Time) error
}

// NewOrderLifecycle returns the policy registered under name: "loose" (default) or "derived".
func NewOrderLifecycle(name string) (Lifecycle, error) {
	switch name {
	case "", "loose":
		return LooseLifecycle{}, nil
	case "derived":
		return DerivedLifecycle{}, nil
	}
	return nil, fmt.Errorf("unknown order status policy %q", name)
}

// LooseLifecycle keeps status and the isPaid/isDelivered flags independent. Manual status
// changes can contradict the flags.
type LooseLifecycle struct{}

// ConfirmPayment is not idempotent: repeated calls re-stamp PaidAt.
func (LooseLifecycle) ConfirmPayment(o *Order, result PaymentResult, at time.Time) error {
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &result
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
	o.UpdatedAt = at
	return nil
}

func (LooseLifecycle) ConfirmDelivery(o *Order, at time.Time) error {
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.Status = OrderStatusDelivered
	o.UpdatedAt = at
	return nil
}

func (LooseLifecycle) SetStatus(o *Order, status OrderStatus, at time.Time) error {
	if _, err := ParseOrderStatus(string(status)); err != nil {
		return err
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

// DerivedLifecycle computes status from the flags, with Cancelled as an explicit override.
// Shipped is the only label an admin may set that the flags cannot express on their own.
type DerivedLifecycle struct{}

// Derive returns the status implied by the payment and delivery flags.
func Derive(o *Order) OrderStatus {
	switch {
	case o.Status == OrderStatusCancelled:
		return OrderStatusCancelled
	case o.IsDelivered:
		return OrderStatusDelivered
	case o.Status == OrderStatusShipped && o.IsPaid:
		return OrderStatusShipped
	case o.IsPaid:
		return OrderStatusProcessing
	default:
		return OrderStatusPending
	}
}

func (DerivedLifecycle) ConfirmPayment(o *Order, result PaymentResult, at time.Time) error {
	if o.Status == OrderStatusCancelled {
		return fmt.Errorf("%w: cannot pay a cancelled order", ErrTransitionNotAllowed)
	}
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &result
	o.Status = Derive(o)
	o.UpdatedAt = at
	return nil
}

func (DerivedLifecycle) ConfirmDelivery(o *Order, at time.Time) error {
	if o.Status == OrderStatusCancelled {
		return fmt.Errorf("%w: cannot deliver a cancelled order", ErrTransitionNotAllowed)
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.Status = Derive(o)
	o.UpdatedAt = at
	return nil
}

func (l DerivedLifecycle) SetStatus(o *Order, status OrderStatus, at time.Time) error {
	if _, err := ParseOrderStatus(string(status)); err != nil {
		return err
	}

	switch status {
	case OrderStatusCancelled:
		if o.IsDelivered {
			return fmt.Errorf("%w: cannot cancel a delivered order", ErrTransitionNotAllowed)
		}
		o.Status = OrderStatusCancelled
	case OrderStatusDelivered:
		return l.ConfirmDelivery(o, at)
	case OrderStatusShipped:
		if o.Status == OrderStatusCancelled || !o.IsPaid || o.IsDelivered {
			return fmt.Errorf("%w: only paid, undelivered orders can be shipped", ErrTransitionNotAllowed)
		}
		o.Status = OrderStatusShipped
	default:
		if o.Status == OrderStatusCancelled {
			return fmt.Errorf("%w: cancelled orders cannot be reopened", ErrTransitionNotAllowed)
		}
		probe := *o
		probe.Status = status
		if Derive(&probe) != status {
			return fmt.Errorf("%w: status %s contradicts payment and delivery state", ErrTransitionNotAllowed, status)
		}
		o.Status = status
	}
	o.UpdatedAt = at
	return nil
}
