package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func pendingOrder() *Order {
	return &Order{Status: OrderStatusPending, CreatedAt: t0, UpdatedAt: t0}
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"Pending", "Processing", "Shipped", "Delivered", "Cancelled"} {
		st, err := ParseOrderStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}

	_, err := ParseOrderStatus("Lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, err, ErrState)

	_, err = ParseOrderStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLoose_ConfirmPayment_MovesPendingToProcessing(t *testing.T) {
	o := pendingOrder()
	result := PaymentResult{ID: "PAY-1", Status: "COMPLETED"}

	require.NoError(t, LooseLifecycle{}.ConfirmPayment(o, result, t1))

	assert.True(t, o.IsPaid)
	assert.Equal(t, t1, *o.PaidAt)
	assert.Equal(t, "PAY-1", o.PaymentResult.ID)
	assert.Equal(t, OrderStatusProcessing, o.Status)
}

func TestLoose_ConfirmPayment_KeepsNonPendingStatus(t *testing.T) {
	for _, st := range []OrderStatus{OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		o := pendingOrder()
		o.Status = st

		require.NoError(t, LooseLifecycle{}.ConfirmPayment(o, PaymentResult{}, t1))

		assert.True(t, o.IsPaid)
		assert.Equal(t, st, o.Status, "payment must not move %s", st)
	}
}

func TestLoose_ConfirmPayment_RestampsPaidAt(t *testing.T) {
	o := pendingOrder()
	l := LooseLifecycle{}
	require.NoError(t, l.ConfirmPayment(o, PaymentResult{ID: "a"}, t0))
	t2 := t1.Add(time.Minute)
	require.NoError(t, l.ConfirmPayment(o, PaymentResult{ID: "b"}, t2))

	assert.Equal(t, t2, *o.PaidAt)
	assert.Equal(t, "b", o.PaymentResult.ID)
}

func TestLoose_ConfirmDelivery_IgnoresPayment(t *testing.T) {
	o := pendingOrder()

	require.NoError(t, LooseLifecycle{}.ConfirmDelivery(o, t1))

	assert.True(t, o.IsDelivered)
	assert.False(t, o.IsPaid)
	assert.Equal(t, t1, *o.DeliveredAt)
	assert.Equal(t, OrderStatusDelivered, o.Status)
}

func TestLoose_SetStatus_LeavesFlagsAlone(t *testing.T) {
	o := pendingOrder()
	l := LooseLifecycle{}

	require.NoError(t, l.SetStatus(o, OrderStatusDelivered, t1))
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.False(t, o.IsDelivered)

	require.NoError(t, l.SetStatus(o, OrderStatusPending, t1))
	assert.Equal(t, OrderStatusPending, o.Status)

	err := l.SetStatus(o, OrderStatus("Bogus"), t1)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, OrderStatusPending, o.Status)
}

func TestDerived_PaymentThenDelivery(t *testing.T) {
	o := pendingOrder()
	l := DerivedLifecycle{}

	require.NoError(t, l.ConfirmPayment(o, PaymentResult{}, t1))
	assert.Equal(t, OrderStatusProcessing, o.Status)

	require.NoError(t, l.SetStatus(o, OrderStatusShipped, t1))
	assert.Equal(t, OrderStatusShipped, o.Status)

	require.NoError(t, l.ConfirmDelivery(o, t1))
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.True(t, o.IsDelivered)
}

func TestDerived_RejectsContradictions(t *testing.T) {
	l := DerivedLifecycle{}

	cancelled := pendingOrder()
	require.NoError(t, l.SetStatus(cancelled, OrderStatusCancelled, t1))
	assert.ErrorIs(t, l.ConfirmPayment(cancelled, PaymentResult{}, t1), ErrTransitionNotAllowed)
	assert.ErrorIs(t, l.ConfirmDelivery(cancelled, t1), ErrTransitionNotAllowed)
	assert.ErrorIs(t, l.SetStatus(cancelled, OrderStatusPending, t1), ErrTransitionNotAllowed)
	assert.False(t, cancelled.IsPaid)

	unpaid := pendingOrder()
	assert.ErrorIs(t, l.SetStatus(unpaid, OrderStatusShipped, t1), ErrTransitionNotAllowed)
	assert.ErrorIs(t, l.SetStatus(unpaid, OrderStatusProcessing, t1), ErrTransitionNotAllowed)

	delivered := pendingOrder()
	require.NoError(t, l.ConfirmDelivery(delivered, t1))
	assert.ErrorIs(t, l.SetStatus(delivered, OrderStatusCancelled, t1), ErrTransitionNotAllowed)
	assert.ErrorIs(t, l.SetStatus(delivered, OrderStatusPending, t1), ErrTransitionNotAllowed)
	assert.ErrorIs(t, ErrTransitionNotAllowed, ErrState)
}

func TestDerived_ManualDeliveredStampsDelivery(t *testing.T) {
	o := pendingOrder()

	require.NoError(t, DerivedLifecycle{}.SetStatus(o, OrderStatusDelivered, t1))

	assert.True(t, o.IsDelivered)
	assert.Equal(t, t1, *o.DeliveredAt)
}

func TestDerived_NeverContradictory(t *testing.T) {
	l := DerivedLifecycle{}
	statuses := []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
	ops := []func(*Order) error{
		func(o *Order) error { return l.ConfirmPayment(o, PaymentResult{}, t1) },
		func(o *Order) error { return l.ConfirmDelivery(o, t1) },
	}
	for _, st := range statuses {
		st := st
		ops = append(ops, func(o *Order) error { return l.SetStatus(o, st, t1) })
	}

	// walk every sequence of three operations
	for _, a := range ops {
		for _, b := range ops {
			for _, c := range ops {
				o := pendingOrder()
				for _, op := range []func(*Order) error{a, b, c} {
					_ = op(o)
					assert.Equal(t, Derive(o), o.Status)
					if o.IsDelivered {
						assert.Equal(t, OrderStatusDelivered, o.Status)
					}
					if o.Status == OrderStatusShipped {
						assert.True(t, o.IsPaid)
					}
				}
			}
		}
	}
}

func TestNewOrderLifecycle(t *testing.T) {
	l, err := NewOrderLifecycle("")
	require.NoError(t, err)
	assert.IsType(t, LooseLifecycle{}, l)

	l, err = NewOrderLifecycle("derived")
	require.NoError(t, err)
	assert.IsType(t, DerivedLifecycle{}, l)

	_, err = NewOrderLifecycle("strict")
	assert.Error(t, err)
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := pendingOrder()
	o.Items = []OrderItem{{ProductID: "p1", Qty: 1}}
	paid := t1
	o.PaidAt = &paid

	c := o.Clone()
	c.Items[0].Qty = 5
	*c.PaidAt = t0

	assert.Equal(t, 1, o.Items[0].Qty)
	assert.Equal(t, t1, *o.PaidAt)
}
