package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/domain"
)

func order(created time.Time, total float64, paid, delivered bool, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		CreatedAt:   created,
		TotalPrice:  total,
		IsPaid:      paid,
		IsDelivered: delivered,
		Status:      status,
	}
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)

	assert.Equal(t, 0, stats.TotalOrders)
	assert.Equal(t, 0.0, stats.TotalRevenue)
	assert.NotNil(t, stats.RevenueByMonth)
	assert.Empty(t, stats.RevenueByMonth)
}

func TestSummarize_CountsAndPaidRevenue(t *testing.T) {
	march := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	orders := []*domain.Order{
		order(march, 103.49, true, true, domain.OrderStatusDelivered),
		order(march, 50.10, true, false, domain.OrderStatusProcessing),
		order(march, 999.99, false, false, domain.OrderStatusPending),
		// manual status change contradicting the flag still counts as delivered by flag
		order(march, 20.00, false, true, domain.OrderStatusPending),
	}

	stats := Summarize(orders)

	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 153.59, stats.TotalRevenue)
	assert.Equal(t, 2, stats.PendingOrders)
	assert.Equal(t, 2, stats.DeliveredOrders)
	require.Len(t, stats.RevenueByMonth, 1)
	assert.Equal(t, domain.MonthlyRevenue{Year: 2024, Month: 3, Revenue: 153.59, Orders: 2}, stats.RevenueByMonth[0])
}

func TestSummarize_MonthsDescendingCappedAtSix(t *testing.T) {
	var orders []*domain.Order
	start := time.Date(2023, 9, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		orders = append(orders, order(start.AddDate(0, i, 0), 10, true, false, domain.OrderStatusProcessing))
	}

	stats := Summarize(orders)

	require.Len(t, stats.RevenueByMonth, 6)
	assert.Equal(t, 2024, stats.RevenueByMonth[0].Year)
	assert.Equal(t, 4, stats.RevenueByMonth[0].Month)
	assert.Equal(t, 2023, stats.RevenueByMonth[5].Year)
	assert.Equal(t, 11, stats.RevenueByMonth[5].Month)
	assert.Equal(t, 80.0, stats.TotalRevenue)
}

func TestSummarize_GroupsByUTCMonth(t *testing.T) {
	tz := time.FixedZone("UTC+3", 3*3600)
	// 1 April 01:00 at UTC+3 is still 31 March in UTC
	o := order(time.Date(2024, 4, 1, 1, 0, 0, 0, tz), 10, true, false, domain.OrderStatusProcessing)

	stats := Summarize([]*domain.Order{o})

	require.Len(t, stats.RevenueByMonth, 1)
	assert.Equal(t, 3, stats.RevenueByMonth[0].Month)
}
