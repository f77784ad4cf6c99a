// Package reporting computes the admin dashboard summary over a snapshot of orders.
package reporting

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/domain"
)

type monthKey struct {
	year  int
	month int
}

type monthTotal struct {
	revenue decimal.Decimal
	orders  int
}

// Summarize returns totals over all orders and the paid revenue rolled up by UTC
// creation month, most recent first, capped at domain.RevenueMonths.
func Summarize(orders []*domain.Order) domain.OrderStats {
	stats := domain.OrderStats{
		TotalOrders:    len(orders),
		RevenueByMonth: []domain.MonthlyRevenue{},
	}

	revenue := decimal.Zero
	months := make(map[monthKey]*monthTotal)

	for _, o := range orders {
		if o.Status == domain.OrderStatusPending {
			stats.PendingOrders++
		}
		if o.IsDelivered {
			stats.DeliveredOrders++
		}
		if !o.IsPaid {
			continue
		}

		price := decimal.NewFromFloat(o.TotalPrice)
		revenue = revenue.Add(price)

		created := o.CreatedAt.UTC()
		key := monthKey{year: created.Year(), month: int(created.Month())}
		mt, ok := months[key]
		if !ok {
			mt = &monthTotal{revenue: decimal.Zero}
			months[key] = mt
		}
		mt.revenue = mt.revenue.Add(price)
		mt.orders++
	}
	stats.TotalRevenue = revenue.Round(2).InexactFloat64()

	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].month > keys[j].month
	})
	if len(keys) > domain.RevenueMonths {
		keys = keys[:domain.RevenueMonths]
	}

	for _, k := range keys {
		mt := months[k]
		stats.RevenueByMonth = append(stats.RevenueByMonth, domain.MonthlyRevenue{
			Year:    k.year,
			Month:   k.month,
			Revenue: mt.revenue.Round(2).InexactFloat64(),
			Orders:  mt.orders,
		})
	}
	return stats
}
