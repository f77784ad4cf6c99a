package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
)

type PostgresOrderRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresOrderRepository(cred *Credentials) (*PostgresOrderRepository, error) {
	db, err := ConnectPostgres(cred)
	if err != nil {
		return nil, err
	}
	return &PostgresOrderRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *PostgresOrderRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, user_id, items, shipping_address, payment_method,
	items_price, tax_price, shipping_price, total_price,
	is_paid, paid_at, payment_result, is_delivered, delivered_at,
	status, stock_warnings, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                                domain.Order
		itemsJSON, addressJSON, warningsJSON []byte
		paymentJSON                          []byte
		paidAt, deliveredAt                  sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&addressJSON,
		&order.PaymentMethod,
		&order.ItemsPrice,
		&order.TaxPrice,
		&order.ShippingPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&paymentJSON,
		&order.IsDelivered,
		&deliveredAt,
		&order.Status,
		&warningsJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(warningsJSON, &order.StockWarnings); err != nil {
		return nil, fmt.Errorf("unmarshal stock warnings: %w", err)
	}
	if len(paymentJSON) > 0 {
		var pr domain.PaymentResult
		if err := json.Unmarshal(paymentJSON, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		order.PaymentResult = &pr
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		order.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time.UTC()
		order.DeliveredAt = &t
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	return &order, nil
}

type orderJSON struct {
	items, address, warnings string
	payment                  any
}

func marshalOrder(order *domain.Order) (*orderJSON, error) {
	var out orderJSON

	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	warnings := order.StockWarnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock warnings: %w", err)
	}
	out.items, out.address, out.warnings = string(items), string(address), string(warningsJSON)

	if order.PaymentResult != nil {
		payment, err := json.Marshal(order.PaymentResult)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment result: %w", err)
		}
		out.payment = string(payment)
	}
	return &out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateOrder inserts the order and its order.placed event in one transaction.
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	encoded, err := marshalOrder(order)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		encoded.items,
		encoded.address,
		order.PaymentMethod,
		order.ItemsPrice,
		order.TaxPrice,
		order.ShippingPrice,
		order.TotalPrice,
		order.IsPaid,
		nullTime(order.PaidAt),
		encoded.payment,
		order.IsDelivered,
		nullTime(order.DeliveredAt),
		order.Status,
		encoded.warnings,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := r.insertEvent(ctx, tx, order, domain.EventOrderPlaced); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) insertEvent(ctx context.Context, tx *sql.Tx, order *domain.Order, eventType string) error {
	event, err := NewOutboxEvent(order, eventType, r.now())
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
		event.AggregateID, event.EventType, string(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresOrderRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

func (r *PostgresOrderRepository) ListOrders(ctx context.Context, page, limit int) ([]*domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	orders, err := r.queryOrders(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresOrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// UpdateOrder serializes writers on the order row with SELECT ... FOR UPDATE.
func (r *PostgresOrderRepository) UpdateOrder(ctx context.Context, id uuid.UUID, eventType string, mutate func(*domain.Order) error) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := mutate(order); err != nil {
		return nil, err
	}

	encoded, err := marshalOrder(order)
	if err != nil {
		return nil, err
	}

	query := `UPDATE orders SET
	              is_paid = $2, paid_at = $3, payment_result = $4,
	              is_delivered = $5, delivered_at = $6,
	              status = $7, stock_warnings = $8, updated_at = $9
	          WHERE id = $1`
	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.IsPaid,
		nullTime(order.PaidAt),
		encoded.payment,
		order.IsDelivered,
		nullTime(order.DeliveredAt),
		order.Status,
		encoded.warnings,
		order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := r.insertEvent(ctx, tx, order, eventType); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order update: %w", err)
	}
	return order, nil
}

// OrderStats aggregates in SQL. Months are taken from created_at in UTC.
func (r *PostgresOrderRepository) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	stats := domain.OrderStats{RevenueByMonth: []domain.MonthlyRevenue{}}

	totals := `SELECT
	               COUNT(*),
	               COALESCE(SUM(total_price) FILTER (WHERE is_paid), 0),
	               COUNT(*) FILTER (WHERE status = 'Pending'),
	               COUNT(*) FILTER (WHERE is_delivered)
	           FROM orders`
	err := r.db.QueryRowContext(ctx, totals).Scan(
		&stats.TotalOrders,
		&stats.TotalRevenue,
		&stats.PendingOrders,
		&stats.DeliveredOrders,
	)
	if err != nil {
		return stats, fmt.Errorf("query order totals: %w", err)
	}

	monthly := `SELECT
	                EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC')::int AS year,
	                EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS month,
	                SUM(total_price),
	                COUNT(*)
	            FROM orders
	            WHERE is_paid
	            GROUP BY 1, 2
	            ORDER BY 1 DESC, 2 DESC
	            LIMIT $1`
	rows, err := r.db.QueryContext(ctx, monthly, domain.RevenueMonths)
	if err != nil {
		return stats, fmt.Errorf("query monthly revenue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MonthlyRevenue
		if err := rows.Scan(&m.Year, &m.Month, &m.Revenue, &m.Orders); err != nil {
			return stats, fmt.Errorf("scan monthly revenue: %w", err)
		}
		stats.RevenueByMonth = append(stats.RevenueByMonth, m)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}

func (r *PostgresOrderRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			event   OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		event.Payload = payload
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresOrderRepository) MarkEventAsProcessed(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d processed: %w", id, err)
	}
	return nil
}

func (r *PostgresOrderRepository) Close() error {
	return r.db.Close()
}
