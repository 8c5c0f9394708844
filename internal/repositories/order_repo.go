package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/melizondo/voltcart/internal/database"
	"github.com/melizondo/voltcart/internal/models"
)

// OrderRepository persists orders and their line items
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its line items in one transaction. The order's
// Total must already hold the server-recomputed value.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO orders (customer_name, customer_email, status, total)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`

		err := tx.QueryRow(ctx, query,
			order.CustomerName, order.CustomerEmail, order.Status, order.Total,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_name, price, quantity)
				VALUES ($1, $2, $3, $4)
			`, order.ID, item.ProductName, item.Price, item.Quantity)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return order, nil
}

// GetByID retrieves an order with its line items
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order

	query := `
		SELECT id, customer_name, customer_email, status, total, created_at
		FROM orders
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&order.ID, &order.CustomerName, &order.CustomerEmail,
		&order.Status, &order.Total, &order.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT product_name, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ProductName, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return &order, nil
}

// ListRecent returns the newest orders for the admin dashboard
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]*models.Order, error) {
	query := `
		SELECT id, customer_name, customer_email, status, total, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID, &order.CustomerName, &order.CustomerEmail,
			&order.Status, &order.Total, &order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
