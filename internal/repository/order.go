package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for order repository operations.
var (
	ErrOrderExists   = errors.New("order already exists")
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// allOrdersPageSize bounds each query issued by ListAllOrders.
const allOrdersPageSize = 500

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	UserID   string
	CourseID string
}

// CreateOrder inserts an order. PaymentInfo is stored as JSONB, NULL when absent.
func (r *Repository) CreateOrder(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (id, course_id, user_id, payment_info, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var payment any
	if order.PaymentInfo != nil {
		data, err := json.Marshal(order.PaymentInfo)
		if err != nil {
			return fmt.Errorf("failed to encode payment info: %w", err)
		}
		payment = string(data)
	}

	_, err := r.db.Exec(ctx, query,
		order.ID,
		order.CourseID,
		order.UserID,
		payment,
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// ListOrders returns one page of orders, newest first, and the cursor for
// the next page. The cursor is empty on the last page.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter, cursor string, limit int) ([]*model.Order, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT id, course_id, user_id, payment_info, created_at
		FROM orders
		WHERE TRUE
	`
	var args []any
	argIndex := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}

	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", argIndex)
		args = append(args, filter.CourseID)
		argIndex++
	}

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating orders: %w", err)
	}

	var nextCursor string
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        last.ID,
			CreatedAt: last.CreatedAt,
		})
	}

	return orders, nextCursor, nil
}

// ListAllOrders walks every page and returns the full order collection,
// newest first.
func (r *Repository) ListAllOrders(ctx context.Context) ([]*model.Order, error) {
	all := []*model.Order{}
	cursor := ""
	for {
		page, next, err := r.ListOrders(ctx, OrderFilter{}, cursor, allOrdersPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var order model.Order
	var payment []byte

	if err := row.Scan(
		&order.ID,
		&order.CourseID,
		&order.UserID,
		&payment,
		&order.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(payment) > 0 && string(payment) != "null" {
		var info model.PaymentInfo
		if err := json.Unmarshal(payment, &info); err != nil {
			return nil, fmt.Errorf("decode payment info: %w", err)
		}
		order.PaymentInfo = &info
	}

	return &order, nil
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" {
		return nil, errors.New("cursor missing id")
	}

	return &cursor, nil
}
