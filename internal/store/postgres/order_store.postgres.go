// internal/store/postgres/order_store.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
)

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// FindAndUpdateByKey overwrites the settlement fields of the first order with
// that out_trade_no. Postgres counts a row as affected even when the values
// did not change, so Matched and Modified are both RowsAffected.
func (s *OrderStore) FindAndUpdateByKey(ctx context.Context, outTradeNo string, patch order.Patch) (order.UpdateResult, error) {
	query := `
		UPDATE orders
		SET status = $1,
		    transaction_id = $2,
		    success_time = $3,
		    updated_at = $4
		WHERE ctid = (SELECT ctid FROM orders WHERE out_trade_no = $5 LIMIT 1)
	`
	res, err := s.db.ExecContext(ctx, query,
		string(patch.Status),
		patch.TransactionID,
		patch.SuccessTime,
		patch.UpdatedAt,
		outTradeNo,
	)
	if err != nil {
		return order.UpdateResult{}, fmt.Errorf("db: failed to update order %s: %w", outTradeNo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return order.UpdateResult{}, fmt.Errorf("db: rows affected for order %s: %w", outTradeNo, err)
	}
	return order.UpdateResult{Matched: n, Modified: n}, nil
}

// GetOrder is used by operators and tests; settlement never reads.
func (s *OrderStore) GetOrder(ctx context.Context, outTradeNo string) (order.Order, error) {
	query := `
		SELECT out_trade_no, status, transaction_id, success_time, amount_total, updated_at
		FROM orders
		WHERE out_trade_no = $1
		LIMIT 1
	`
	var (
		o      order.Order
		status string
	)
	err := s.db.QueryRowContext(ctx, query, outTradeNo).Scan(&o.OutTradeNo, &status, &o.TransactionID, &o.SuccessTime, &o.AmountTotal, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("db: order fetch failed: %w", err)
	}
	o.Status = order.OrderStatus(status)
	return o, nil
}

// CreateOrder inserts an UNPAID order. Orders are normally created by the
// checkout flow; this exists for seeding and local runs.
func (s *OrderStore) CreateOrder(ctx context.Context, outTradeNo string, amountTotal int64) error {
	if outTradeNo == "" {
		return order.ErrEmptyOutTradeNo
	}
	query := `
		INSERT INTO orders (out_trade_no, status, amount_total, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (out_trade_no) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, outTradeNo, string(order.StatusUnpaid), amountTotal); err != nil {
		return fmt.Errorf("db: failed to create order: %w", err)
	}
	return nil
}
