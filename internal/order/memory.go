package order

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps orders in a map. Used by tests and by `serve` when no
// database is configured.
type MemoryStore struct {
	orders map[string]Order
	mu     sync.RWMutex
}

func NewMemoryStore(seed ...Order) *MemoryStore {
	s := &MemoryStore{
		orders: make(map[string]Order, len(seed)),
	}
	for _, o := range seed {
		s.orders[o.OutTradeNo] = o
	}
	return s
}

// FindAndUpdateByKey applies the patch to the order with the given outTradeNo.
// Modified counts writes that changed at least one field.
func (s *MemoryStore) FindAndUpdateByKey(ctx context.Context, outTradeNo string, patch Patch) (UpdateResult, error) {
	// Check if the context is canceled or timed out
	select {
	case <-ctx.Done():
		return UpdateResult{}, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[outTradeNo]
	if !ok {
		return UpdateResult{}, nil
	}
	next := current
	next.Status = patch.Status
	next.TransactionID = patch.TransactionID
	next.SuccessTime = patch.SuccessTime
	next.UpdatedAt = patch.UpdatedAt

	res := UpdateResult{Matched: 1}
	if next != current {
		res.Modified = 1
	}
	s.orders[outTradeNo] = next
	return res, nil
}

// GetOrder returns a copy of the stored order.
func (s *MemoryStore) GetOrder(ctx context.Context, outTradeNo string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[outTradeNo]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

// CreateOrder inserts an UNPAID order. An existing order is left untouched.
func (s *MemoryStore) CreateOrder(ctx context.Context, outTradeNo string, amountTotal int64) error {
	if outTradeNo == "" {
		return ErrEmptyOutTradeNo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[outTradeNo]; ok {
		return nil
	}
	s.orders[outTradeNo] = Order{
		OutTradeNo:  outTradeNo,
		Status:      StatusUnpaid,
		AmountTotal: amountTotal,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}
