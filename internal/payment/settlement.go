//internal/payment/settlement.go

package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
)

// Settler marks orders paid. Duplicate deliveries are safe because the write
// is a plain field set.
type Settler struct {
	orders OrderUpdater

	// The platform may redeliver while the first delivery is still being
	// settled. Concurrent settlements of the same order and transaction share
	// one store write and its result.
	sf singleflight.Group
}

func NewSettler(orders OrderUpdater) *Settler {
	return &Settler{orders: orders}
}

// ApplySettlement sets status=PAID, transactionId, successTime and updatedAt=now
// on the order keyed by s.OutTradeNo.
//
// Zero matches is not an error: it is logged and returned as Matched=0, the
// caller still acknowledges. Store failures come back wrapped in ErrDatastore.
func (st *Settler) ApplySettlement(ctx context.Context, s Settlement, now time.Time) (order.UpdateResult, error) {
	if s.OutTradeNo == "" {
		// an empty key would match any order stored without one
		log.Printf("[Settlement][WARN] success notification without out_trade_no (transaction %s), not touching the store", s.TransactionID)
		return order.UpdateResult{}, nil
	}

	v, err, shared := st.sf.Do(settleKey(s), func() (interface{}, error) {
		return st.orders.FindAndUpdateByKey(ctx, s.OutTradeNo, order.Patch{
			Status:        order.StatusPaid,
			TransactionID: s.TransactionID,
			SuccessTime:   s.SuccessTime,
			UpdatedAt:     now,
		})
	})
	if shared {
		log.Printf("[Settlement] concurrent delivery for order %s joined an in-flight settlement", s.OutTradeNo)
	}
	if err != nil {
		return order.UpdateResult{}, fmt.Errorf("%w: out_trade_no %s: %w", ErrDatastore, s.OutTradeNo, err)
	}
	res := v.(order.UpdateResult)

	if res.Matched == 0 {
		log.Printf("[Settlement][WARN] no order matches out_trade_no %s (transaction %s)", s.OutTradeNo, s.TransactionID)
		return res, nil
	}
	log.Printf("[Settlement] order %s paid by transaction %s (matched=%d modified=%d)", s.OutTradeNo, s.TransactionID, res.Matched, res.Modified)
	return res, nil
}

// settleKey joins the ids with NUL, which neither id can contain, so distinct
// (order, transaction) pairs never share a flight.
func settleKey(s Settlement) string {
	return s.OutTradeNo + "\x00" + s.TransactionID
}
