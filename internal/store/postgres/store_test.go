package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestOrderStore_FindAndUpdateByKey(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	patch := order.Patch{Status: order.StatusPaid, TransactionID: "4200000001", SuccessTime: "2024-05-01T18:00:00+08:00", UpdatedAt: now}
	updateSQL := regexp.QuoteMeta("UPDATE orders") + `(?s).*` + regexp.QuoteMeta("WHERE ctid = (SELECT ctid FROM orders WHERE out_trade_no = $5 LIMIT 1)")

	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		want    order.UpdateResult
		wantErr bool
	}{
		{
			name: "matched",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(updateSQL).
					WithArgs("PAID", "4200000001", "2024-05-01T18:00:00+08:00", now, "A1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: order.UpdateResult{Matched: 1, Modified: 1},
		},
		{
			name: "no such order",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: order.UpdateResult{},
		},
		{
			name: "driver error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(updateSQL).WillReturnError(errors.New("connection reset by peer"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.setup(mock)

			got, err := NewOrderStore(db).FindAndUpdateByKey(context.Background(), "A1", patch)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "db:")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderStore_GetOrder(t *testing.T) {
	db, mock := newMock(t)
	store := NewOrderStore(db)
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	selectSQL := regexp.QuoteMeta("SELECT out_trade_no, status, transaction_id, success_time, amount_total, updated_at")

	mock.ExpectQuery(selectSQL).WithArgs("A1").
		WillReturnRows(sqlmock.NewRows([]string{"out_trade_no", "status", "transaction_id", "success_time", "amount_total", "updated_at"}).
			AddRow("A1", "PAID", "4200000001", "2024-05-01T18:00:00+08:00", int64(100), updated))
	mock.ExpectQuery(selectSQL).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	got, err := store.GetOrder(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, order.Order{OutTradeNo: "A1", Status: order.StatusPaid, TransactionID: "4200000001", SuccessTime: "2024-05-01T18:00:00+08:00", AmountTotal: 100, UpdatedAt: updated}, got)

	_, err = store.GetOrder(context.Background(), "ghost")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStore_CreateOrder(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("A1", "UNPAID", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewOrderStore(db).CreateOrder(context.Background(), "A1", 100))
	assert.ErrorIs(t, NewOrderStore(db).CreateOrder(context.Background(), "", 100), order.ErrEmptyOutTradeNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationLogStore_Record(t *testing.T) {
	db, mock := newMock(t)
	gdb, err := Wrap(db)
	require.NoError(t, err)
	store := NewNotificationLogStore(gdb)

	insertSQL := regexp.QuoteMeta(`INSERT INTO "payment_notification_log"`)
	mock.ExpectExec(insertSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).WillReturnError(errors.New("relation does not exist"))

	rec := payment.NotificationRecord{
		Provider:   "WechatPay",
		EventID:    "EV-1",
		EventType:  payment.EventTransactionSuccess,
		OutTradeNo: "A1",
		Status:     payment.NotificationHandled,
		Payload:    json.RawMessage(`{"id":"EV-1"}`),
		ReceivedAt: time.Now(),
	}
	require.NoError(t, store.Record(context.Background(), rec))

	err = store.Record(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EV-1")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationLogStore_ListByOrder(t *testing.T) {
	db, mock := newMock(t)
	gdb, err := Wrap(db)
	require.NoError(t, err)

	received := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payment_notification_log" WHERE out_trade_no = $1 ORDER BY received_at DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider", "event_id", "event_type", "out_trade_no", "status", "received_at"}).
			AddRow("6f1c1b9e-3c7e-4a53-9a55-6f2d7f0e2c11", "WechatPay", "EV-2", "TRANSACTION.SUCCESS", "A1", "handled", received).
			AddRow("0b8e8a35-3b55-4d8a-a4b6-5a5c1e0d9f20", "WechatPay", "EV-1", "TRANSACTION.SUCCESS", "A1", "handle_failed", received.Add(-time.Minute)))

	rows, err := NewNotificationLogStore(gdb).ListByOrder(context.Background(), "A1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "EV-2", rows[0].EventID)
	assert.Equal(t, "handle_failed", rows[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS orders")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS payment_notification_log")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS orders")).WillReturnError(errors.New("permission denied"))

	err := RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_orders.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
