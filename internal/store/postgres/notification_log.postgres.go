// internal/store/postgres/notification_log.postgres.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// PaymentNotificationLog is one row per notification the webhook received.
type PaymentNotificationLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Provider      string    `gorm:"not null"`
	EventID       string    `gorm:"index"`
	EventType     string    `gorm:"column:event_type"`
	OutTradeNo    string    `gorm:"index"`
	TransactionID string    `gorm:"column:transaction_id"`
	Status        string    `gorm:"not null"`
	Reason        string    `gorm:"column:reason"`
	Payload       *string   `gorm:"type:jsonb"` // nil when the body wasn't JSON
	ReceivedAt    time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (PaymentNotificationLog) TableName() string {
	return "payment_notification_log"
}

type NotificationLogStore struct {
	db *gorm.DB
}

func NewNotificationLogStore(db *gorm.DB) *NotificationLogStore {
	return &NotificationLogStore{db: db}
}

// Record implements payment.NotificationRecorder.
func (s *NotificationLogStore) Record(ctx context.Context, rec payment.NotificationRecord) error {
	row := PaymentNotificationLog{
		ID:            uuid.New(),
		Provider:      rec.Provider,
		EventID:       rec.EventID,
		EventType:     rec.EventType,
		OutTradeNo:    rec.OutTradeNo,
		TransactionID: rec.TransactionID,
		Status:        string(rec.Status),
		Reason:        rec.Reason,
		ReceivedAt:    rec.ReceivedAt,
	}
	if len(rec.Payload) > 0 {
		p := string(rec.Payload)
		row.Payload = &p
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("db: failed to record notification %s: %w", rec.EventID, err)
	}
	return nil
}

// ListByOrder returns the notification history of one order, newest first.
func (s *NotificationLogStore) ListByOrder(ctx context.Context, outTradeNo string, limit int) ([]PaymentNotificationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []PaymentNotificationLog
	err := s.db.WithContext(ctx).
		Where("out_trade_no = ?", outTradeNo).
		Order("received_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("db: failed to list notifications for %s: %w", outTradeNo, err)
	}
	return rows, nil
}
