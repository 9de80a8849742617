package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const EventPaymentRecorded = "bill.payment.recorded"

// OutboxMessage 待投递的领域事件
// 与账单写入在同一个事务里落库，由 OutboxSender 异步投递到消息队列
type OutboxMessage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_key"`
	EventType   string    `gorm:"type:varchar(64);not null" json:"event_type"`
	AggregateID string    `gorm:"type:char(24);index;not null" json:"aggregate_id"`
	Topic       string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	Status      string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount  int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// PaymentRecordedPayload 缴费事件消息体
type PaymentRecordedPayload struct {
	PaymentNo    string    `json:"payment_no"`
	BillID       string    `json:"bill_id"`
	Serial       string    `json:"sn"`
	StudentName  string    `json:"name"`
	SchoolName   string    `json:"school"`
	AcademicYear string    `json:"academic_year"`
	SchoolType   string    `json:"school_type"`
	Amount       string    `json:"amount"`
	Period       string    `json:"period,omitempty"`
	AmountPaid   string    `json:"amt_paid"`
	PaidAt       time.Time `json:"paid_at"`
}
