package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 流水金额以数字形式输出：{"amount": 30000}
	decimal.MarshalJSONWithoutQuotes = true
}

// ============================================================================
// 缴费流水实体
// ============================================================================

// BillPayment 账单缴费流水表
// 每检测到一次缴费事件追加一条
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，账单的缴费历史可追溯
// 2. Period 记录触发本次缴费的资助字段，只有 amtPaid 变化时为空
type BillPayment struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	PaymentNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"paymentNo"`
	BillID    string          `gorm:"type:char(24);index;not null" json:"billId"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Period    string          `gorm:"type:varchar(64)" json:"period,omitempty"`
	Date      time.Time       `gorm:"column:paid_at;not null;index" json:"date"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"-"`
}

func (BillPayment) TableName() string {
	return "bill_payment"
}
