package service

import (
	"schoolbills/internal/model"
	"schoolbills/pkg/money"

	"github.com/shopspring/decimal"
)

// PaymentEvent 一次保存是否构成缴费
type PaymentEvent struct {
	IsPayment bool
	// Amount 本次流水金额 = max(0, 新amtPaid - 旧amtPaid)，为 0 时不记流水
	Amount decimal.Decimal
	// Period 第一个增加了的资助字段，只有 amtPaid 变化时为空
	Period string
}

// HasLedgerEntry 是否需要追加流水
func (e PaymentEvent) HasLedgerEntry() bool {
	return e.IsPayment && e.Amount.IsPositive()
}

// DetectPayment 根据保存前后的金额字段判断是否发生缴费
//
// prev 为 nil 表示新建，此时所有旧值按 0 计算。两个条件满足任意一个即视为缴费：
//   - 新 amtPaid > 0 且与旧值不同
//   - 任意一个资助字段严格增加
func DetectPayment(prev, next *model.Bill) PaymentEvent {
	prevPaid := decimal.Zero
	if prev != nil {
		prevPaid = money.ParseOrZero(prev.AmountPaid)
	}
	nextPaid := money.ParseOrZero(next.AmountPaid)

	paidChanged := nextPaid.IsPositive() && !nextPaid.Equal(prevPaid)

	period := ""
	for _, f := range model.AllAssistFields() {
		before := decimal.Zero
		if prev != nil {
			before = money.ParseOrZero(f.Get(prev))
		}
		if money.ParseOrZero(f.Get(next)).GreaterThan(before) {
			period = f.Key
			break
		}
	}

	if !paidChanged && period == "" {
		return PaymentEvent{Amount: decimal.Zero}
	}

	amount := nextPaid.Sub(prevPaid)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return PaymentEvent{IsPayment: true, Amount: amount, Period: period}
}
