package service

import (
	"testing"

	"schoolbills/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDetectPayment(t *testing.T) {
	tests := []struct {
		name      string
		prev      *model.Bill
		next      *model.Bill
		isPayment bool
		amount    string
		period    string
		hasLedger bool
	}{
		{
			name:      "新建且已缴",
			next:      &model.Bill{AmountPaid: "50000"},
			isPayment: true, amount: "50000", hasLedger: true,
		},
		{
			name:   "新建未缴",
			next:   &model.Bill{AmountPaid: "0"},
			amount: "0",
		},
		{
			name:      "已缴金额增加",
			prev:      &model.Bill{AmountPaid: "50000"},
			next:      &model.Bill{AmountPaid: "80000"},
			isPayment: true, amount: "30000", hasLedger: true,
		},
		{
			name:   "已缴金额不变",
			prev:   &model.Bill{AmountPaid: "50000"},
			next:   &model.Bill{AmountPaid: "50000.00"},
			amount: "0",
		},
		{
			name:      "已缴金额减少仍算缴费但不记流水",
			prev:      &model.Bill{AmountPaid: "50000"},
			next:      &model.Bill{AmountPaid: "40000"},
			isPayment: true, amount: "0",
		},
		{
			name:      "只有资助增加",
			prev:      &model.Bill{AmountPaid: "100", AssistSecondary2ndTerm: "0"},
			next:      &model.Bill{AmountPaid: "100", AssistSecondary2ndTerm: "20"},
			isPayment: true, amount: "0", period: "assistSecondary2ndTerm",
		},
		{
			name:      "资助和已缴同时增加，取第一个增加的资助字段",
			prev:      &model.Bill{AmountPaid: "100"},
			next:      &model.Bill{AmountPaid: "150", AssistPrimary3rdTerm: "30", AssistUniversity1stSemester: "20"},
			isPayment: true, amount: "50", period: "assistPrimary3rdTerm", hasLedger: true,
		},
		{
			name:   "资助减少不算缴费",
			prev:   &model.Bill{AmountPaid: "0", AssistPrimary1stTerm: "50"},
			next:   &model.Bill{AmountPaid: "0", AssistPrimary1stTerm: "10"},
			amount: "0",
		},
		{
			name:      "非法金额按0处理",
			prev:      &model.Bill{AmountPaid: "abc"},
			next:      &model.Bill{AmountPaid: "25"},
			isPayment: true, amount: "25", hasLedger: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DetectPayment(tt.prev, tt.next)
			assert.Equal(t, tt.isPayment, e.IsPayment)
			assert.Equal(t, tt.amount, e.Amount.String())
			assert.Equal(t, tt.period, e.Period)
			assert.Equal(t, tt.hasLedger, e.HasLedgerEntry())
		})
	}
}
