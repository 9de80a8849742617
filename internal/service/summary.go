package service

import (
	"context"

	"schoolbills/internal/model"
	"schoolbills/pkg/money"

	"github.com/shopspring/decimal"
)

// Totals 一组账单的汇总
type Totals struct {
	Students       int    `json:"students"`
	TotalBilled    string `json:"totalBilled"`
	TotalPaid      string `json:"totalPaid"`
	Outstanding    string `json:"outstanding"`
	CollectionRate int64  `json:"collectionRate"` // 百分比，四舍五入
}

type SchoolTypeTotals struct {
	SchoolType model.SchoolType `json:"schoolType"`
	Totals
}

// SummaryReport 看板汇总
type SummaryReport struct {
	AcademicYear string `json:"academicYear,omitempty"`
	Totals
	BySchoolType []SchoolTypeTotals `json:"bySchoolType"`
}

type accumulator struct {
	students int
	billed   decimal.Decimal
	paid     decimal.Decimal
}

func (a *accumulator) add(b *model.Bill) {
	a.students++
	if v := b.Variant(); v != nil {
		fees := make([]string, 0, 3)
		for _, p := range v.Periods() {
			fees = append(fees, p.Fee)
		}
		a.billed = a.billed.Add(money.Sum(fees...))
	}
	a.paid = a.paid.Add(money.ParseOrZero(b.AmountPaid))
}

func (a *accumulator) totals() Totals {
	rate := int64(0)
	if a.billed.IsPositive() {
		rate = a.paid.Div(a.billed).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	return Totals{
		Students:       a.students,
		TotalBilled:    money.Format(a.billed),
		TotalPaid:      money.Format(a.paid),
		Outstanding:    money.Format(a.billed.Sub(a.paid)),
		CollectionRate: rate,
	}
}

// Summarize 汇总：应缴合计只算当前学段的账期字段，已缴合计是 amtPaid 之和
func Summarize(academicYear string, bills []*model.Bill) *SummaryReport {
	all := &accumulator{}
	byType := make(map[model.SchoolType]*accumulator, len(model.SchoolTypes))
	for _, t := range model.SchoolTypes {
		byType[t] = &accumulator{}
	}

	for _, b := range bills {
		all.add(b)
		if acc, ok := byType[b.SchoolType]; ok {
			acc.add(b)
		}
	}

	report := &SummaryReport{
		AcademicYear: academicYear,
		Totals:       all.totals(),
		BySchoolType: make([]SchoolTypeTotals, 0, len(model.SchoolTypes)),
	}
	for _, t := range model.SchoolTypes {
		report.BySchoolType = append(report.BySchoolType, SchoolTypeTotals{
			SchoolType: t,
			Totals:     byType[t].totals(),
		})
	}
	return report
}

// Summary 某学年（为空时全部）的汇总
func (s *BillService) Summary(ctx context.Context, academicYear string) (*SummaryReport, error) {
	bills, err := s.List(ctx, academicYear)
	if err != nil {
		return nil, err
	}
	return Summarize(academicYear, bills), nil
}
