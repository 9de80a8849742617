package service

import (
	"schoolbills/internal/model"
	"schoolbills/pkg/money"
)

// NormalizeAssist 读取时规范化资助字段
//
// 返回规范化后的副本；如果是旧数据（资助字段全为 0 而 amtPaid > 0），
// 把 amtPaid 整体放进该学段第一个账期的资助字段，并返回需要持久化的迁移。
// 对已经迁移过的账单再次调用，资助字段已非 0，不会重复迁移。
func NormalizeAssist(b *model.Bill) (*model.Bill, *model.AssistMigration) {
	out := b.Clone()

	allZero := true
	for _, f := range model.AllAssistFields() {
		v := money.Normalize(f.Get(out))
		f.Set(out, v)
		if !money.IsZero(v) {
			allZero = false
		}
	}

	paid := money.ParseOrZero(out.AmountPaid)
	if !allZero || !paid.IsPositive() {
		return out, nil
	}

	v := out.Variant()
	if v == nil {
		return out, nil
	}
	periods := v.Periods()
	guard, ok := model.LookupField(periods[0].AssistKey)
	if !ok {
		return out, nil
	}

	value := money.Format(paid)
	periods[0].Assist = value
	out.ApplyVariant(model.NewVariant(v.SchoolType(), periods))

	return out, model.NewAssistMigration(b, guard, value)
}
