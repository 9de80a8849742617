package model

// ============================================================================
// 按学段区分的账单视图
// ============================================================================
//
// 数据库里是一张平铺表；业务上一条账单只属于一个学段：
//   PrimaryBill     小学，三个学期
//   SecondaryBill   中学，三个学期
//   UniversityBill  大学，两个学期
//
// Bill.Variant() 从平铺字段读出对应学段的视图，Bill.ApplyVariant() 写回平铺字段。
// ============================================================================

// Period 一个账期的应缴金额和资助金额
type Period struct {
	Key       string // 应缴字段名，例如 primary1stTerm
	AssistKey string // 资助字段名，例如 assistPrimary1stTerm
	Fee       string
	Assist    string
}

// BillVariant 学段视图
type BillVariant interface {
	SchoolType() SchoolType
	Periods() []Period
}

type PrimaryBill struct {
	Terms [3]Period
}

func (PrimaryBill) SchoolType() SchoolType { return SchoolTypePrimary }
func (v PrimaryBill) Periods() []Period    { return v.Terms[:] }

type SecondaryBill struct {
	Terms [3]Period
}

func (SecondaryBill) SchoolType() SchoolType { return SchoolTypeSecondary }
func (v SecondaryBill) Periods() []Period    { return v.Terms[:] }

type UniversityBill struct {
	Semesters [2]Period
}

func (UniversityBill) SchoolType() SchoolType { return SchoolTypeUniversity }
func (v UniversityBill) Periods() []Period    { return v.Semesters[:] }

// Variant 返回当前学段的视图，学段非法时返回 nil
func (b *Bill) Variant() BillVariant {
	if !b.SchoolType.Valid() {
		return nil
	}
	return NewVariant(b.SchoolType, b.periods(b.SchoolType))
}

// NewVariant 按学段组装视图，多余的账期忽略
func NewVariant(t SchoolType, periods []Period) BillVariant {
	switch t {
	case SchoolTypePrimary:
		v := PrimaryBill{}
		copy(v.Terms[:], periods)
		return v
	case SchoolTypeSecondary:
		v := SecondaryBill{}
		copy(v.Terms[:], periods)
		return v
	case SchoolTypeUniversity:
		v := UniversityBill{}
		copy(v.Semesters[:], periods)
		return v
	}
	return nil
}

// ApplyVariant 把学段视图写回平铺字段，其他学段的字段保持不变
func (b *Bill) ApplyVariant(v BillVariant) {
	t := v.SchoolType()
	b.SchoolType = t
	fees := feeFields[t]
	assists := assistFields[t]
	for i, p := range v.Periods() {
		if i >= len(fees) {
			break
		}
		fees[i].Set(b, p.Fee)
		assists[i].Set(b, p.Assist)
	}
}

func (b *Bill) periods(t SchoolType) []Period {
	fees := feeFields[t]
	assists := assistFields[t]
	periods := make([]Period, len(fees))
	for i := range fees {
		periods[i] = Period{
			Key:       fees[i].Key,
			AssistKey: assists[i].Key,
			Fee:       fees[i].Get(b),
			Assist:    assists[i].Get(b),
		}
	}
	return periods
}
