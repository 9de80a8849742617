package model

// MoneyField 账单上的一个金额字段：JSON 字段名、数据库列名和取值入口
type MoneyField struct {
	Key    string
	Column string
	ref    func(*Bill) *string
}

func (f MoneyField) Get(b *Bill) string {
	return *f.ref(b)
}

func (f MoneyField) Set(b *Bill, v string) {
	*f.ref(b) = v
}

var AmountPaidField = MoneyField{"amtPaid", "amt_paid", func(b *Bill) *string { return &b.AmountPaid }}

var feeFields = map[SchoolType][]MoneyField{
	SchoolTypePrimary: {
		{"primary1stTerm", "primary_1st_term", func(b *Bill) *string { return &b.Primary1stTerm }},
		{"primary2ndTerm", "primary_2nd_term", func(b *Bill) *string { return &b.Primary2ndTerm }},
		{"primary3rdTerm", "primary_3rd_term", func(b *Bill) *string { return &b.Primary3rdTerm }},
	},
	SchoolTypeSecondary: {
		{"secondary1stTerm", "secondary_1st_term", func(b *Bill) *string { return &b.Secondary1stTerm }},
		{"secondary2ndTerm", "secondary_2nd_term", func(b *Bill) *string { return &b.Secondary2ndTerm }},
		{"secondary3rdTerm", "secondary_3rd_term", func(b *Bill) *string { return &b.Secondary3rdTerm }},
	},
	SchoolTypeUniversity: {
		{"university1stSemester", "university_1st_semester", func(b *Bill) *string { return &b.University1stSemester }},
		{"university2ndSemester", "university_2nd_semester", func(b *Bill) *string { return &b.University2ndSemester }},
	},
}

var assistFields = map[SchoolType][]MoneyField{
	SchoolTypePrimary: {
		{"assistPrimary1stTerm", "assist_primary_1st_term", func(b *Bill) *string { return &b.AssistPrimary1stTerm }},
		{"assistPrimary2ndTerm", "assist_primary_2nd_term", func(b *Bill) *string { return &b.AssistPrimary2ndTerm }},
		{"assistPrimary3rdTerm", "assist_primary_3rd_term", func(b *Bill) *string { return &b.AssistPrimary3rdTerm }},
	},
	SchoolTypeSecondary: {
		{"assistSecondary1stTerm", "assist_secondary_1st_term", func(b *Bill) *string { return &b.AssistSecondary1stTerm }},
		{"assistSecondary2ndTerm", "assist_secondary_2nd_term", func(b *Bill) *string { return &b.AssistSecondary2ndTerm }},
		{"assistSecondary3rdTerm", "assist_secondary_3rd_term", func(b *Bill) *string { return &b.AssistSecondary3rdTerm }},
	},
	SchoolTypeUniversity: {
		{"assistUniversity1stSemester", "assist_university_1st_semester", func(b *Bill) *string { return &b.AssistUniversity1stSemester }},
		{"assistUniversity2ndSemester", "assist_university_2nd_semester", func(b *Bill) *string { return &b.AssistUniversity2ndSemester }},
	},
}

var fieldsByKey = func() map[string]MoneyField {
	m := make(map[string]MoneyField, 17)
	for _, f := range AllMoneyFields() {
		m[f.Key] = f
	}
	return m
}()

// LookupField 按 JSON 字段名查找金额字段
func LookupField(key string) (MoneyField, bool) {
	f, ok := fieldsByKey[key]
	return f, ok
}

// AllAssistFields 全部 8 个资助字段，顺序：小学、中学、大学
func AllAssistFields() []MoneyField {
	fields := make([]MoneyField, 0, 8)
	for _, t := range SchoolTypes {
		fields = append(fields, assistFields[t]...)
	}
	return fields
}

// AllMoneyFields amtPaid + 全部应缴字段 + 全部资助字段
func AllMoneyFields() []MoneyField {
	fields := []MoneyField{AmountPaidField}
	for _, t := range SchoolTypes {
		fields = append(fields, feeFields[t]...)
	}
	return append(fields, AllAssistFields()...)
}

// EditableColumns 批量保存/修改时允许写入的列，不含 sn 与流水
func EditableColumns() []string {
	cols := []string{"name", "school", "academic_year", "school_type", "payment_date"}
	for _, f := range AllMoneyFields() {
		cols = append(cols, f.Column)
	}
	return cols
}
