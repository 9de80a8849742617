package model

// AssistMigration 把旧数据的 amtPaid 迁移到资助字段
//
// 旧账单只有一个 amtPaid，没有按账期拆分的资助金额。读取时把 amtPaid 整体放进
// 该学段第一个账期的资助字段（Guard），然后只写回这一列。
// Expected 是读取时 amtPaid 和 8 个资助字段在库里的原始值：写入时这些列必须原样未变，
// 期间有人录入过资助金额或改过 amtPaid 时放弃写入。
type AssistMigration struct {
	BillID   string
	Guard    MoneyField
	Value    string
	Expected map[string]string // 列名 -> 原始值
}

// MigrationGuardFields 迁移写入前需要比对的列：amtPaid + 全部资助字段
func MigrationGuardFields() []MoneyField {
	return append([]MoneyField{AmountPaidField}, AllAssistFields()...)
}

// NewAssistMigration 以 stored（库里读出的原始账单）为比对基准
func NewAssistMigration(stored *Bill, guard MoneyField, value string) *AssistMigration {
	expected := make(map[string]string, 9)
	for _, f := range MigrationGuardFields() {
		expected[f.Column] = f.Get(stored)
	}
	return &AssistMigration{BillID: stored.ID, Guard: guard, Value: value, Expected: expected}
}

// Matches 账单的比对列是否仍等于读取时的值
func (m *AssistMigration) Matches(b *Bill) bool {
	for _, f := range MigrationGuardFields() {
		want, ok := m.Expected[f.Column]
		if ok && f.Get(b) != want {
			return false
		}
	}
	return true
}
