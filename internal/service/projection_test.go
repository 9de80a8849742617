package service

import (
	"testing"

	"schoolbills/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAssistMigratesLegacyRecord(t *testing.T) {
	for _, tc := range []struct {
		schoolType model.SchoolType
		slot       string
	}{
		{model.SchoolTypePrimary, "assist_primary_1st_term"},
		{model.SchoolTypeSecondary, "assist_secondary_1st_term"},
		{model.SchoolTypeUniversity, "assist_university_1st_semester"},
	} {
		b := &model.Bill{ID: model.NewBillID(), SchoolType: tc.schoolType, AmountPaid: "45000.00"}
		out, m := NormalizeAssist(b)
		require.NotNil(t, m, tc.schoolType)

		assert.Equal(t, b.ID, m.BillID)
		assert.Equal(t, tc.slot, m.Guard.Column)
		assert.Equal(t, "45000", m.Value)
		assert.Equal(t, "45000", m.Guard.Get(out))
		// 比对基准是库里的原始值
		assert.Len(t, m.Expected, 9)
		assert.Equal(t, "45000.00", m.Expected["amt_paid"])
		assert.Equal(t, "", m.Expected[tc.slot])

		// 原对象不被修改
		assert.Equal(t, "", m.Guard.Get(b))
	}
}

func TestNormalizeAssistIsIdempotent(t *testing.T) {
	b := &model.Bill{SchoolType: model.SchoolTypePrimary, AmountPaid: "300"}

	first, m := NormalizeAssist(b)
	require.NotNil(t, m)

	second, m2 := NormalizeAssist(first)
	assert.Nil(t, m2)
	assert.Equal(t, first, second)
}

func TestNormalizeAssistDefaultsOnly(t *testing.T) {
	b := &model.Bill{SchoolType: model.SchoolTypeSecondary, AmountPaid: "0", AssistSecondary1stTerm: "10"}
	out, m := NormalizeAssist(b)
	assert.Nil(t, m)
	assert.Equal(t, "10", out.AssistSecondary1stTerm)
	assert.Equal(t, "0", out.AssistPrimary1stTerm)
	assert.Equal(t, "0", out.AssistUniversity2ndSemester)

	// 已有资助金额时不迁移
	paid := &model.Bill{SchoolType: model.SchoolTypeSecondary, AmountPaid: "500", AssistSecondary3rdTerm: "500"}
	_, m = NormalizeAssist(paid)
	assert.Nil(t, m)

	// 学段未知时只补默认值
	unknown := &model.Bill{SchoolType: "nursery", AmountPaid: "500"}
	_, m = NormalizeAssist(unknown)
	assert.Nil(t, m)
}

func TestNormalizeAssistZeroFormsCountAsLegacy(t *testing.T) {
	b := &model.Bill{
		ID:                   model.NewBillID(),
		SchoolType:           model.SchoolTypePrimary,
		AmountPaid:           "700",
		AssistPrimary1stTerm: "0.00",
		AssistPrimary2ndTerm: " ",
	}
	out, m := NormalizeAssist(b)
	require.NotNil(t, m)
	assert.Equal(t, "700", out.AssistPrimary1stTerm)
	assert.Equal(t, "0", out.AssistPrimary2ndTerm)
	assert.Equal(t, "0.00", m.Expected["assist_primary_1st_term"])
	assert.True(t, m.Matches(b))
}
