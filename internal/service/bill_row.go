package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"schoolbills/internal/model"
	"schoolbills/pkg/money"
)

// BillRow 批量保存时提交的一行
//
// 只记录请求里真正出现过的字段：更新时缺省的字段保留库里的值，创建时金额缺省为 "0"。
// 金额既可以是字符串也可以是数字，null 视为未提交。
// 客户端的临时ID可能放在 _id 或 id 里，可能是字符串也可能是数字（时间戳）。
type BillRow struct {
	ID     string
	values map[string]string
}

const (
	keyName         = "name"
	keySchool       = "school"
	keyAcademicYear = "academicYear"
	keySchoolType   = "schoolType"
)

var textKeys = []string{keyName, keySchool, keyAcademicYear, keySchoolType}

// NewBillRow 由字段值构造一行，键为 JSON 字段名
func NewBillRow(id string, values map[string]string) *BillRow {
	r := &BillRow{ID: id, values: make(map[string]string, len(values))}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

func (r *BillRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.values = make(map[string]string)
	r.ID = ""
	// ID 格式不对按未提交处理，交给自然键匹配
	for _, key := range []string{"_id", "id"} {
		if v, ok, err := scalar(raw[key]); err == nil && ok && v != "" {
			r.ID = v
			break
		}
	}

	keys := append([]string{}, textKeys...)
	for _, f := range model.AllMoneyFields() {
		keys = append(keys, f.Key)
	}
	for _, key := range keys {
		v, ok, err := scalar(raw[key])
		if err != nil {
			return fmt.Errorf("字段 %s: %w", key, err)
		}
		if ok {
			r.values[key] = v
		}
	}
	return nil
}

// scalar 把字符串或数字读成字符串；缺失或 null 返回 ok=false
func scalar(msg json.RawMessage) (string, bool, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", false, nil
	}
	switch msg[0] {
	case '"':
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	default:
		var n json.Number
		if err := json.Unmarshal(msg, &n); err != nil {
			return "", false, fmt.Errorf("只接受字符串或数字")
		}
		return n.String(), true, nil
	}
}

func (r *BillRow) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *BillRow) StudentName() string {
	return r.values[keyName]
}

func (r *BillRow) AcademicYear() string {
	return r.values[keyAcademicYear]
}

func (r *BillRow) NaturalKey() model.NaturalKey {
	return model.NaturalKey{
		StudentName:  r.values[keyName],
		SchoolName:   r.values[keySchool],
		AcademicYear: r.values[keyAcademicYear],
	}
}

// ApplyTo 把提交的字段写到账单上，未提交的字段不动
func (r *BillRow) ApplyTo(b *model.Bill) {
	if v, ok := r.values[keyName]; ok {
		b.StudentName = v
	}
	if v, ok := r.values[keySchool]; ok {
		b.SchoolName = v
	}
	if v, ok := r.values[keyAcademicYear]; ok {
		b.AcademicYear = v
	}
	if v, ok := r.values[keySchoolType]; ok {
		b.SchoolType = model.SchoolType(v)
	}
	for _, f := range model.AllMoneyFields() {
		if v, ok := r.values[f.Key]; ok {
			f.Set(b, money.Normalize(v))
		}
	}
}

// NewBill 用提交的字段构造新账单，未提交的金额为 "0"
func (r *BillRow) NewBill() *model.Bill {
	b := &model.Bill{}
	for _, f := range model.AllMoneyFields() {
		f.Set(b, "0")
	}
	r.ApplyTo(b)
	return b
}
