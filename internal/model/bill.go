package model

import (
	"time"

	"schoolbills/pkg/money"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// ============================================================================
// 学段类型
// ============================================================================

type SchoolType string

const (
	SchoolTypePrimary    SchoolType = "primary"
	SchoolTypeSecondary  SchoolType = "secondary"
	SchoolTypeUniversity SchoolType = "university"
)

// SchoolTypes 固定顺序，遍历资助字段时按这个顺序
var SchoolTypes = []SchoolType{SchoolTypePrimary, SchoolTypeSecondary, SchoolTypeUniversity}

func (t SchoolType) Valid() bool {
	switch t {
	case SchoolTypePrimary, SchoolTypeSecondary, SchoolTypeUniversity:
		return true
	}
	return false
}

// ============================================================================
// 账单实体
// ============================================================================

// Bill 学生学费账单表（一个学生一个学年一条）
//
// 【存储形态】平铺：三种学段的账期字段同时存在，只有 SchoolType 对应的那一组有业务含义。
// 领域层通过 Variant() 拿到按学段区分的视图，见 variant.go。
//
// 【重要】
// 1. 金额字段全部是十进制字符串，算术前必须经过 money.ParseOrZero
// 2. Serial 只在创建时分配一次，更新时永不重算
// 3. Payments 只追加，不修改，不删除
// 4. (StudentName, SchoolName, AcademicYear) 是自然键，数据库不做唯一约束
type Bill struct {
	ID           string     `gorm:"type:char(24);primaryKey" json:"_id"`
	Serial       string     `gorm:"column:sn;type:varchar(16);not null;index:idx_bill_sn" json:"sn"`
	StudentName  string     `gorm:"column:name;type:varchar(128);not null;index:idx_bill_natural_key,priority:1" json:"name" validate:"required,max=128"`
	SchoolName   string     `gorm:"column:school;type:varchar(128);not null;default:'';index:idx_bill_natural_key,priority:2" json:"school" validate:"max=128"`
	AcademicYear string     `gorm:"column:academic_year;type:varchar(32);not null;default:'';index:idx_bill_natural_key,priority:3;index:idx_bill_academic_year" json:"academicYear" validate:"max=32"`
	SchoolType   SchoolType `gorm:"column:school_type;type:varchar(16);not null" json:"schoolType" validate:"required,oneof=primary secondary university"`
	AmountPaid   string     `gorm:"column:amt_paid;type:varchar(32);not null;default:'0'" json:"amtPaid" validate:"max=32,ledger_amount"`

	// 小学三个学期
	Primary1stTerm string `gorm:"column:primary_1st_term;type:varchar(32);not null;default:'0'" json:"primary1stTerm" validate:"max=32"`
	Primary2ndTerm string `gorm:"column:primary_2nd_term;type:varchar(32);not null;default:'0'" json:"primary2ndTerm" validate:"max=32"`
	Primary3rdTerm string `gorm:"column:primary_3rd_term;type:varchar(32);not null;default:'0'" json:"primary3rdTerm" validate:"max=32"`
	// 中学三个学期
	Secondary1stTerm string `gorm:"column:secondary_1st_term;type:varchar(32);not null;default:'0'" json:"secondary1stTerm" validate:"max=32"`
	Secondary2ndTerm string `gorm:"column:secondary_2nd_term;type:varchar(32);not null;default:'0'" json:"secondary2ndTerm" validate:"max=32"`
	Secondary3rdTerm string `gorm:"column:secondary_3rd_term;type:varchar(32);not null;default:'0'" json:"secondary3rdTerm" validate:"max=32"`
	// 大学两个学期
	University1stSemester string `gorm:"column:university_1st_semester;type:varchar(32);not null;default:'0'" json:"university1stSemester" validate:"max=32"`
	University2ndSemester string `gorm:"column:university_2nd_semester;type:varchar(32);not null;default:'0'" json:"university2ndSemester" validate:"max=32"`

	// 每个账期的资助金额（实际缴纳）
	AssistPrimary1stTerm        string `gorm:"column:assist_primary_1st_term;type:varchar(32);not null;default:'0'" json:"assistPrimary1stTerm" validate:"max=32,ledger_amount"`
	AssistPrimary2ndTerm        string `gorm:"column:assist_primary_2nd_term;type:varchar(32);not null;default:'0'" json:"assistPrimary2ndTerm" validate:"max=32,ledger_amount"`
	AssistPrimary3rdTerm        string `gorm:"column:assist_primary_3rd_term;type:varchar(32);not null;default:'0'" json:"assistPrimary3rdTerm" validate:"max=32,ledger_amount"`
	AssistSecondary1stTerm      string `gorm:"column:assist_secondary_1st_term;type:varchar(32);not null;default:'0'" json:"assistSecondary1stTerm" validate:"max=32,ledger_amount"`
	AssistSecondary2ndTerm      string `gorm:"column:assist_secondary_2nd_term;type:varchar(32);not null;default:'0'" json:"assistSecondary2ndTerm" validate:"max=32,ledger_amount"`
	AssistSecondary3rdTerm      string `gorm:"column:assist_secondary_3rd_term;type:varchar(32);not null;default:'0'" json:"assistSecondary3rdTerm" validate:"max=32,ledger_amount"`
	AssistUniversity1stSemester string `gorm:"column:assist_university_1st_semester;type:varchar(32);not null;default:'0'" json:"assistUniversity1stSemester" validate:"max=32,ledger_amount"`
	AssistUniversity2ndSemester string `gorm:"column:assist_university_2nd_semester;type:varchar(32);not null;default:'0'" json:"assistUniversity2ndSemester" validate:"max=32,ledger_amount"`

	PaymentDate *time.Time    `gorm:"column:payment_date" json:"paymentDate,omitempty"`
	Payments    []BillPayment `gorm:"foreignKey:BillID;references:ID" json:"payments"`
	CreatedAt   time.Time     `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Bill) TableName() string {
	return "bill"
}

// BeforeCreate 由存储层分配 24 位十六进制的 ObjectID
func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = NewBillID()
	}
	return nil
}

// NewBillID 生成新的账单ID
func NewBillID() string {
	return primitive.NewObjectID().Hex()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// amtPaid 和资助字段的增量会写进流水表 decimal(15,2) 的金额列
	_ = v.RegisterValidation("ledger_amount", func(fl validator.FieldLevel) bool {
		return money.FitsLedger(fl.Field().String())
	})
	return v
}

// Validate 字段校验（必填、枚举、长度、流水金额范围）
func (b *Bill) Validate() error {
	return validate.Struct(b)
}

// Clone 深拷贝，Payments 和 PaymentDate 不与原对象共享
func (b *Bill) Clone() *Bill {
	if b == nil {
		return nil
	}
	c := *b
	if b.PaymentDate != nil {
		t := *b.PaymentDate
		c.PaymentDate = &t
	}
	if b.Payments != nil {
		c.Payments = make([]BillPayment, len(b.Payments))
		copy(c.Payments, b.Payments)
	}
	return &c
}

// NaturalKey 自然键
type NaturalKey struct {
	StudentName  string
	SchoolName   string
	AcademicYear string
}

func (b *Bill) NaturalKey() NaturalKey {
	return NaturalKey{
		StudentName:  b.StudentName,
		SchoolName:   b.SchoolName,
		AcademicYear: b.AcademicYear,
	}
}
