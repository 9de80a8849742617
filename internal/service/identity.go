package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"schoolbills/internal/model"
	"schoolbills/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var billIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsValidBillID 账单ID必须是24位十六进制的 ObjectID
// 客户端给新行分配的临时ID（时间戳等）在这里被拦下，永远不会拿去按ID查库
func IsValidBillID(id string) bool {
	if !billIDPattern.MatchString(id) {
		return false
	}
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// normalizeBillID 合法时返回小写形式
func normalizeBillID(id string) (string, bool) {
	if !IsValidBillID(id) {
		return "", false
	}
	return strings.ToLower(id), true
}

// IdentityResolver 把提交的一行匹配到库里已有的账单
//
// 顺序：
//  1. ID 合法时按ID查找
//  2. 否则（或按ID没找到）按 (姓名, 学校, 学年) 查找
//  3. 都没找到返回 nil，表示需要新建
type IdentityResolver struct {
	store BillStore
}

func NewIdentityResolver(store BillStore) *IdentityResolver {
	return &IdentityResolver{store: store}
}

// Resolve 未匹配返回 (nil, nil)；只有存储层故障才返回错误
func (r *IdentityResolver) Resolve(ctx context.Context, row *BillRow) (*model.Bill, error) {
	if id, ok := normalizeBillID(row.ID); ok {
		bill, err := r.store.GetByID(ctx, id)
		if err == nil {
			return bill, nil
		}
		if !errors.Is(err, repository.ErrBillNotFound) {
			return nil, fmt.Errorf("按ID查询账单失败: %w", err)
		}
	}

	bill, err := r.store.GetByNaturalKey(ctx, row.NaturalKey())
	if err != nil {
		if errors.Is(err, repository.ErrBillNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("按姓名学校学年查询账单失败: %w", err)
	}
	return bill, nil
}
