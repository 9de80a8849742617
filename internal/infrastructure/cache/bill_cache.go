package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"schoolbills/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	listKeyPrefix = "bills:list:"
	// 不带学年过滤的列表
	listKeyAll = listKeyPrefix + "*all*"
)

// BillListCache 账单列表缓存（cache-aside）
// 写操作后按学年失效，同时失效全量列表
type BillListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBillListCache(client *redis.Client, ttl time.Duration) *BillListCache {
	return &BillListCache{client: client, ttl: ttl}
}

func listKey(academicYear string) string {
	if academicYear == "" {
		return listKeyAll
	}
	return listKeyPrefix + academicYear
}

// Get 命中返回 (bills, true, nil)，未命中返回 (nil, false, nil)
func (c *BillListCache) Get(ctx context.Context, academicYear string) ([]*model.Bill, bool, error) {
	raw, err := c.client.Get(ctx, listKey(academicYear)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var bills []*model.Bill
	if err := json.Unmarshal(raw, &bills); err != nil {
		return nil, false, err
	}
	return bills, true, nil
}

func (c *BillListCache) Set(ctx context.Context, academicYear string, bills []*model.Bill) error {
	raw, err := json.Marshal(bills)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(academicYear), raw, c.ttl).Err()
}

// Invalidate 失效指定学年和全量列表
func (c *BillListCache) Invalidate(ctx context.Context, academicYears ...string) error {
	keys := []string{listKeyAll}
	for _, y := range academicYears {
		if y != "" {
			keys = append(keys, listKey(y))
		}
	}
	return c.client.Del(ctx, keys...).Err()
}
