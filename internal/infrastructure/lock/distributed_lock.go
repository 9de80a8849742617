package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么批量保存需要锁？】
//
// 新账单的序号 = 库里最大序号 + 行在批次中的位置 + 1。
//
// 如果没有锁，两个批次同时到达：
//   批次A: 读到最大序号=005 -> 新行分到 006、007
//   批次B: 读到最大序号=005 -> 新行也分到 006、007   序号重复了！
//
// 加锁后：
//   批次A: 获取锁 -> 读最大序号=005 -> 写入 006、007 -> 释放锁
//   批次B: 等待... -> 获取锁 -> 读最大序号=007 -> 写入 008
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（持有者崩溃时自动释放）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本先比较 value 再删除，保证原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const BatchSaveLockKey = "bills:lock:batch-save"

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// NewBatchSaveLock 批量保存锁，owner 由调用方生成（请求ID加随机后缀），便于追踪是哪个请求持有锁
func NewBatchSaveLock(client *redis.Client, owner string, expiration time.Duration) *DistributedLock {
	return NewDistributedLock(client, BatchSaveLockKey, owner, expiration)
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Unlock 释放锁
//
// 处理超时导致锁自动过期、被别的请求拿到后，原持有者的 Unlock 不会删掉新持有者的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}
