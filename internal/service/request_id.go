package service

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID 把请求ID放进 context，供锁持有者标识和日志使用
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// lockOwner 请求ID加随机后缀：能追踪到请求，客户端重复使用同一个请求ID时也不会误释放别人的锁
func lockOwner(ctx context.Context) string {
	suffix := uuid.NewString()
	if id := RequestIDFrom(ctx); id != "" {
		return id + ":" + suffix
	}
	return suffix
}
