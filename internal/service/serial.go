package service

import (
	"fmt"
	"strconv"
	"strings"
)

// SerialAllocator 新账单序号分配
//
// 序号 = 批次开始时库里的最大序号 + 行在整个批次中的下标 + 1，至少补齐3位。
// 下标按整个批次算（包括更新的行），所以同一批次里的新账单序号可能不连续。
type SerialAllocator struct {
	base int64
}

// NewSerialAllocator lastSerial 为空或不是数字时从 0 开始
func NewSerialAllocator(lastSerial string) *SerialAllocator {
	base, err := strconv.ParseInt(strings.TrimSpace(lastSerial), 10, 64)
	if err != nil || base < 0 {
		base = 0
	}
	return &SerialAllocator{base: base}
}

func (a *SerialAllocator) Allocate(batchIndex int) string {
	return fmt.Sprintf("%03d", a.base+int64(batchIndex)+1)
}
