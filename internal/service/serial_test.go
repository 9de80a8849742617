package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialAllocator(t *testing.T) {
	a := NewSerialAllocator("005")
	assert.Equal(t, "006", a.Allocate(0))
	assert.Equal(t, "008", a.Allocate(2))

	assert.Equal(t, "001", NewSerialAllocator("").Allocate(0))
	assert.Equal(t, "001", NewSerialAllocator("n/a").Allocate(0))
	assert.Equal(t, "1000", NewSerialAllocator("999").Allocate(0))
	assert.Equal(t, "1001", NewSerialAllocator("1000").Allocate(0))
}
