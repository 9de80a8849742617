package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"schoolbills/internal/model"
	"schoolbills/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore 记录按ID查询的次数
type countingStore struct {
	*repository.MemoryBillStore
	byID   int32
	failID error
}

func (s *countingStore) GetByID(ctx context.Context, id string) (*model.Bill, error) {
	atomic.AddInt32(&s.byID, 1)
	if s.failID != nil {
		return nil, s.failID
	}
	return s.MemoryBillStore.GetByID(ctx, id)
}

func TestIsValidBillID(t *testing.T) {
	cases := map[string]bool{
		"64b7f0c2a1b2c3d4e5f60718":  true,
		"64B7F0C2A1B2C3D4E5F60718":  true,
		"":                          false,
		"1712345678901":             false,
		"temp-64b7f0c2a1b2c3d4e5f6": false,
		"64b7f0c2a1b2c3d4e5f6071":   false,
		"64b7f0c2a1b2c3d4e5f607189": false,
		"64b7f0c2a1b2c3d4e5f6071z":  false,
	}
	for id, want := range cases {
		assert.Equal(t, want, IsValidBillID(id), id)
	}
}

func seedBill(t *testing.T, store *repository.MemoryBillStore, name string) *model.Bill {
	t.Helper()
	b := NewBillRow("", map[string]string{
		"name":         name,
		"school":       "St. Mary",
		"academicYear": "2025/2026",
		"schoolType":   "primary",
	}).NewBill()
	b.Serial = "001"
	require.NoError(t, store.Create(context.Background(), b, nil, nil))
	return b
}

func TestResolvePlaceholderNeverLooksUpByID(t *testing.T) {
	mem := repository.NewMemoryBillStore()
	existing := seedBill(t, mem, "Ada")
	store := &countingStore{MemoryBillStore: mem}

	for _, placeholder := range []string{"1712345678901", "temp-row-3", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		row := NewBillRow(placeholder, map[string]string{
			"name": "Ada", "school": "St. Mary", "academicYear": "2025/2026",
		})
		got, err := NewIdentityResolver(store).Resolve(context.Background(), row)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, existing.ID, got.ID)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.byID))
}

func TestResolveByIDFirst(t *testing.T) {
	mem := repository.NewMemoryBillStore()
	existing := seedBill(t, mem, "Ada")
	seedBill(t, mem, "Grace")
	store := &countingStore{MemoryBillStore: mem}

	// 即使自然键指向另一条，ID 命中时以ID为准
	row := NewBillRow(existing.ID, map[string]string{
		"name": "Grace", "school": "St. Mary", "academicYear": "2025/2026",
	})
	got, err := NewIdentityResolver(store).Resolve(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.byID))
}

func TestResolveUnknownIDFallsBackToNaturalKey(t *testing.T) {
	mem := repository.NewMemoryBillStore()
	existing := seedBill(t, mem, "Ada")

	row := NewBillRow(model.NewBillID(), map[string]string{
		"name": "Ada", "school": "St. Mary", "academicYear": "2025/2026",
	})
	got, err := NewIdentityResolver(mem).Resolve(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
}

func TestResolveNoMatch(t *testing.T) {
	mem := repository.NewMemoryBillStore()
	seedBill(t, mem, "Ada")

	row := NewBillRow("", map[string]string{
		"name": "Ada", "school": "Other School", "academicYear": "2025/2026",
	})
	got, err := NewIdentityResolver(mem).Resolve(context.Background(), row)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	store := &countingStore{MemoryBillStore: repository.NewMemoryBillStore(), failID: errors.New("connection refused")}

	row := NewBillRow(model.NewBillID(), map[string]string{"name": "Ada"})
	_, err := NewIdentityResolver(store).Resolve(context.Background(), row)
	assert.ErrorContains(t, err, "connection refused")
}
