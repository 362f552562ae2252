package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/sales-analytics/internal/model"
)

func line(sellerID string, profit int64, top ...model.TopProduct) model.SellerReport {
	return model.SellerReport{
		SellerID:    sellerID,
		Name:        "Name " + sellerID,
		Revenue:     decimal.NewFromInt(profit * 2),
		Profit:      decimal.NewFromInt(profit),
		SalesCount:  1,
		TopProducts: top,
		Bonus:       decimal.Zero,
	}
}

func newReport(id string, at time.Time, sellers ...model.SellerReport) *model.Report {
	return model.NewReport(id, at, len(sellers), sellers)
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := newReport("r1", at, line("s1", 100, model.TopProduct{SKU: "A", Quantity: 3}), line("s2", 50))

	require.NoError(t, ms.SaveReport(ctx, r))

	got, err := ms.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 2, got.SellerCount)
	assert.True(t, got.TotalProfit.Equal(decimal.NewFromInt(150)))
	require.Len(t, got.Sellers, 2)
	assert.Equal(t, "s1", got.Sellers[0].SellerID)

	// Mutating the returned copy must not leak into the store.
	got.Sellers[0].TopProducts[0].Quantity = 99
	again, _ := ms.GetReport(ctx, "r1")
	assert.Equal(t, 3, again.Sellers[0].TopProducts[0].Quantity)
}

func TestMemoryStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	r := newReport("r1", time.Now(), line("s1", 1))

	require.NoError(t, ms.SaveReport(ctx, r))
	assert.Error(t, ms.SaveReport(ctx, r))
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore().GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ms.SaveReport(ctx, newReport("old", base, line("s1", 1))))
	require.NoError(t, ms.SaveReport(ctx, newReport("new", base.Add(time.Hour), line("s1", 2))))

	list, err := ms.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.Nil(t, list[0].Sellers, "list returns headers only")
}

func TestMemoryStore_SellerHistory(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ms.SaveReport(ctx, newReport("r1", base, line("s1", 10), line("s2", 5))))
	require.NoError(t, ms.SaveReport(ctx, newReport("r2", base.Add(time.Hour), line("s2", 20), line("s1", 15))))
	require.NoError(t, ms.SaveReport(ctx, newReport("r3", base.Add(2*time.Hour), line("s3", 1))))

	history, err := ms.GetSellerHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "r1", history[0].ReportID)
	assert.Equal(t, 0, history[0].Rank)
	assert.Equal(t, "r2", history[1].ReportID)
	assert.Equal(t, 1, history[1].Rank)
	assert.True(t, history[1].Profit.Equal(decimal.NewFromInt(15)))

	none, err := ms.GetSellerHistory(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// With Redis unreachable the cached store degrades to the primary.
func TestCachedStore_FallsBackToPrimary(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	primary := NewMemoryStore()
	cs := NewCachedStore(primary, rdb, time.Minute)

	r := newReport("r1", time.Now().UTC(), line("s1", 10))
	require.NoError(t, cs.SaveReport(ctx, r))

	got, err := cs.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	history, err := cs.GetSellerHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	list, err := cs.ListReports(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = cs.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
