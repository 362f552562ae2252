package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/sales-analytics/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Reports never change after they are saved, so report entries only
// expire by TTL; seller histories are invalidated when a new report lands.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, populate/invalidate cache) ---

func (s *CachedStore) SaveReport(ctx context.Context, r *model.Report) error {
	if err := s.primary.SaveReport(ctx, r); err != nil {
		return err
	}
	s.cacheReport(ctx, r)

	// Every seller in the new report has a longer history now.
	if len(r.Sellers) > 0 {
		keys := make([]string, 0, len(r.Sellers))
		for _, line := range r.Sellers {
			keys = append(keys, historyKey(line.SellerID))
		}
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	data, err := s.rdb.Get(ctx, reportKey(id)).Bytes()
	if err == nil {
		var r model.Report
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheReport(ctx, r)
	return r, nil
}

func (s *CachedStore) GetSellerHistory(ctx context.Context, sellerID string) ([]model.SellerSnapshot, error) {
	data, err := s.rdb.Get(ctx, historyKey(sellerID)).Bytes()
	if err == nil {
		var history []model.SellerSnapshot
		if json.Unmarshal(data, &history) == nil {
			return history, nil
		}
	}

	history, err := s.primary.GetSellerHistory(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(history); err == nil {
		s.rdb.Set(ctx, historyKey(sellerID), data, s.ttl)
	}
	return history, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListReports(ctx context.Context) ([]model.Report, error) {
	return s.primary.ListReports(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheReport(ctx context.Context, r *model.Report) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, reportKey(r.ID), data, s.ttl)
	}
}

func reportKey(id string) string        { return fmt.Sprintf("report:%s", id) }
func historyKey(sellerID string) string { return fmt.Sprintf("seller_history:%s", sellerID) }
