package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/sales-analytics/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*model.Report
	order   []string // insertion order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*model.Report),
	}
}

func (s *MemoryStore) SaveReport(_ context.Context, r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("report %s already exists", r.ID)
	}

	// Store a copy to avoid external mutation.
	s.reports[r.ID] = cloneReport(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return cloneReport(r), nil
}

func (s *MemoryStore) ListReports(_ context.Context) ([]model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]model.Report, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		header := *s.reports[s.order[i]]
		header.Sellers = nil
		reports = append(reports, header)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

func (s *MemoryStore) GetSellerHistory(_ context.Context, sellerID string) ([]model.SellerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []model.SellerSnapshot
	for _, id := range s.order {
		r := s.reports[id]
		for rank, line := range r.Sellers {
			if line.SellerID != sellerID {
				continue
			}
			history = append(history, model.SellerSnapshot{
				ReportID:     r.ID,
				CreatedAt:    r.CreatedAt,
				Rank:         rank,
				SellerReport: cloneSeller(line),
			})
			break
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

func cloneReport(r *model.Report) *model.Report {
	c := *r
	if r.Sellers != nil {
		c.Sellers = make([]model.SellerReport, len(r.Sellers))
		for i, line := range r.Sellers {
			c.Sellers[i] = cloneSeller(line)
		}
	}
	return &c
}

func cloneSeller(line model.SellerReport) model.SellerReport {
	if line.TopProducts != nil {
		top := make([]model.TopProduct, len(line.TopProducts))
		copy(top, line.TopProducts)
		line.TopProducts = top
	}
	return line
}
