package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-analytics/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Schema: migrations/001_reports.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SaveReport writes the header and all seller lines in one transaction.
func (s *PostgresStore) SaveReport(ctx context.Context, r *model.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save report %s: %w", r.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO reports (id, created_at, seller_count, record_count, total_revenue, total_profit, total_bonus)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC)`,
		r.ID, r.CreatedAt, r.SellerCount, r.RecordCount,
		r.TotalRevenue.String(), r.TotalProfit.String(), r.TotalBonus.String(),
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}

	batch := &pgx.Batch{}
	for rank, line := range r.Sellers {
		top, err := json.Marshal(line.TopProducts)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO report_sellers (report_id, rank, seller_id, name, revenue, profit, sales_count, bonus, top_products)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8::NUMERIC, $9::JSONB)`,
			r.ID, rank, line.SellerID, line.Name,
			line.Revenue.String(), line.Profit.String(), line.SalesCount, line.Bonus.String(),
			string(top),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert seller lines for report %s: %w", r.ID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var r model.Report
	var revenue, profit, bonus string

	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, seller_count, record_count,
		        total_revenue::TEXT, total_profit::TEXT, total_bonus::TEXT
		 FROM reports WHERE id = $1`, id).
		Scan(&r.ID, &r.CreatedAt, &r.SellerCount, &r.RecordCount, &revenue, &profit, &bonus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	r.TotalRevenue, _ = decimal.NewFromString(revenue)
	r.TotalProfit, _ = decimal.NewFromString(profit)
	r.TotalBonus, _ = decimal.NewFromString(bonus)

	rows, err := s.pool.Query(ctx,
		`SELECT rank, seller_id, name, revenue::TEXT, profit::TEXT, sales_count, bonus::TEXT, top_products::TEXT
		 FROM report_sellers WHERE report_id = $1 ORDER BY rank`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rank int
		line, err := scanSellerLine(rows, &rank)
		if err != nil {
			return nil, err
		}
		r.Sellers = append(r.Sellers, line)
	}
	return &r, rows.Err()
}

func (s *PostgresStore) ListReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, seller_count, record_count,
		        total_revenue::TEXT, total_profit::TEXT, total_bonus::TEXT
		 FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var revenue, profit, bonus string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.SellerCount, &r.RecordCount,
			&revenue, &profit, &bonus); err != nil {
			return nil, err
		}
		r.TotalRevenue, _ = decimal.NewFromString(revenue)
		r.TotalProfit, _ = decimal.NewFromString(profit)
		r.TotalBonus, _ = decimal.NewFromString(bonus)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) GetSellerHistory(ctx context.Context, sellerID string) ([]model.SellerSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.created_at,
		        rs.rank, rs.seller_id, rs.name, rs.revenue::TEXT, rs.profit::TEXT,
		        rs.sales_count, rs.bonus::TEXT, rs.top_products::TEXT
		 FROM report_sellers rs
		 JOIN reports r ON r.id = rs.report_id
		 WHERE rs.seller_id = $1
		 ORDER BY r.created_at`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.SellerSnapshot
	for rows.Next() {
		var snap model.SellerSnapshot
		var revenue, profit, bonus, top string
		if err := rows.Scan(&snap.ReportID, &snap.CreatedAt,
			&snap.Rank, &snap.SellerID, &snap.Name, &revenue, &profit,
			&snap.SalesCount, &bonus, &top); err != nil {
			return nil, err
		}
		if err := decodeMoney(&snap.SellerReport, revenue, profit, bonus, top); err != nil {
			return nil, err
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

// pgxRows is the subset of pgx.Rows used by the scan helpers.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSellerLine(rows pgxRows, rank *int) (model.SellerReport, error) {
	var line model.SellerReport
	var revenue, profit, bonus, top string

	if err := rows.Scan(rank, &line.SellerID, &line.Name, &revenue, &profit,
		&line.SalesCount, &bonus, &top); err != nil {
		return line, err
	}
	err := decodeMoney(&line, revenue, profit, bonus, top)
	return line, err
}

func decodeMoney(line *model.SellerReport, revenue, profit, bonus, top string) error {
	line.Revenue, _ = decimal.NewFromString(revenue)
	line.Profit, _ = decimal.NewFromString(profit)
	line.Bonus, _ = decimal.NewFromString(bonus)
	if err := json.Unmarshal([]byte(top), &line.TopProducts); err != nil {
		return fmt.Errorf("decode top products for seller %s: %w", line.SellerID, err)
	}
	return nil
}
