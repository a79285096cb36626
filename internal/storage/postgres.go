package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"florist-bot/internal/catalog"
	"florist-bot/internal/config"
	"florist-bot/pkg/redis"
)

const (
	orderStatsKey = "order_stats"

	// pq error code for foreign_key_violation.
	foreignKeyViolation = "23503"
)

// PostgresStorage is the catalog store. Products are read through an
// optional Redis cache; a nil cache disables caching.
type PostgresStorage struct {
	db       *sqlx.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

type productRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Category    string         `db:"budget_category"`
	Price       string         `db:"price"`
	Description string         `db:"description"`
	Photos      pq.StringArray `db:"photos"`
}

func (r productRow) toProduct() catalog.Product {
	return catalog.Product{
		ID:          r.ID,
		Name:        r.Name,
		Category:    catalog.Category(r.Category),
		Price:       r.Price,
		Description: r.Description,
		Photos:      []string(r.Photos),
	}
}

const productColumns = `id, name, budget_category, price, description, photos`

func NewPostgresStorage(
	ctx context.Context,
	cfg config.Database,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *zap.Logger,
) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	var db *sqlx.DB

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err := backoff.RetryNotify(
		func() error {
			var err error
			db, err = sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				_ = db.Close()
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return New(db, cache, cacheTTL, logger), nil
}

// New wraps an open connection.
func New(db *sqlx.DB, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// DB exposes the connection for migrations.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FindProduct returns the product at offset within the category, ordered
// by id so that offsets are stable between calls.
func (s *PostgresStorage) FindProduct(ctx context.Context, category catalog.Category, offset int) (catalog.Product, error) {
	const operation = "storage.FindProduct"

	if offset < 0 {
		return catalog.Product{}, fmt.Errorf("%s: %w", operation, catalog.ErrProductNotFound)
	}

	const query = `SELECT ` + productColumns + `
		FROM products
		WHERE budget_category = $1
		ORDER BY id
		LIMIT 1 OFFSET $2`

	var row productRow
	err := s.db.GetContext(ctx, &row, query, string(category), offset)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, fmt.Errorf("%s: %s at %d: %w", operation, category, offset, catalog.ErrProductNotFound)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("%s: %w", operation, err)
	}

	return row.toProduct(), nil
}

func (s *PostgresStorage) CountProducts(ctx context.Context, category catalog.Category) (int, error) {
	const operation = "storage.CountProducts"

	cacheKey := fmt.Sprintf("products:count:%s", category)
	var count int
	if s.cacheGet(ctx, cacheKey, &count) {
		return count, nil
	}

	const query = `SELECT COUNT(*) FROM products WHERE budget_category = $1`
	if err := s.db.GetContext(ctx, &count, query, string(category)); err != nil {
		return 0, fmt.Errorf("%s: %w", operation, err)
	}

	s.cacheSet(ctx, cacheKey, count)
	return count, nil
}

func (s *PostgresStorage) Product(ctx context.Context, productID int64) (catalog.Product, error) {
	const operation = "storage.Product"

	cacheKey := fmt.Sprintf("product:%d", productID)
	var product catalog.Product
	if s.cacheGet(ctx, cacheKey, &product) {
		return product, nil
	}

	const query = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var row productRow
	err := s.db.GetContext(ctx, &row, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, fmt.Errorf("%s: product %d: %w", operation, productID, catalog.ErrProductNotFound)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("%s: %w", operation, err)
	}

	product = row.toProduct()
	s.cacheSet(ctx, cacheKey, product)
	return product, nil
}

// ProductDisplayName resolves the name shown for a product, applying the
// category override rule.
func (s *PostgresStorage) ProductDisplayName(ctx context.Context, productID int64) (string, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return "", err
	}
	return p.DisplayName(), nil
}

func (s *PostgresStorage) CreateOrder(ctx context.Context, order catalog.NewOrder) (int64, error) {
	const operation = "storage.CreateOrder"

	const query = `
		INSERT INTO orders (user_id, user_name, phone, address, delivery_date, product_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var orderID int64
	err := s.db.QueryRowContext(ctx, query,
		order.CustomerID,
		order.CustomerName,
		order.Phone,
		order.Address,
		order.DeliveryDate,
		order.ProductID,
		string(catalog.StatusNew),
	).Scan(&orderID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return 0, fmt.Errorf("%s: product %d: %w", operation, order.ProductID, catalog.ErrProductNotFound)
		}
		return 0, fmt.Errorf("%s: failed to save order: %w", operation, err)
	}

	s.cacheDel(ctx, orderStatsKey)
	return orderID, nil
}

// MarkOrderCompleted is idempotent: completing a completed order succeeds
// without touching it and reports false.
func (s *PostgresStorage) MarkOrderCompleted(ctx context.Context, orderID int64) (bool, error) {
	const operation = "storage.MarkOrderCompleted"

	const query = `
		UPDATE orders
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3`

	res, err := s.db.ExecContext(ctx, query, string(catalog.StatusCompleted), orderID, string(catalog.StatusNew))
	if err != nil {
		return false, fmt.Errorf("%s: %w", operation, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if affected > 0 {
		s.cacheDel(ctx, orderStatsKey)
		return true, nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID); err != nil {
		return false, fmt.Errorf("%s: %w", operation, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: order %d: %w", operation, orderID, catalog.ErrOrderNotFound)
	}
	return false, nil
}

type orderRow struct {
	ID           int64        `db:"id"`
	UserID       int64        `db:"user_id"`
	UserName     string       `db:"user_name"`
	Phone        string       `db:"phone"`
	Address      string       `db:"address"`
	DeliveryDate string       `db:"delivery_date"`
	ProductID    int64        `db:"product_id"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
	ProductName  string       `db:"product_name"`
	Category     string       `db:"budget_category"`
}

// OrderRecord is an order joined with the product it refers to.
type OrderRecord struct {
	catalog.Order
	ProductName string
}

func (r orderRow) toRecord() OrderRecord {
	rec := OrderRecord{
		Order: catalog.Order{
			ID:           r.ID,
			CustomerID:   r.UserID,
			CustomerName: r.UserName,
			Phone:        r.Phone,
			Address:      r.Address,
			DeliveryDate: r.DeliveryDate,
			ProductID:    r.ProductID,
			Status:       catalog.OrderStatus(r.Status),
			CreatedAt:    r.CreatedAt,
		},
		ProductName: catalog.DisplayName(catalog.Category(r.Category), r.ProductName),
	}
	if r.CompletedAt.Valid {
		rec.CompletedAt = r.CompletedAt.Time
	}
	return rec
}

// ListOrders returns every order, newest first.
func (s *PostgresStorage) ListOrders(ctx context.Context) ([]OrderRecord, error) {
	const operation = "storage.ListOrders"

	const query = `
		SELECT o.id, o.user_id, o.user_name, o.phone, o.address, o.delivery_date,
		       o.product_id, o.status, o.created_at, o.completed_at,
		       p.name AS product_name, p.budget_category
		FROM orders o
		JOIN products p ON p.id = o.product_id
		ORDER BY o.id DESC`

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: failed to fetch orders: %w", operation, err)
	}

	records := make([]OrderRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

type OrderStats struct {
	Total    int                         `json:"total"`
	Today    int                         `json:"today"`
	ByStatus map[catalog.OrderStatus]int `json:"by_status"`
}

func (s *PostgresStorage) OrderStats(ctx context.Context) (OrderStats, error) {
	const operation = "storage.OrderStats"

	var stats OrderStats
	if s.cacheGet(ctx, orderStatsKey, &stats) {
		return stats, nil
	}

	stats.ByStatus = make(map[catalog.OrderStatus]int)

	var counts []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`)
	if err != nil {
		return OrderStats{}, fmt.Errorf("%s: failed to get status counts: %w", operation, err)
	}
	for _, c := range counts {
		stats.ByStatus[catalog.OrderStatus(c.Status)] = c.Count
		stats.Total += c.Count
	}

	err = s.db.GetContext(ctx, &stats.Today, `SELECT COUNT(*) FROM orders WHERE created_at >= CURRENT_DATE`)
	if err != nil {
		return OrderStats{}, fmt.Errorf("%s: failed to get today's orders: %w", operation, err)
	}

	s.cacheSet(ctx, orderStatsKey, stats)
	return stats, nil
}

func (s *PostgresStorage) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.GetJSON(ctx, key, dst)
	if err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		s.logger.Debug("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

func (s *PostgresStorage) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, v, s.cacheTTL); err != nil {
		s.logger.Debug("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *PostgresStorage) cacheDel(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key); err != nil {
		s.logger.Debug("Cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
