// internal/storage/gormstore/store.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
	"github.com/rovshanmuradov/solana-portfolio/internal/storage"
)

// Config selects the database backend.
type Config struct {
	Type            string // sqlite, postgres, mysql
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
}

// Store implements storage.Storage on top of gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

// Open connects to the configured database.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	log = log.Named("storage")
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log, parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Store{db: db, logger: log}, nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// RunMigrations creates or updates the schema.
func (s *Store) RunMigrations() error {
	if err := s.db.AutoMigrate(&PortfolioRecord{}, &ActivityRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) LoadPortfolio(ctx context.Context, wallet string) (*portfolio.TrackedPortfolio, error) {
	var rec PortfolioRecord
	err := s.db.WithContext(ctx).Where("wallet = ?", wallet).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return rec.toDomain(), nil
}

func (s *Store) SavePortfolio(ctx context.Context, wallet string, p portfolio.TrackedPortfolio) error {
	rec := PortfolioRecord{
		Wallet:       wallet,
		SOLBalance:   p.SOLBalance,
		BittyBalance: p.BittyBalance,
		LastSource:   string(p.LastSource),
	}
	if p.LastUpdated != nil {
		t := p.LastUpdated.UTC()
		rec.LastUpdated = &t
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"sol_balance", "bitty_balance", "last_updated", "last_source", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

func (s *Store) SaveActivity(ctx context.Context, wallet string, e activity.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("activity entry without id")
	}
	rec := activityFromDomain(wallet, e)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "entry_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"occurred_at", "label", "detail", "status", "source", "link", "signature", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save activity %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) UpdateActivityStatus(ctx context.Context, wallet, id string, status activity.Status, detail string) error {
	updates := map[string]interface{}{"status": string(status)}
	if detail != "" {
		updates["detail"] = detail
	}
	res := s.db.WithContext(ctx).Model(&ActivityRecord{}).
		Where("wallet = ? AND entry_id = ?", wallet, id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update activity %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListActivity returns the most recent local entries, newest first.
// A non-positive limit returns everything.
func (s *Store) ListActivity(ctx context.Context, wallet string, limit int) ([]activity.Entry, error) {
	var recs []ActivityRecord
	q := s.db.WithContext(ctx).Where("wallet = ?", wallet).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	entries := make([]activity.Entry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

// DeleteActivityBefore removes entries with the given status whose timestamp
// precedes cutoff. Entries without a timestamp are kept.
func (s *Store) DeleteActivityBefore(ctx context.Context, wallet string, cutoff time.Time, status activity.Status) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("wallet = ? AND status = ? AND occurred_at IS NOT NULL AND occurred_at < ?", wallet, string(status), cutoff.UTC()).
		Delete(&ActivityRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Debug("Pruned activity",
			zap.String("wallet", wallet),
			zap.String("status", string(status)),
			zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
