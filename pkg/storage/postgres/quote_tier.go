package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papertrade/internal/quote"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteTier is the shared cache tier backed by stock_quotes and
// stock_historical_data. It also records collected snapshots.
type QuoteTier struct {
	client *PostgresClient
	now    func() time.Time
}

func NewQuoteTier(client *PostgresClient, now func() time.Time) *QuoteTier {
	if now == nil {
		now = time.Now
	}
	return &QuoteTier{client: client, now: now}
}

func (t *QuoteTier) GetQuote(ctx context.Context, symbol string) (quote.Quote, time.Time, error) {
	var rec QuoteRecord
	err := t.client.DB.WithContext(ctx).Where("symbol = ?", symbol).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quote.Quote{}, time.Time{}, quote.ErrNotCached
	}
	if err != nil {
		return quote.Quote{}, time.Time{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return rec.Quote(), rec.UpdatedAt, nil
}

func (t *QuoteTier) PutQuote(ctx context.Context, q quote.Quote) error {
	rec := ToQuoteRecord(q, t.now())
	return t.client.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func (t *QuoteTier) DeleteQuote(ctx context.Context, symbol string) error {
	return t.client.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Delete(&QuoteRecord{}).Error
}

func (t *QuoteTier) GetSeries(ctx context.Context, key string) ([]quote.Bar, quote.Source, time.Time, error) {
	var recs []HistoricalBarRecord
	err := t.client.DB.WithContext(ctx).
		Where("cache_key = ?", key).
		Order("timestamp").
		Find(&recs).Error
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("get series %s: %w", key, err)
	}
	if len(recs) == 0 {
		return nil, "", time.Time{}, quote.ErrNotCached
	}

	bars := make([]quote.Bar, len(recs))
	fetchedAt := recs[0].FetchedAt
	for i, r := range recs {
		bars[i] = r.Bar()
		if r.FetchedAt.Before(fetchedAt) {
			fetchedAt = r.FetchedAt
		}
	}
	return bars, quote.Source(recs[0].Source), fetchedAt, nil
}

// PutSeries replaces the stored series for key.
func (t *QuoteTier) PutSeries(ctx context.Context, key string, bars []quote.Bar, source quote.Source) error {
	symbol, _, _ := strings.Cut(key, ":")
	recs := ToBarRecords(key, symbol, bars, source, t.now())

	return t.client.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_key = ?", key).Delete(&HistoricalBarRecord{}).Error; err != nil {
			return fmt.Errorf("clear series %s: %w", key, err)
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}, {Name: "timestamp"}},
			UpdateAll: true,
		}).CreateInBatches(&recs, 500).Error
	})
}

// InsertSnapshot records one collected quote.
func (t *QuoteTier) InsertSnapshot(ctx context.Context, q quote.Quote) error {
	rec := QuoteSnapshotRecord{
		Symbol:        q.Symbol,
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		Volume:        q.Volume,
		Source:        string(q.Source),
		CapturedAt:    t.now(),
	}
	if err := t.client.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert snapshot %s: %w", q.Symbol, err)
	}
	return nil
}

// Purge deletes quotes, snapshots and series captured before the given time
// and returns the number of rows removed.
func (t *QuoteTier) Purge(ctx context.Context, before time.Time) (int64, error) {
	db := t.client.DB.WithContext(ctx)
	var total int64

	res := db.Where("updated_at < ?", before).Delete(&QuoteRecord{})
	if res.Error != nil {
		return total, fmt.Errorf("purge quotes: %w", res.Error)
	}
	total += res.RowsAffected

	res = db.Where("captured_at < ?", before).Delete(&QuoteSnapshotRecord{})
	if res.Error != nil {
		return total, fmt.Errorf("purge snapshots: %w", res.Error)
	}
	total += res.RowsAffected

	res = db.Where("fetched_at < ?", before).Delete(&HistoricalBarRecord{})
	if res.Error != nil {
		return total, fmt.Errorf("purge series: %w", res.Error)
	}
	total += res.RowsAffected

	return total, nil
}
