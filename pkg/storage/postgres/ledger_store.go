package postgres

import (
	"context"
	"errors"
	"fmt"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore persists portfolios across the simulator tables.
type LedgerStore struct {
	client *PostgresClient
}

func NewLedgerStore(client *PostgresClient) *LedgerStore {
	return &LedgerStore{client: client}
}

// Load returns the stored portfolio for owner, or a fresh unsaved one.
func (s *LedgerStore) Load(ctx context.Context, owner string, startingCash decimal.Decimal) (*ledger.Portfolio, error) {
	db := s.client.DB.WithContext(ctx)

	var rec PortfolioRecord
	err := db.Where("owner = ?", owner).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.New(startingCash), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load portfolio %s: %w", owner, err)
	}

	var holdings []HoldingRecord
	if err := db.Where("portfolio_id = ?", rec.ID).Order("symbol").Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("load holdings %s: %w", owner, err)
	}

	var trades []TradeRecord
	if err := db.Where("portfolio_id = ?", rec.ID).Order("seq DESC").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("load trades %s: %w", owner, err)
	}

	return ToPortfolio(rec, holdings, trades), nil
}

// Save writes p in one transaction. The stored version must equal p.Version.
func (s *LedgerStore) Save(ctx context.Context, owner string, p *ledger.Portfolio) error {
	err := s.client.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := bumpVersion(tx, owner, p)
		if err != nil {
			return err
		}

		if err := tx.Where("portfolio_id = ?", rec.ID).Delete(&HoldingRecord{}).Error; err != nil {
			return fmt.Errorf("clear holdings: %w", err)
		}
		if holdings := ToHoldingRecords(rec.ID, p); len(holdings) > 0 {
			if err := tx.Create(&holdings).Error; err != nil {
				return fmt.Errorf("insert holdings: %w", err)
			}
		}

		trades := ToTradeRecords(rec.ID, p)
		if len(trades) == 0 {
			if err := tx.Where("portfolio_id = ?", rec.ID).Delete(&TradeRecord{}).Error; err != nil {
				return fmt.Errorf("clear trades: %w", err)
			}
			return nil
		}

		ids := make([]string, len(trades))
		for i, t := range trades {
			ids[i] = t.ID
		}
		if err := tx.Where("portfolio_id = ? AND id NOT IN ?", rec.ID, ids).Delete(&TradeRecord{}).Error; err != nil {
			return fmt.Errorf("prune trades: %w", err)
		}

		// Trades are immutable apart from their outcome.
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seq", "price_at_completion", "gain_loss", "gain_loss_percent"}),
		}).CreateInBatches(&trades, 200).Error
		if err != nil {
			return fmt.Errorf("upsert trades: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.Version++
	return nil
}

// bumpVersion advances the portfolio row from p.Version to p.Version+1,
// creating it when p has never been saved.
func bumpVersion(tx *gorm.DB, owner string, p *ledger.Portfolio) (PortfolioRecord, error) {
	next := p.Version + 1

	if p.Version == 0 {
		rec := PortfolioRecord{Owner: owner, Cash: p.Cash, StartingCash: p.StartingCash, Version: next}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return PortfolioRecord{}, fmt.Errorf("create portfolio: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return rec, nil
		}
		return PortfolioRecord{}, fmt.Errorf("%w: owner=%s already saved", ledger.ErrStaleVersion, owner)
	}

	res := tx.Model(&PortfolioRecord{}).
		Where("owner = ? AND version = ?", owner, p.Version).
		Updates(map[string]any{
			"cash":          p.Cash,
			"starting_cash": p.StartingCash,
			"version":       next,
		})
	if res.Error != nil {
		return PortfolioRecord{}, fmt.Errorf("update portfolio: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return PortfolioRecord{}, fmt.Errorf("%w: owner=%s version=%d", ledger.ErrStaleVersion, owner, p.Version)
	}

	var rec PortfolioRecord
	if err := tx.Where("owner = ?", owner).First(&rec).Error; err != nil {
		return PortfolioRecord{}, fmt.Errorf("reload portfolio: %w", err)
	}
	return rec, nil
}
