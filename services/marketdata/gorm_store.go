package marketdata

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tradepulse_backend/models"
)

// GormCandleStore reads candles from the candle_records table.
type GormCandleStore struct {
	db *gorm.DB
}

// NewGormCandleStore creates a candle store backed by the given database.
func NewGormCandleStore(db *gorm.DB) *GormCandleStore {
	return &GormCandleStore{db: db}
}

func (s *GormCandleStore) Latest(ctx context.Context, platform, symbol string, tf models.Timeframe) (*models.Candle, error) {
	var row models.CandleRecord
	err := s.db.WithContext(ctx).
		Where("platform = ? AND symbol = ? AND timeframe = ?", platform, symbol, string(tf)).
		Order("timestamp DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	candle := row.ToCandle()
	return &candle, nil
}

func (s *GormCandleStore) At(ctx context.Context, platform, symbol string, tf models.Timeframe, ts time.Time) (*models.Candle, error) {
	var row models.CandleRecord
	err := s.db.WithContext(ctx).
		Where("platform = ? AND symbol = ? AND timeframe = ? AND timestamp = ?", platform, symbol, string(tf), ts).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	candle := row.ToCandle()
	return &candle, nil
}

func (s *GormCandleStore) Range(ctx context.Context, platform, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var rows []models.CandleRecord
	err := s.db.WithContext(ctx).
		Where("platform = ? AND symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?",
			platform, symbol, string(tf), from, to).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, row.ToCandle())
	}
	return candles, nil
}
