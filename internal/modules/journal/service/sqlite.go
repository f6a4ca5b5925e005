package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fvg_bot/internal/models"
)

type TradeModel struct {
	ID       uint      `gorm:"primaryKey"`
	OrderID  string    `gorm:"size:64;uniqueIndex"`
	Time     time.Time `gorm:"not null;index"`
	Symbol   string    `gorm:"size:16;not null"`
	Side     string    `gorm:"size:4;not null"`
	Quantity float64   `gorm:"not null"`
	Price    float64   `gorm:"not null"`
	Total    float64   `gorm:"not null"`
	PnL      *float64
}

func (TradeModel) TableName() string { return "trades" }

type CandleModel struct {
	ID     uint      `gorm:"primaryKey"`
	Symbol string    `gorm:"size:16;not null;uniqueIndex:candle_sym_time,priority:1"`
	Time   time.Time `gorm:"not null;uniqueIndex:candle_sym_time,priority:2"`
	Index  int64     `gorm:"column:candle_index;not null"`
	Open   float64   `gorm:"not null"`
	High   float64   `gorm:"not null"`
	Low    float64   `gorm:"not null"`
	Close  float64   `gorm:"not null"`
	Volume float64   `gorm:"not null;default:0"`
}

func (CandleModel) TableName() string { return "candles" }

// GormSink journals through gorm; used with sqlite for local and backtest runs.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&TradeModel{}, &CandleModel{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &GormSink{db: db}, nil
}

func (s *GormSink) AppendTrade(ctx context.Context, t models.Trade) error {
	m := TradeModel{
		OrderID:  t.OrderID,
		Time:     t.Time,
		Symbol:   t.Symbol,
		Side:     string(t.Side),
		Quantity: t.Quantity,
		Price:    t.Price,
		Total:    t.Total,
		PnL:      t.PnL,
	}
	// backtest order ids repeat across runs
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (s *GormSink) AppendCandle(ctx context.Context, c models.Candle) error {
	m := CandleModel{
		Symbol: c.Symbol,
		Time:   c.Time,
		Index:  c.Index,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "time"}},
		DoUpdates: clause.AssignmentColumns([]string{"candle_index", "open", "high", "low", "close", "volume"}),
	}).Create(&m).Error
}

// Trades returns journaled trades for symbol in time order.
func (s *GormSink) Trades(ctx context.Context, symbol string) ([]models.Trade, error) {
	var rows []TradeModel
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("time, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Trade{
			Time:     r.Time,
			Symbol:   r.Symbol,
			Side:     models.Side(r.Side),
			Quantity: r.Quantity,
			Price:    r.Price,
			Total:    r.Total,
			PnL:      r.PnL,
			OrderID:  r.OrderID,
		})
	}
	return out, nil
}

func (s *GormSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
