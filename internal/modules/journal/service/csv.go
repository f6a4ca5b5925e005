package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"fvg_bot/internal/models"
)

const (
	TradeFile  = "trade_history.csv"
	CandleFile = "candles.csv"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	tradeHeader  = []string{"Datetime", "Symbol", "Side", "Quantity", "Price", "Total", "P/L"}
	candleHeader = []string{"Datetime", "Index", "Symbol", "Open", "High", "Low", "Close", "Volume"}
)

// CSVSink appends to trade_history.csv and candles.csv in a directory.
type CSVSink struct {
	trades  *csvFile
	candles *csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir %s: %w", dir, err)
	}
	trades, err := openCSV(filepath.Join(dir, TradeFile), tradeHeader)
	if err != nil {
		return nil, err
	}
	candles, err := openCSV(filepath.Join(dir, CandleFile), candleHeader)
	if err != nil {
		_ = trades.f.Close()
		return nil, err
	}
	return &CSVSink{trades: trades, candles: candles}, nil
}

// openCSV appends to path, writing header only when the file is new or empty.
func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := cf.write(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return cf, nil
}

func (c *csvFile) write(rec []string) error {
	if err := c.w.Write(rec); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (s *CSVSink) AppendTrade(_ context.Context, t models.Trade) error {
	pl := ""
	if t.PnL != nil {
		pl = money(*t.PnL)
	}
	return s.trades.write([]string{
		t.Time.Format(timeLayout),
		t.Symbol,
		string(t.Side),
		strconv.FormatFloat(t.Quantity, 'f', -1, 64),
		money(t.Price),
		money(t.Total),
		pl,
	})
}

func (s *CSVSink) AppendCandle(_ context.Context, c models.Candle) error {
	return s.candles.write([]string{
		c.Time.Format(timeLayout),
		strconv.FormatInt(c.Index, 10),
		c.Symbol,
		num(c.Open), num(c.High), num(c.Low), num(c.Close),
		num(c.Volume),
	})
}

func (s *CSVSink) Close() error {
	err1 := s.trades.f.Close()
	err2 := s.candles.f.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func num(v float64) string   { return strconv.FormatFloat(v, 'f', -1, 64) }
