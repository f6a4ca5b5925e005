package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"fvg_bot/internal/models"
)

// CSVSource reads bars from a file with headers
// time|timestamp|date|datetime, open, high, low, close, volume.
type CSVSource struct {
	Path   string
	OnSkip SkipFunc
}

func NewCSVSource(path string, onSkip SkipFunc) *CSVSource {
	return &CSVSource{Path: path, OnSkip: onSkip}
}

func (s *CSVSource) Bars(ctx context.Context, symbol, _ string, start, end time.Time) ([]models.Bar, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", s.Path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f, symbol, s.OnSkip)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", s.Path, err)
	}
	return filterRange(bars, start, end), ctx.Err()
}

// ReadCSV parses rows into bars sorted by time. Rows with missing or
// unparsable fields are reported to onSkip and dropped.
func ReadCSV(r io.Reader, symbol string, onSkip SkipFunc) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		out     []models.Bar
		headers []string
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if headers == nil {
			headers = rec
			continue
		}

		row := map[string]string{}
		for j, h := range headers {
			if j < len(rec) {
				row[strings.ToLower(strings.TrimSpace(h))] = strings.TrimSpace(rec[j])
			}
		}

		bar, err := parseRow(row, symbol)
		if err != nil {
			if onSkip != nil {
				onSkip(bar, err)
			}
			continue
		}
		out = append(out, bar)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseRow(row map[string]string, symbol string) (models.Bar, error) {
	bar := models.Bar{Symbol: symbol}

	ts, err := parseTimeFlexible(first(row, "time", "timestamp", "datetime", "date"))
	if err != nil {
		return bar, err
	}
	bar.Time = ts

	fields := []struct {
		dst  *float64
		keys []string
	}{
		{&bar.Open, []string{"open"}},
		{&bar.High, []string{"high"}},
		{&bar.Low, []string{"low"}},
		{&bar.Close, []string{"close"}},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(first(row, f.keys...), 64)
		if err != nil {
			return bar, fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = v
	}

	// volume is optional
	if vs := first(row, "volume", "vol"); vs != "" {
		v, err := strconv.ParseFloat(vs, 64)
		if err != nil {
			return bar, fmt.Errorf("volume: %w", err)
		}
		bar.Volume = v
	}
	return bar, nil
}

// parseTimeFlexible supports RFC3339, plain dates, "2006-01-02 15:04:05" and unix seconds.
func parseTimeFlexible(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

func filterRange(bars []models.Bar, start, end time.Time) []models.Bar {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
