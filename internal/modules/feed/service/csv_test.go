package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvg_bot/internal/models"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-03,101,103,100,102,2000
2024-01-02,100,102,99,101,1500
2024-01-04,bad,103,100,102,2000
,100,102,99,101,1500
1704412800,102,104,101,103,
`

func TestReadCSV(t *testing.T) {
	var skipped int
	bars, err := ReadCSV(strings.NewReader(sampleCSV), "SPY", func(models.Bar, error) { skipped++ })
	require.NoError(t, err)

	require.Len(t, bars, 3)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), bars[1].Time)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), bars[2].Time)
	assert.Equal(t, "SPY", bars[0].Symbol)
	assert.Equal(t, 1500.0, bars[0].Volume)
	assert.Zero(t, bars[2].Volume)
}

func TestParseTimeFlexible(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-01-02T15:30:00Z", time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC), false},
		{"2024-01-02 15:30:00", time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC), false},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"1704153600", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimeFlexible(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestCSVSource_FiltersRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src := NewCSVSource(path, nil)
	all, err := src.Bars(context.Background(), "SPY", "1Day", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := src.Bars(context.Background(), "SPY", "1Day",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, 102.0, some[0].Close)

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), nil).
		Bars(context.Background(), "SPY", "1Day", time.Time{}, time.Time{})
	assert.Error(t, err)
}
