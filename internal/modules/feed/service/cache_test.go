package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvg_bot/internal/models"
)

type fakeSource struct {
	calls int
	bars  []models.Bar
	err   error
}

func (f *fakeSource) Bars(context.Context, string, string, time.Time, time.Time) ([]models.Bar, error) {
	f.calls++
	return f.bars, f.err
}

var (
	cacheStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cacheEnd   = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

func cacheKeyFor() string {
	return "bars:SPY:15Min:1704153600:1704240000"
}

func sampleBars() []models.Bar {
	return []models.Bar{
		{Symbol: "SPY", Time: cacheStart.Add(15 * time.Hour), Open: 470, High: 471, Low: 469, Close: 470.5, Volume: 100},
	}
}

func TestCachingSource_NilRedisPassesThrough(t *testing.T) {
	inner := &fakeSource{bars: sampleBars()}
	c := NewCachingSource(nil, time.Hour, inner, "bars")

	got, err := c.Bars(context.Background(), "SPY", "15Min", cacheStart, cacheEnd)
	require.NoError(t, err)
	assert.Equal(t, inner.bars, got)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, c.Invalidate(context.Background(), "SPY", "15Min"))
}

func TestCachingSource_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cached, err := sonic.Marshal(sampleBars())
	require.NoError(t, err)
	mock.ExpectGet(cacheKeyFor()).SetVal(string(cached))

	inner := &fakeSource{}
	c := NewCachingSource(rdb, time.Hour, inner, "bars")
	got, err := c.Bars(context.Background(), "SPY", "15Min", cacheStart, cacheEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 470.5, got[0].Close)
	assert.Zero(t, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSource_MissStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	bars := sampleBars()
	payload, err := sonic.Marshal(bars)
	require.NoError(t, err)
	mock.ExpectGet(cacheKeyFor()).RedisNil()
	mock.ExpectSet(cacheKeyFor(), payload, time.Hour).SetVal("OK")

	inner := &fakeSource{bars: bars}
	c := NewCachingSource(rdb, time.Hour, inner, "bars")
	got, err := c.Bars(context.Background(), "SPY", "15Min", cacheStart, cacheEnd)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSource_CorruptEntryIsDropped(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	bars := sampleBars()
	payload, err := sonic.Marshal(bars)
	require.NoError(t, err)
	mock.ExpectGet(cacheKeyFor()).SetVal("not json")
	mock.ExpectDel(cacheKeyFor()).SetVal(1)
	mock.ExpectSet(cacheKeyFor(), payload, time.Hour).SetVal("OK")

	inner := &fakeSource{bars: bars}
	c := NewCachingSource(rdb, time.Hour, inner, "bars")
	_, err = c.Bars(context.Background(), "SPY", "15Min", cacheStart, cacheEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSource_InnerError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	boom := errors.New("upstream down")
	mock.ExpectGet(cacheKeyFor()).RedisNil()

	c := NewCachingSource(rdb, time.Hour, &fakeSource{err: boom}, "bars")
	_, err := c.Bars(context.Background(), "SPY", "15Min", cacheStart, cacheEnd)
	assert.ErrorIs(t, err, boom)
}

func TestCachingSource_Invalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "bars:SPY:15Min:*", 200).SetVal([]string{cacheKeyFor()}, 0)
	mock.ExpectDel(cacheKeyFor()).SetVal(1)

	c := NewCachingSource(rdb, time.Hour, &fakeSource{}, "bars")
	require.NoError(t, c.Invalidate(context.Background(), "SPY", "15Min"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
