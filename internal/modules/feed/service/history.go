package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"fvg_bot/internal/models"
)

const maxBarsPerPage = 10000

type HistoryConfig struct {
	BaseURL   string
	KeyID     string
	SecretKey string
	DataFeed  string
}

// History loads bars from the Alpaca market-data REST API.
type History struct {
	cfg  HistoryConfig
	http *http.Client
}

func NewHistory(cfg HistoryConfig, httpClient *http.Client) *History {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &History{cfg: cfg, http: httpClient}
}

type barsPage struct {
	Bars []struct {
		T time.Time `json:"t"`
		O float64   `json:"o"`
		H float64   `json:"h"`
		L float64   `json:"l"`
		C float64   `json:"c"`
		V float64   `json:"v"`
	} `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// Bars follows next_page_token until the range is exhausted. Oldest first.
func (h *History) Bars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error) {
	var (
		out   []models.Bar
		token string
	)
	for {
		page, err := h.page(ctx, symbol, timeframe, start, end, token)
		if err != nil {
			return nil, err
		}
		for _, b := range page.Bars {
			out = append(out, models.Bar{
				Symbol: symbol,
				Time:   b.T,
				Open:   b.O,
				High:   b.H,
				Low:    b.L,
				Close:  b.C,
				Volume: b.V,
			})
		}
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			return out, nil
		}
		token = *page.NextPageToken
	}
}

func (h *History) page(ctx context.Context, symbol, timeframe string, start, end time.Time, token string) (*barsPage, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(maxBarsPerPage))
	q.Set("adjustment", "raw")
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}
	if h.cfg.DataFeed != "" {
		q.Set("feed", h.cfg.DataFeed)
	}
	if token != "" {
		q.Set("page_token", token)
	}

	u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", h.cfg.BaseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", h.cfg.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", h.cfg.SecretKey)

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bars request: %w", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bars http %d: %s", resp.StatusCode, string(b))
	}

	var page barsPage
	if err := sonic.Unmarshal(b, &page); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	return &page, nil
}
