package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"fvg_bot/pkg/logger"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	envPrefix         = "FVG"
)

const (
	ModeLive     = "live"
	ModeBacktest = "backtest"

	ClockWall   = "wall"
	ClockCandle = "candle"

	JournalNone     = "none"
	JournalCSV      = "csv"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

// Config ...
type Config struct {
	Mode   string `yaml:"mode"`
	Symbol string `yaml:"symbol"`

	Service struct {
		Name     string `yaml:"name"`
		Host     string `yaml:"host"`
		HTTPPort int    `yaml:"http_port"`
		LogLevel string `yaml:"log_level"`
		LogJSON  bool   `yaml:"log_json"`
	} `yaml:"service"`

	Strategy struct {
		TrendWindow int `yaml:"trend_window"`
		MaxFVGAge   int `yaml:"max_fvg_age"`
		// Fewer than TrendWindow closes counts as bullish when true.
		UndeterminedAsBullish bool    `yaml:"undetermined_as_bullish"`
		DefaultQty            float64 `yaml:"default_qty"`
		// Drop the triggering zone from the detector once a proposal is made.
		ConsumeZones bool `yaml:"consume_zones"`
	} `yaml:"strategy"`

	Confirm struct {
		Timeout      time.Duration `yaml:"timeout"`
		Clock        string        `yaml:"clock"` // wall | candle
		Auto         bool          `yaml:"auto"`
		RequireEntry bool          `yaml:"require_entry"`
		RequireExit  bool          `yaml:"require_exit"`
	} `yaml:"confirm"`

	Risk struct {
		RiskPerTrade   float64 `yaml:"risk_per_trade"`   // 0.01 => 1% equity lost at stop
		CashAtRisk     float64 `yaml:"cash_at_risk"`     // max share of cash put into one position
		StopLossPct    float64 `yaml:"stop_loss_pct"`    // 0.02 => stop 2% below entry
		MaxDrawdownPct float64 `yaml:"max_drawdown_pct"` // 0.15 => entries vetoed past 15% from peak
	} `yaml:"risk"`

	Portfolio struct {
		InitialCash float64 `yaml:"initial_cash"`
		// Max equity curve points kept in live mode.
		CurveLimit int `yaml:"curve_limit"`
	} `yaml:"portfolio"`

	Feed struct {
		QueueSize int    `yaml:"queue_size"`
		SessionTZ string `yaml:"session_tz"`
		// Emit session_reset when the trading day changes. Off for daily bars.
		SessionResets bool `yaml:"session_resets"`
		// Entries only on weekdays between SessionOpen and SessionClose (HH:MM in SessionTZ).
		RegularHours bool      `yaml:"regular_hours"`
		SessionOpen  string    `yaml:"session_open"`
		SessionClose string    `yaml:"session_close"`
		Timeframe    string    `yaml:"timeframe"`
		WarmupBars   int       `yaml:"warmup_bars"`
		CSVPath      string    `yaml:"csv_path"`
		Start        time.Time `yaml:"start"`
		End          time.Time `yaml:"end"`
	} `yaml:"feed"`

	Alpaca struct {
		KeyID        string        `yaml:"key_id"`
		SecretKey    string        `yaml:"secret_key"`
		TradingURL   string        `yaml:"trading_url"`
		DataURL      string        `yaml:"data_url"`
		StreamURL    string        `yaml:"stream_url"`
		DataFeed     string        `yaml:"data_feed"`
		FillTimeout  time.Duration `yaml:"fill_timeout"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"alpaca"`

	Journal struct {
		Driver     string `yaml:"driver"` // none | csv | postgres | sqlite
		Dir        string `yaml:"dir"`
		DSN        string `yaml:"dsn"`
		SQLitePath string `yaml:"sqlite_path"`
		QueueSize  int    `yaml:"queue_size"`
	} `yaml:"journal"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

func Default() Config {
	var c Config
	c.Mode = ModeLive
	c.Symbol = "SPY"

	c.Service.Name = "fvg_bot"
	c.Service.Host = "0.0.0.0"
	c.Service.HTTPPort = 8765
	c.Service.LogLevel = "info"

	c.Strategy.TrendWindow = 20
	c.Strategy.MaxFVGAge = 8
	c.Strategy.UndeterminedAsBullish = true
	c.Strategy.DefaultQty = 1

	c.Confirm.Timeout = 60 * time.Second
	c.Confirm.Clock = ClockWall
	c.Confirm.RequireEntry = true
	c.Confirm.RequireExit = true

	c.Risk.RiskPerTrade = 0.01
	c.Risk.CashAtRisk = 0.5
	c.Risk.StopLossPct = 0.02
	c.Risk.MaxDrawdownPct = 0.15

	c.Portfolio.InitialCash = 100000
	c.Portfolio.CurveLimit = 10000

	c.Feed.QueueSize = 256
	c.Feed.SessionTZ = "America/New_York"
	c.Feed.SessionResets = true
	c.Feed.RegularHours = true
	c.Feed.SessionOpen = "09:30"
	c.Feed.SessionClose = "16:00"
	c.Feed.Timeframe = "15Min"
	c.Feed.WarmupBars = 30

	c.Alpaca.TradingURL = "https://paper-api.alpaca.markets"
	c.Alpaca.DataURL = "https://data.alpaca.markets"
	c.Alpaca.StreamURL = "wss://stream.data.alpaca.markets/v2/iex"
	c.Alpaca.DataFeed = "iex"
	c.Alpaca.FillTimeout = 30 * time.Second
	c.Alpaca.PollInterval = 500 * time.Millisecond

	c.Journal.Driver = JournalCSV
	c.Journal.Dir = "data"
	c.Journal.SQLitePath = "data/journal.db"
	c.Journal.QueueSize = 1024

	c.Redis.TTL = 24 * time.Hour

	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	return c
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	return Load(filepath.Join(configDir, configFileName))
}

// Load reads .env, the yaml file at path (optional) and FVG_* env overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("config: .env not loaded: %v", err)
	}

	config := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer func() {
			_ = file.Close()
		}()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, errors.Wrapf(err, "decode config %s", path)
		}
	case os.IsNotExist(err):
		logger.Warn("config: %s not found, using defaults", path)
	default:
		return nil, errors.Wrapf(err, "open config %s", path)
	}

	applyEnv(&config, envSource())

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func envSource() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyEnv(c *Config, v *viper.Viper) {
	if s := v.GetString("mode"); s != "" {
		c.Mode = s
	}
	if s := v.GetString("symbol"); s != "" {
		c.Symbol = s
	}
	if s := v.GetString("alpaca_key_id"); s != "" {
		c.Alpaca.KeyID = s
	}
	if s := v.GetString("alpaca_secret_key"); s != "" {
		c.Alpaca.SecretKey = s
	}
	if s := v.GetString("telegram_token"); s != "" {
		c.Telegram.Token = s
	}
	if v.IsSet("telegram_chat_id") {
		c.Telegram.ChatID = v.GetInt64("telegram_chat_id")
	}
	if s := v.GetString("database_dsn"); s != "" {
		c.Journal.DSN = s
	}
	if s := v.GetString("redis_addr"); s != "" {
		c.Redis.Addr = s
	}
	if s := v.GetString("log_level"); s != "" {
		c.Service.LogLevel = s
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Mode != ModeLive && c.Mode != ModeBacktest:
		return errors.Errorf("config: unknown mode %q", c.Mode)
	case c.Symbol == "":
		return errors.New("config: symbol is required")
	case c.Strategy.TrendWindow <= 0:
		return errors.Errorf("config: trend_window must be positive, got %d", c.Strategy.TrendWindow)
	case c.Strategy.MaxFVGAge <= 0:
		return errors.Errorf("config: max_fvg_age must be positive, got %d", c.Strategy.MaxFVGAge)
	case c.Confirm.Timeout <= 0:
		return errors.Errorf("config: confirm timeout must be positive, got %s", c.Confirm.Timeout)
	case c.Confirm.Clock != ClockWall && c.Confirm.Clock != ClockCandle:
		return errors.Errorf("config: unknown confirm clock %q", c.Confirm.Clock)
	case c.Mode == ModeBacktest && c.Confirm.Clock == ClockWall && (c.Confirm.RequireEntry || c.Confirm.RequireExit):
		return errors.New("config: backtest confirmations need the candle clock to stay deterministic")
	case c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 1:
		return errors.Errorf("config: stop_loss_pct must be in (0,1), got %v", c.Risk.StopLossPct)
	case c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1:
		return errors.Errorf("config: risk_per_trade must be in (0,1], got %v", c.Risk.RiskPerTrade)
	case c.Risk.CashAtRisk <= 0 || c.Risk.CashAtRisk > 1:
		return errors.Errorf("config: cash_at_risk must be in (0,1], got %v", c.Risk.CashAtRisk)
	case c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct >= 1:
		return errors.Errorf("config: max_drawdown_pct must be in (0,1), got %v", c.Risk.MaxDrawdownPct)
	case c.Portfolio.InitialCash <= 0:
		return errors.Errorf("config: initial_cash must be positive, got %v", c.Portfolio.InitialCash)
	case c.Feed.QueueSize <= 0:
		return errors.Errorf("config: feed queue_size must be positive, got %d", c.Feed.QueueSize)
	}

	switch c.Journal.Driver {
	case JournalNone, JournalCSV, JournalPostgres, JournalSQLite:
	default:
		return errors.Errorf("config: unknown journal driver %q", c.Journal.Driver)
	}
	if c.Journal.Driver == JournalPostgres && c.Journal.DSN == "" {
		return errors.New("config: journal dsn is required for postgres")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	open, err := time.Parse("15:04", c.Feed.SessionOpen)
	if err != nil {
		return errors.Wrapf(err, "config: session_open %q", c.Feed.SessionOpen)
	}
	closing, err := time.Parse("15:04", c.Feed.SessionClose)
	if err != nil {
		return errors.Wrapf(err, "config: session_close %q", c.Feed.SessionClose)
	}
	if !closing.After(open) {
		return errors.Errorf("config: session_close %s not after session_open %s", c.Feed.SessionClose, c.Feed.SessionOpen)
	}
	return nil
}

// ForBacktest switches c to backtest mode. Confirmation timeouts move to the
// candle clock so a replay never depends on wall-clock timers.
func (c *Config) ForBacktest() (*Config, error) {
	c.Mode = ModeBacktest
	if c.Confirm.Clock != ClockCandle {
		logger.Warn("config: backtest forces confirm clock %s -> %s", c.Confirm.Clock, ClockCandle)
		c.Confirm.Clock = ClockCandle
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Location is the timezone that defines trading-day boundaries.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Feed.SessionTZ)
	if err != nil {
		return nil, errors.Wrapf(err, "config: session_tz %q", c.Feed.SessionTZ)
	}
	return loc, nil
}
