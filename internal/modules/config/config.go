package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"robotrading/internal/stoploss"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	brokerKeyENV      = "BROKER_API_KEY"
	brokerSecretENV   = "BROKER_API_SECRET"
)

// Config — неизменяемый снимок настроек процесса. Собирается один раз на
// старте; компонентам передаются значения, никакого общего мутабельного
// глобального стейта между потоками.
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Feed struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
	} `yaml:"feed"`
	Broker struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"broker"`
	Regime struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"regime"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Ретраи / circuit breaker
	BreakerThreshold int           `yaml:"breaker_threshold"` // подряд ошибок до OPEN
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`

	// Защитные стопы
	StopLossEnabled   bool          `yaml:"stop_loss_enabled"`
	TrailingPercent   float64       `yaml:"trailing_percent"`    // 5.0 => стоп в 5% от peak
	ATRMultiplier     float64       `yaml:"atr_multiplier"`      // 2.0 => entry - 2*ATR
	ATRPeriod         int           `yaml:"atr_period"`          // обычно 14
	RegimeAware       bool          `yaml:"regime_aware"`        // тянуть стопы в high-vol режиме
	HighVolThreshold  float64       `yaml:"high_vol_threshold"`  // 0.5
	HighVolTightening float64       `yaml:"high_vol_tightening"` // 0.6 => буфер сужается до 60%
	MinHoldTime       time.Duration `yaml:"min_hold_time"`       // 30m: шум входного бара не стопим

	// Интрадей-монитор
	IntradayInterval time.Duration `yaml:"intraday_interval"` // 15m
	PriceTTL         time.Duration `yaml:"price_ttl"`         // TTL кеша цен
	HistoryTTL       time.Duration `yaml:"history_ttl"`       // TTL кеша истории баров
	HistoryLookback  int           `yaml:"history_lookback"`  // баров истории под ATR
	CacheSnapshot    string        `yaml:"cache_snapshot"`    // путь снапшота кеша, пусто = выкл
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		BreakerThreshold: intFromEnv("BREAKER_THRESHOLD", 5),
		BreakerCooldown:  durationFromEnv("BREAKER_COOLDOWN", "60s"),

		StopLossEnabled:   boolFromEnv("STOP_LOSS_ENABLED", true),
		TrailingPercent:   floatFromEnv("TRAILING_PERCENT", 5.0),
		ATRMultiplier:     floatFromEnv("ATR_MULTIPLIER", 2.0),
		ATRPeriod:         intFromEnv("ATR_PERIOD", 14),
		RegimeAware:       boolFromEnv("REGIME_AWARE", true),
		HighVolThreshold:  floatFromEnv("HIGH_VOL_THRESHOLD", 0.5),
		HighVolTightening: floatFromEnv("HIGH_VOL_TIGHTENING", 0.6),
		MinHoldTime:       durationFromEnv("MIN_HOLD_TIME", "30m"),

		IntradayInterval: durationFromEnv("INTRADAY_INTERVAL", "15m"),
		PriceTTL:         durationFromEnv("PRICE_TTL", "1m"),
		HistoryTTL:       durationFromEnv("HISTORY_TTL", "1h"),
		HistoryLookback:  intFromEnv("HISTORY_LOOKBACK", 30),
		CacheSnapshot:    getenvDefault("CACHE_SNAPSHOT", "cache/data_cache.json"),
	}
	config.Jaeger.Host = getenvDefault("JAEGER_HOST", "localhost")
	config.Jaeger.Port = intFromEnv("JAEGER_PORT", 6831)
	err = decoder.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if v := os.Getenv(brokerKeyENV); v != "" {
		config.Broker.APIKey = v
	}
	if v := os.Getenv(brokerSecretENV); v != "" {
		config.Broker.APISecret = v
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate ловит кривые политики на старте — это единственная категория,
// на которой процесс имеет право не подняться.
func (c *Config) validate() error {
	if c.TrailingPercent <= 0 || c.TrailingPercent >= 100 {
		return fmt.Errorf("trailing_percent must be in (0, 100), got %f", c.TrailingPercent)
	}
	if c.ATRMultiplier <= 0 {
		return fmt.Errorf("atr_multiplier must be > 0, got %f", c.ATRMultiplier)
	}
	if c.ATRPeriod <= 0 {
		return fmt.Errorf("atr_period must be > 0, got %d", c.ATRPeriod)
	}
	if c.HighVolTightening <= 0 || c.HighVolTightening >= 1 {
		return fmt.Errorf("high_vol_tightening must be in (0, 1), got %f", c.HighVolTightening)
	}
	if c.HighVolThreshold < 0 || c.HighVolThreshold > 1 {
		return fmt.Errorf("high_vol_threshold must be in [0, 1], got %f", c.HighVolThreshold)
	}
	if c.IntradayInterval <= 0 {
		return fmt.Errorf("intraday_interval must be > 0, got %s", c.IntradayInterval)
	}
	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker_threshold must be > 0, got %d", c.BreakerThreshold)
	}
	return nil
}

// StopLoss собирает снимок настроек для движка стопов.
func (c *Config) StopLoss() stoploss.Config {
	return stoploss.Config{
		TrailingPercent:   c.TrailingPercent,
		ATRMultiplier:     c.ATRMultiplier,
		ATRPeriod:         c.ATRPeriod,
		RegimeAware:       c.RegimeAware,
		HighVolThreshold:  c.HighVolThreshold,
		HighVolTightening: c.HighVolTightening,
		MinHoldTime:       c.MinHoldTime,
	}
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
