package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"robotrading/internal/models"
	"robotrading/internal/resilient"
)

// Client — REST+WS клиент котировок. WS держит последнюю цену в памяти,
// REST отдаёт историю баров для ATR.
type Client struct {
	mu       sync.RWMutex
	prices   map[string]float64
	pricedAt map[string]time.Time
	streams  map[string]struct{}

	http     *http.Client
	wsDialer *websocket.Dialer

	baseURL string
	wsURL   string

	// свежесть WS-цены, старше — идём в REST
	wsFreshness time.Duration
}

func NewClient(baseURL, wsURL string) *Client {
	return &Client{
		prices:      make(map[string]float64),
		pricedAt:    make(map[string]time.Time),
		streams:     make(map[string]struct{}),
		http:        &http.Client{Timeout: 10 * time.Second},
		wsDialer:    &websocket.Dialer{},
		baseURL:     baseURL,
		wsURL:       wsURL,
		wsFreshness: 30 * time.Second,
	}
}

func (c *Client) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.pricedAt[symbol] = time.Now()
	c.mu.Unlock()
}

// LastPrice — последняя цена из WS-потока, 0 если тикера ещё не видели
// или цена протухла.
func (c *Client) LastPrice(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if time.Since(c.pricedAt[symbol]) > c.wsFreshness {
		return 0
	}
	return c.prices[symbol]
}

// ensureStream лениво поднимает WS-поток по тикеру при первом запросе цены.
// Поток живёт до конца процесса, как и сам клиент.
func (c *Client) ensureStream(symbol string) {
	if c.wsURL == "" {
		return
	}
	c.mu.Lock()
	_, running := c.streams[symbol]
	if !running {
		c.streams[symbol] = struct{}{}
	}
	c.mu.Unlock()
	if running {
		return
	}
	go func() {
		for range c.StreamPrices(context.Background(), symbol) {
			// SetPrice уже вызван внутри потока, канал только дренируем
		}
		c.mu.Lock()
		delete(c.streams, symbol) // поток сдался, следующий запрос переподнимет
		c.mu.Unlock()
	}()
}

// ===== WS: last price per symbol =====

// StreamPrices подписывается на тикер и шлёт последние цены в канал.
// Реконнект с нарастающей паузой, после 8 неудач подряд сдаёмся.
func (c *Client) StreamPrices(ctx context.Context, symbol string) <-chan float64 {
	ch := make(chan float64)
	go func() {
		defer close(ch)
		retry := 0
		for {
			conn, _, err := c.wsDialer.Dial(c.wsURL, nil)
			if err != nil {
				retry++
				if retry > 8 {
					return
				}
				time.Sleep(time.Duration(300*retry) * time.Millisecond)
				continue
			}
			retry = 0
			_ = conn.WriteJSON(map[string]any{"op": "subscribe", "args": []string{"ticker:" + symbol}})

			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(15 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-stopPing:
						return
					case <-ctx.Done():
						return
					case <-t.C:
						_ = conn.WriteJSON(map[string]string{"op": "ping"})
					}
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					close(stopPing)
					_ = conn.Close()
					break
				}
				var frame struct {
					Channel string `json:"channel"`
					Data    struct {
						Symbol string  `json:"symbol"`
						Last   float64 `json:"lastPrice"`
					} `json:"data"`
				}
				if err := json.Unmarshal(msg, &frame); err == nil && frame.Channel == "ticker" {
					if frame.Data.Last != 0 {
						c.SetPrice(symbol, frame.Data.Last)
						select {
						case ch <- frame.Data.Last:
						case <-ctx.Done():
							_ = conn.Close()
							return
						}
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(1 * time.Second)
			}
		}
	}()
	return ch
}

// ===== REST =====

// GetPrice — последняя цена: свежий WS-поток, иначе REST. Для мониторинга
// вызывается через resilient.Executor + cache, сюда приходят уже только
// реальные запросы.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	c.ensureStream(symbol)
	if px := c.LastPrice(symbol); px > 0 {
		return px, nil
	}

	var out struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"lastPrice"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/v1/ticker?symbol=%s", c.baseURL, symbol), &out); err != nil {
		return 0, err
	}
	if out.Last <= 0 {
		return 0, resilient.Transientf("feed: empty price for %s", symbol)
	}
	return out.Last, nil
}

// GetPriceHistory — lookback последних дневных баров, от старых к новым.
func (c *Client) GetPriceHistory(ctx context.Context, symbol string, lookback int) ([]models.Bar, error) {
	var out struct {
		Candles [][]float64 `json:"candles"` // [ts, open, high, low, close]
	}
	url := fmt.Sprintf("%s/api/v1/candles?symbol=%s&interval=1d&limit=%d", c.baseURL, symbol, lookback)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(out.Candles))
	for _, row := range out.Candles {
		if len(row) < 5 {
			continue
		}
		bars = append(bars, models.Bar{
			Time:  time.Unix(int64(row[0]), 0),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return bars, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return resilient.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilient.Transient(err) // сеть/таймаут
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resilient.Transient(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return resilient.Permanentf("feed: unknown symbol: %s", url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resilient.Transientf("feed: status %d: %s", resp.StatusCode, string(body))
	default:
		return resilient.Permanentf("feed: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resilient.Transientf("feed: bad payload: %v", err)
	}
	return nil
}
