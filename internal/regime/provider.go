package regime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"robotrading/internal/cache"
	"robotrading/internal/obs"
	"robotrading/internal/resilient"
	"robotrading/pkg/logger"
)

// Provider отдаёт вероятность high-vol режима для тикера, [0, 1].
type Provider interface {
	GetRegimeProbability(ctx context.Context, symbol string) (float64, error)
}

// Neutral — вероятность, подставляемая когда режимная модель недоступна:
// стоп-оценка продолжает работать без поправки, а не падает.
const Neutral = 0.0

// WithFallback дёргает p и молча подменяет ошибку нейтральным значением.
// Отказ режимной модели не должен останавливать контроль рисков.
func WithFallback(ctx context.Context, p Provider, symbol string) float64 {
	if p == nil {
		return Neutral
	}
	prob, err := p.GetRegimeProbability(ctx, symbol)
	if err != nil {
		logger.Warn("[REGIME] %s: модель недоступна, берём нейтральную вероятность: %v", symbol, err)
		return Neutral
	}
	if prob < 0 || prob > 1 {
		logger.Warn("[REGIME] %s: вероятность %f вне [0,1], берём нейтральную", symbol, prob)
		return Neutral
	}
	return prob
}

// HTTPProvider ходит во внешний сервис режимной модели; ответы кешируются,
// модель пересчитывается редко и дёргать её на каждый скан незачем.
type HTTPProvider struct {
	baseURL string
	http    *http.Client
	exec    *resilient.Executor
	cache   *cache.Cache[float64]
	ttl     time.Duration
}

func NewHTTPProvider(baseURL string, exec *resilient.Executor) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		exec:    exec,
		cache:   cache.New[float64]().WithReporter("regime", obs.NewReporter()),
		ttl:     10 * time.Minute,
	}
}

func (p *HTTPProvider) GetRegimeProbability(ctx context.Context, symbol string) (float64, error) {
	return p.cache.GetOrFetch(ctx, "regime:"+symbol, p.ttl, func(ctx context.Context) (float64, error) {
		return resilient.Call(ctx, p.exec, "regime", resilient.DefaultPolicy(), func(ctx context.Context) (float64, error) {
			return p.fetch(ctx, symbol)
		})
	})
}

func (p *HTTPProvider) fetch(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v1/regime?symbol=%s", p.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, resilient.Permanent(err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, resilient.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, resilient.Transientf("regime: status %d", resp.StatusCode)
	}

	var out struct {
		Symbol      string  `json:"symbol"`
		Probability float64 `json:"highVolProbability"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, resilient.Transientf("regime: bad payload: %v", err)
	}
	return out.Probability, nil
}
