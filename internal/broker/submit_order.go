package broker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"robotrading/internal/helper"
	"robotrading/internal/models"
	"robotrading/internal/resilient"
)

// минимальный шаг объёма у брокера
const lotStep = 1e-4

// SubmitOrder шлёт рыночную заявку. Брокер дедуплицирует по clientOrderId:
// повторная отправка после сетевого таймаута вернёт исходную заявку,
// а не создаст дубль.
func (c *Client) SubmitOrder(
	ctx context.Context,
	symbol string,
	side models.Side,
	quantity float64,
	clientOrderID string,
) (models.OrderResult, error) {

	if side != models.SideBuy && side != models.SideSell {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: unsupported side=%q", side)
	}
	if quantity <= 0 {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: quantity <= 0")
	}
	if clientOrderID == "" {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: empty clientOrderId")
	}

	// объём вниз до лотности, чтобы float-шум не продал больше позиции
	quantity = helper.RoundDownToTick(quantity, lotStep)
	if quantity <= 0 {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: quantity below lot step")
	}

	body := map[string]string{
		"symbol":        symbol,
		"side":          string(side),
		"ordType":       "market",
		"qty":           fmt.Sprintf("%.8f", quantity),
		"clientOrderId": clientOrderID,
		"tif":           "DAY",
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder marshal: %v", err)
	}

	const requestPath = "/api/v1/orders"

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	sign := c.sign(ts, http.MethodPost, requestPath, string(payload))

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+requestPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder new request: %v", err)
	}

	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-API-SIGN", sign)
	req.Header.Set("X-API-TIMESTAMP", ts)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.OrderResult{}, resilient.Transient(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.OrderResult{}, resilient.Transient(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: auth failed: %s", string(raw))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.OrderResult{}, resilient.Transientf("SubmitOrder: status %d: %s", resp.StatusCode, string(raw))
	default:
		return models.OrderResult{}, resilient.Permanentf("SubmitOrder: status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		ClientOrderID string  `json:"clientOrderId"`
		Status        string  `json:"status"`
		FillPrice     float64 `json:"fillPrice"`
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return models.OrderResult{}, resilient.Transientf("SubmitOrder unmarshal: %v", err)
	}

	res := models.OrderResult{
		ClientOrderID: out.ClientOrderID,
		Status:        models.OrderStatus(out.Status),
		FillPrice:     out.FillPrice,
	}
	if res.ClientOrderID == "" {
		res.ClientOrderID = clientOrderID
	}
	return res, nil
}
