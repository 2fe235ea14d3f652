package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/middleware"
)

// CreateIntentInput 创建支付意图的参数。
type CreateIntentInput struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Reference string            `json:"reference"` // 本地 payment ID，便于服务商侧对账
}

// Intent 服务商返回的支付意图。
type Intent struct {
	Ref    string `json:"id"`      // 服务商侧意图 ID
	PayURL string `json:"pay_url"` // 买家跳转的收银台地址
}

// Provider 支付服务商接口。
type Provider interface {
	CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
}

// HTTPProvider 通过 HTTP API 对接支付服务商。
// 外呼统一走熔断器，服务商抖动时快速失败而不是拖垮请求链路。
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *middleware.CircuitBreaker
}

func NewHTTPProvider(cfg config.PaymentConfig) *HTTPProvider {
	timeout := time.Duration(cfg.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.ProviderBaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: middleware.NewCircuitBreaker("payment-provider", 5, 30*time.Second),
	}
}

// CreatePaymentIntent 调用服务商创建支付意图。
func (p *HTTPProvider) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider not initialized")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	var intent Intent
	err = p.breaker.Call(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/v1/payment_intents", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, data)
		}
		return json.Unmarshal(data, &intent)
	})
	if err != nil {
		return nil, err
	}
	if intent.Ref == "" {
		return nil, fmt.Errorf("provider returned empty intent id")
	}
	return &intent, nil
}

// Event 是服务商 webhook 推送的事件体。
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"` // 意图 ID，对应 Payment.IntentRef
			Status        string `json:"status"`
			FailureReason string `json:"failure_reason"`
		} `json:"object"`
	} `json:"data"`
}

// 已知事件类型；其余类型直接确认不处理。
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)
