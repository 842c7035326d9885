package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultConfirmTimeout = 10 * time.Second
	confirmPath           = "/v1/payments/confirm"
)

// Client — HTTP-клиент платёжного шлюза. Подтверждение платежа — вызов
// внешней нетранзакционной системы: клиент ограничивает его таймаутом и
// никогда не повторяет сам, решение о повторе остаётся за вызывающим.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт низкоуровневый HTTP-клиент; используется тестами.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout задаёт таймаут confirm-вызова.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient создаёт клиент шлюза. Секретный ключ передаётся в Basic-авторизации,
// как того требует протокол провайдера.
func NewClient(baseURL, secretKey string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: defaultConfirmTimeout},
		logger:     log.WithField("component", "payment-gateway"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	TotalAmount int64  `json:"totalAmount"`
	ApprovedAt  string `json:"approvedAt"`
	Receipt     struct {
		URL string `json:"url"`
	} `json:"receipt"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Confirm подтверждает платёж у шлюза. Любая сетевая ошибка, таймаут или
// не-2xx ответ возвращаются как ErrGatewayConfirmFailed с контекстом причины.
func (c *Client) Confirm(ctx context.Context, paymentKey, gatewayOrderID string, amountMinor int64) (domain.GatewayConfirmation, error) {
	body, err := json.Marshal(confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    gatewayOrderID,
		Amount:     amountMinor,
	})
	if err != nil {
		return domain.GatewayConfirmation{}, fmt.Errorf("marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return domain.GatewayConfirmation{}, fmt.Errorf("build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("payment_key", paymentKey).Warn("gateway confirm request failed")
		return domain.GatewayConfirmation{}, fmt.Errorf("%w: %v", domain.ErrGatewayConfirmFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.GatewayConfirmation{}, fmt.Errorf("%w: read response: %v", domain.ErrGatewayConfirmFailed, err)
	}

	var parsed confirmResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.GatewayConfirmation{}, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayConfirmFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(log.Fields{
			"payment_key": paymentKey,
			"http_status": resp.StatusCode,
			"code":        parsed.Code,
		}).Warn("gateway declined confirm")
		return domain.GatewayConfirmation{}, fmt.Errorf("%w: %s (%s)", domain.ErrGatewayConfirmFailed, parsed.Message, parsed.Code)
	}

	confirmation := domain.GatewayConfirmation{
		PaymentKey:  parsed.PaymentKey,
		GatewayID:   parsed.OrderID,
		Status:      parsed.Status,
		Method:      parseMethod(parsed.Method),
		AmountMinor: parsed.TotalAmount,
		ReceiptURL:  parsed.Receipt.URL,
		Raw:         raw,
	}
	if parsed.ApprovedAt != "" {
		if approvedAt, err := time.Parse(time.RFC3339, parsed.ApprovedAt); err == nil {
			confirmation.ApprovedAt = approvedAt
		}
	}

	return confirmation, nil
}

func parseMethod(raw string) domain.PaymentMethod {
	switch strings.ToLower(raw) {
	case "card", "카드":
		return domain.PaymentMethodCard
	case "transfer", "계좌이체":
		return domain.PaymentMethodTransfer
	case "virtual_account", "가상계좌":
		return domain.PaymentMethodVirtual
	default:
		return domain.PaymentMethod(strings.ToLower(raw))
	}
}

var _ domain.PaymentGateway = (*Client)(nil)
