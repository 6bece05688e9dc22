package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrNoEndpoint = errors.New("notify: webhook url not configured")

// Webhook posts messages as JSON. Success is a 2xx answer with a JSON body.
type Webhook struct {
	client *resty.Client
	url    string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewWebhook(url string, timeout time.Duration, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Webhook {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Webhook{client: client, url: url, cb: cb, logger: logger}
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if w.url == "" {
		return ErrNoEndpoint
	}
	_, err := w.cb.Execute(func() (interface{}, error) {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(msg).
			Post(w.url)
		if err != nil {
			return nil, fmt.Errorf("webhook post: %w", err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("webhook status %d", resp.StatusCode())
		}
		if !json.Valid(resp.Body()) {
			return nil, errors.New("webhook answered without a JSON body")
		}
		return nil, nil
	})
	if err != nil {
		w.logger.Warn("webhook notification failed",
			zap.String("type", string(msg.Type)),
			zap.String("breaker_state", w.cb.State().String()),
			zap.Error(err),
		)
		return err
	}
	w.logger.Debug("webhook notification sent", zap.String("type", string(msg.Type)))
	return nil
}
