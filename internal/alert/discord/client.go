package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assist-by/cyclone/internal/alert"
)

// Client는 Discord 웹훅으로 알림을 전송합니다
type Client struct {
	webhookURL string
	username   string
	footer     string
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient는 HTTP 클라이언트를 교체합니다
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBotName은 메시지 작성자 이름과 푸터에 쓸 봇 이름을 설정합니다
func WithBotName(name string) ClientOption {
	return func(c *Client) {
		c.username = name
		c.footer = name + " 🤖"
	}
}

// NewClient는 새로운 Discord 웹훅 클라이언트를 생성합니다
func NewClient(webhookURL string, opts ...ClientOption) *Client {
	c := &Client{
		webhookURL: webhookURL,
		footer:     "cyclone 🤖",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send는 알림 하나를 임베드 메시지로 전송합니다 (alert.Alerter 구현)
func (c *Client) Send(subject, message string) error {
	color := ColorInfo
	if alert.IsCritical(subject) {
		color = ColorError
	}

	embed := NewEmbed().
		SetTitle(subject).
		SetDescription(fmt.Sprintf("```%s```", message)).
		SetColor(color).
		SetFooter(c.footer).
		SetTimestamp(c.now())

	msg := WebhookMessage{
		Username: c.username,
		Embeds:   []Embed{*embed},
	}

	return c.sendToWebhook(context.Background(), c.webhookURL, msg)
}

// sendToWebhook은 메시지를 JSON으로 직렬화해 웹훅 URL로 전송합니다
func (c *Client) sendToWebhook(ctx context.Context, webhookURL string, msg WebhookMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("메시지 마샬링 실패: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("웹훅 전송 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("웹훅 응답 에러(상태 코드: %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
