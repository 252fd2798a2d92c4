package discord

import (
	"time"
	"unicode/utf8"
)

// Discord 임베드 길이 제한
const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
)

// WebhookMessage는 Discord 웹훅 메시지를 정의합니다
type WebhookMessage struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed는 Discord 메시지 임베드를 정의합니다
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedFooter는 임베드 푸터를 정의합니다
type EmbedFooter struct {
	Text string `json:"text"`
}

// 임베드 색상 상수
const (
	ColorError = 0xFF0000 // 빨간색
	ColorInfo  = 0x0099FF // 파란색
)

// NewEmbed는 새로운 임베드를 생성합니다
func NewEmbed() *Embed {
	return &Embed{}
}

// SetTitle은 임베드 제목을 설정합니다. 길이 제한을 넘으면 잘라냅니다.
func (e *Embed) SetTitle(title string) *Embed {
	e.Title = truncate(title, maxTitleLength)
	return e
}

// SetDescription은 임베드 설명을 설정합니다. 길이 제한을 넘으면 잘라냅니다.
func (e *Embed) SetDescription(desc string) *Embed {
	e.Description = truncate(desc, maxDescriptionLength)
	return e
}

// SetColor는 임베드 색상을 설정합니다
func (e *Embed) SetColor(color int) *Embed {
	e.Color = color
	return e
}

// SetFooter는 임베드 푸터를 설정합니다
func (e *Embed) SetFooter(text string) *Embed {
	e.Footer = &EmbedFooter{Text: text}
	return e
}

// SetTimestamp는 임베드 타임스탬프를 설정합니다
func (e *Embed) SetTimestamp(t time.Time) *Embed {
	e.Timestamp = t.Format(time.RFC3339)
	return e
}

// truncate는 문자 단위로 s를 최대 n자로 자릅니다
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
